package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDomainAllowed(t *testing.T) {
	allowed := []string{"example.com"}

	tests := []struct {
		name    string
		allowed []string
		origin  string
		referer string
		want    bool
	}{
		{"empty list allows all", nil, "https://anything.io", "", true},
		{"empty list allows missing headers", []string{}, "", "", true},
		{"bare origin", allowed, "example.com", "", true},
		{"https origin", allowed, "https://example.com", "", true},
		{"http origin", allowed, "http://example.com", "", true},
		{"origin must match exactly", allowed, "https://example.com.evil.io", "", false},
		{"origin with path is not exact", allowed, "https://example.com/", "", false},
		{"referer prefix", allowed, "", "https://example.com/pricing?x=1", true},
		{"referer of other site", allowed, "", "https://other.com/example.com", false},
		{"bad origin rescued by referer", allowed, "https://other.com", "http://example.com/page", true},
		{"no headers against a list", allowed, "", "", false},
		{"blank entries are ignored", []string{""}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDomainAllowed(tt.allowed, tt.origin, tt.referer))
		})
	}
}
