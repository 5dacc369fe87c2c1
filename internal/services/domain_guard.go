package services

import "strings"

// IsDomainAllowed applies a chat space's widget allow-list to a request.
// The Origin header must equal a listed domain, bare or with an http(s)
// scheme; the Referer only has to start with one. An empty list allows all.
func IsDomainAllowed(allowed []string, origin, referer string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, d := range allowed {
		if d == "" {
			continue
		}
		candidates := [...]string{d, "https://" + d, "http://" + d}
		for _, c := range candidates {
			if origin != "" && origin == c {
				return true
			}
			if referer != "" && strings.HasPrefix(referer, c) {
				return true
			}
		}
	}
	return false
}
