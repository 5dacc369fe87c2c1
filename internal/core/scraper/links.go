package scraper

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// junkLinkPatterns drop auth pages, social networks, non-http schemes,
// fragments, ad networks and share links.
var junkLinkPatterns = []string{
	"/login", "/signup", "/register", "/signin", "/signout", "/logout",
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com", "pinterest.com",
	"mailto:", "tel:", "javascript:", "#",
	"/ads/", "/advertisement/", "doubleclick",
	"share=", "sharer",
}

// extractLinks returns the page's same-site links, absolute, filtered and
// de-duplicated in document order. It reads every <a href> on the page,
// including those inside navigation and footers.
func extractLinks(doc *html.Node, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	baseHost := strings.ToLower(base.Hostname())

	seen := make(map[string]struct{})
	links := make([]string, 0)

	for _, a := range findAll(doc, atom.A) {
		href := strings.TrimSpace(attr(a, "href"))
		if href == "" {
			continue
		}
		link, ok := normalizeLink(base, href)
		if !ok {
			continue
		}
		u, _ := url.Parse(link)
		if !sameSite(baseHost, strings.ToLower(u.Hostname())) {
			continue
		}
		if isJunkLink(link) || strings.Contains(href, "#") {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

// normalizeLink resolves href against base. An empty path becomes "/".
func normalizeLink(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	switch abs.Scheme {
	case "http", "https":
	default:
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	if abs.Path == "" {
		abs.Path = "/"
	}
	return abs.String(), true
}

// sameSite allows the page's own host and subdomains in either direction.
func sameSite(baseHost, linkHost string) bool {
	return linkHost == baseHost ||
		strings.HasSuffix(linkHost, "."+baseHost) ||
		strings.HasSuffix(baseHost, "."+linkHost)
}

func isJunkLink(link string) bool {
	lower := strings.ToLower(link)
	for _, p := range junkLinkPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
