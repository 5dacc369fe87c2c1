package scraper

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMinReadableChars is the length below which the readable extraction
// is considered a miss and the whole body is used instead.
const DefaultMinReadableChars = 200

// extractReadable finds the main content of a page: semantic landmarks
// first, then the node with the best text density. It returns the collapsed
// text and the first <h1> inside the chosen region.
func extractReadable(doc *html.Node, minLen int) (text, heading string) {
	var parts []string
	var headingNode *html.Node
	for _, n := range findContentByLandmarks(doc) {
		if isBoilerplate(n) {
			continue
		}
		if t := collapseWhitespace(collectText(n)); t != "" {
			parts = append(parts, t)
			if headingNode == nil {
				headingNode = findFirst(n, atom.H1)
			}
		}
	}
	if combined := strings.Join(parts, " "); utf8.RuneCountInString(combined) >= minLen {
		return combined, nodeText(headingNode)
	}

	body := findFirst(doc, atom.Body)
	if body == nil {
		body = doc
	}
	best := findDensestNode(body, minLen)
	if best == nil {
		return "", ""
	}
	return collapseWhitespace(collectText(best)), nodeText(findFirst(best, atom.H1))
}

// fallbackText returns the body text with scripts, chrome (nav, header,
// footer, aside), embeds and ad/menu/share blocks removed.
func fallbackText(doc *html.Node) string {
	body := findFirst(doc, atom.Body)
	if body == nil {
		body = doc
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isStripped(n) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return collapseWhitespace(sb.String())
}

var strippedClasses = map[string]bool{
	"ad":           true,
	"ads":          true,
	"social-share": true,
	"menu":         true,
}

func isStripped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header,
		atom.Aside, atom.Iframe, atom.Noscript:
		return true
	}
	for _, cls := range strings.Fields(attr(n, "class")) {
		if strippedClasses[cls] {
			return true
		}
	}
	return false
}

// documentTitle returns the text of <head><title>.
func documentTitle(doc *html.Node) string {
	return nodeText(findFirst(doc, atom.Title))
}

// nodeScore holds density analysis for a DOM subtree.
type nodeScore struct {
	node     *html.Node
	textLen  int
	density  float64
	linkDens float64 // fraction of text inside <a> tags
}

// findDensestNode walks the DOM and finds the node with highest content density.
func findDensestNode(root *html.Node, minLen int) *html.Node {
	var candidates []nodeScore

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || isBoilerplate(n) {
			return
		}
		if isContentTag(n.DataAtom) || n.DataAtom == atom.Body {
			text := collectText(n)
			if textLen := len(text); textLen >= minLen {
				markupLen := len(renderNode(n))
				if markupLen == 0 {
					markupLen = 1
				}
				candidates = append(candidates, nodeScore{
					node:     n,
					textLen:  textLen,
					density:  float64(textLen) / float64(markupLen),
					linkDens: float64(len(collectLinkText(n))) / float64(textLen),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var (
		best      *html.Node
		bestScore float64
	)
	for _, c := range candidates {
		if c.linkDens > 0.5 {
			continue // mostly links, probably navigation
		}
		score := c.density * logScale(c.textLen) * (1 - c.linkDens)
		if score > bestScore {
			bestScore = score
			best = c.node
		}
	}
	return best
}

func logScale(n int) float64 {
	if n <= 0 {
		return 0
	}
	scale := 1.0
	for v := n; v > 100; v /= 2 {
		scale++
	}
	return scale
}

func findContentByLandmarks(doc *html.Node) []*html.Node {
	for _, tag := range []atom.Atom{atom.Main, atom.Article} {
		if nodes := findAll(doc, tag); len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

// isContentTag returns true for tags likely to contain main content.
func isContentTag(a atom.Atom) bool {
	switch a {
	case atom.Main, atom.Article, atom.Section, atom.Div, atom.P,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Li,
		atom.Table, atom.Td, atom.Th, atom.Dl, atom.Dd, atom.Dt,
		atom.Figure, atom.Figcaption, atom.Details, atom.Summary:
		return true
	}
	return false
}

// isBoilerplate checks if a node is likely boilerplate (nav, footer, etc).
func isBoilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "class", "id":
			lower := strings.ToLower(a.Val)
			for _, pattern := range boilerplatePatterns {
				if strings.Contains(lower, pattern) {
					return true
				}
			}
		case "role":
			switch a.Val {
			case "navigation", "banner", "contentinfo", "complementary":
				return true
			}
		}
	}
	return false
}

var boilerplatePatterns = []string{
	"sidebar", "footer", "header", "nav", "menu", "breadcrumb",
	"cookie", "banner", "advert", "social", "share", "comment",
	"related", "widget", "popup", "modal",
}

// collectText extracts all visible text from a node subtree.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// collectLinkText extracts text only from <a> elements.
func collectLinkText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node, bool)
	f = func(n *html.Node, inLink bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			inLink = true
		}
		if n.Type == html.TextNode && inLink {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c, inLink)
		}
	}
	f(n, false)
	return sb.String()
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func findFirst(root *html.Node, tag atom.Atom) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode && root.DataAtom == tag {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, tag); n != nil {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return collapseWhitespace(collectText(n))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
