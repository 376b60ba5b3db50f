package articles

import "github.com/microcosm-cc/bluemonday"

// contentPolicy admits the markup the editor produces while rejecting
// scripts and data: image sources. Inline images must be offloaded by
// the client before save; the policy strips any that slip through.
var contentPolicy = buildContentPolicy()

func buildContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("data-image-id").OnElements("img")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	return p
}

func sanitizeContent(html string) string {
	return contentPolicy.Sanitize(html)
}
