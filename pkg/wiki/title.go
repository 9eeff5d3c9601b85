package wiki

import (
	"net/url"
	"strings"
)

// NormalizeTitle turns a link target, article URL or free-text mention into
// the form used as a page key: fragment and query dropped, percent-decoded,
// spaces as underscores, no leading /wiki/ and no trailing slashes.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if strings.Contains(title, "://") {
		if u, err := url.Parse(title); err == nil {
			title = u.EscapedPath()
		}
	}
	if i := strings.IndexByte(title, '#'); i >= 0 {
		title = title[:i]
	}
	if i := strings.IndexByte(title, '?'); i >= 0 {
		title = title[:i]
	}
	if decoded, err := url.PathUnescape(title); err == nil {
		title = decoded
	}
	title = strings.ReplaceAll(title, " ", "_")
	title = strings.TrimPrefix(title, "/wiki/")
	return strings.TrimRight(title, "/")
}

// DisplayTitle renders a canonical id for humans.
func DisplayTitle(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// LinkTarget validates an href found in page markup and returns the
// normalized title it points at. Only article links inside the wiki are
// accepted: namespaced pages (Category:, File:, ...), edit links and
// external URLs are rejected.
func LinkTarget(href string) (string, bool) {
	if !strings.HasPrefix(href, "/wiki/") {
		return "", false
	}
	if strings.Contains(href, "action=edit") {
		return "", false
	}
	target := NormalizeTitle(href)
	if target == "" || strings.Contains(target, ":") {
		return "", false
	}
	return target, true
}
