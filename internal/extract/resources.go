package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'{}|\\^` + "`" + `\[\]]+`)

// ExtractURLs pulls http(s) URLs out of free text, trimming trailing
// punctuation the pattern tends to swallow. Order of first appearance is
// preserved and duplicates are dropped.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ".,;:!?)")
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Resource kinds inferred from the URL's domain.
const (
	ResourceVideo         = "video"
	ResourceRepository    = "repository"
	ResourceDocumentation = "documentation"
	ResourceArticle       = "article"
)

// CategorizeURL returns the URL's cleaned domain and a coarse resource type.
// The empty domain means the URL is unusable.
func CategorizeURL(raw string) (domain, resourceType string) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", ""
	}
	domain = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	switch {
	case containsAny(domain, "youtube.com", "youtu.be", "vimeo.com"):
		return domain, ResourceVideo
	case strings.Contains(domain, "github.com"):
		return domain, ResourceRepository
	case containsAny(domain, "docs.", "documentation", "readthedocs.io"):
		return domain, ResourceDocumentation
	default:
		return domain, ResourceArticle
	}
}

// ShouldIgnoreURL filters links that do not make useful Resource nodes:
// profiles and people are already Person nodes, and hashtag or navigation
// links carry no content.
func ShouldIgnoreURL(u string) bool {
	if strings.Contains(u, "linkedin.com/in/") || strings.Contains(u, "linkedin.com/pub/") {
		return true
	}
	if strings.Contains(u, "linkedin.com/feed/hashtag/") {
		return true
	}
	if strings.Contains(u, "linkedin.com/company/") {
		return true
	}
	if strings.HasPrefix(u, "https://www.linkedin.com/feed/") && !strings.Contains(u, "update") {
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
