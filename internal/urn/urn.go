// Package urn parses and builds the source system's URN syntax.
//
// The external API identifies everything by URN strings such as
// urn:li:person:k_ho7OlN0r or urn:li:ugcPost:7398404729531285504. Comment
// URNs are composite: urn:li:comment:(activity:7401982773,7402008011).
package urn

import (
	"fmt"
	"strings"
)

const (
	personPrefix  = "urn:li:person:"
	commentPrefix = "urn:li:comment:"
)

var postPrefixes = []string{
	"urn:li:activity:",
	"urn:li:ugcPost:",
	"urn:li:share:",
	"urn:li:groupPost:",
}

// IsPerson reports whether the URN identifies a person.
func IsPerson(u string) bool { return strings.HasPrefix(u, personPrefix) }

// IsComment reports whether the URN identifies a comment.
func IsComment(u string) bool { return strings.HasPrefix(u, commentPrefix) }

// IsPost reports whether the URN identifies a post-like entity.
func IsPost(u string) bool {
	for _, p := range postPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// ExtractID returns the trailing identifier portion of a URN.
// urn:li:person:k_ho7OlN0r yields k_ho7OlN0r. A string without colons is
// returned unchanged; a malformed URN yields the empty string.
func ExtractID(u string) string {
	if u == "" {
		return ""
	}
	if !strings.Contains(u, ":") {
		return u
	}
	parts := strings.Split(u, ":")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-1]
}

// CommentRef is the decomposition of a composite comment URN.
type CommentRef struct {
	ParentType string
	ParentID   string
	CommentID  string
	ParentURN  string
}

// ParseComment decomposes a comment URN. The legacy bare form
// urn:li:comment:<id> parses to a ref with only CommentID set. Returns
// false for anything that is not a comment URN.
func ParseComment(u string) (CommentRef, bool) {
	if !strings.HasPrefix(u, commentPrefix) {
		return CommentRef{}, false
	}
	rest := u[len(commentPrefix):]

	if !strings.HasPrefix(rest, "(") {
		return CommentRef{CommentID: rest}, true
	}
	if !strings.HasSuffix(rest, ")") {
		return CommentRef{}, false
	}
	inner := rest[1 : len(rest)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return CommentRef{}, false
	}
	parent := strings.TrimSpace(parts[0])
	commentID := strings.TrimSpace(parts[1])

	pt, pid, ok := strings.Cut(parent, ":")
	if !ok {
		return CommentRef{}, false
	}
	return CommentRef{
		ParentType: pt,
		ParentID:   pid,
		CommentID:  commentID,
		ParentURN:  fmt.Sprintf("urn:li:%s:%s", pt, pid),
	}, true
}

// BuildComment assembles a composite comment URN from its parent's URN and
// the comment id. Returns the empty string on malformed input.
func BuildComment(parentURN, commentID string) string {
	if parentURN == "" || commentID == "" || !strings.HasPrefix(parentURN, "urn:li:") {
		return ""
	}
	parts := strings.SplitN(parentURN, ":", 4)
	if len(parts) < 4 {
		return ""
	}
	return fmt.Sprintf("urn:li:comment:(%s:%s,%s)", parts[2], parts[3], commentID)
}

// ParentPostURN returns the post-like parent of a comment URN, or the empty
// string when the parent is missing or not post-like (e.g. a nested comment).
func ParentPostURN(commentURN string) string {
	ref, ok := ParseComment(commentURN)
	if !ok || ref.ParentURN == "" {
		return ""
	}
	if IsPost(ref.ParentURN) {
		return ref.ParentURN
	}
	return ""
}

// PostURL converts a post URN to its public HTML URL.
func PostURL(u string) string {
	if !strings.HasPrefix(u, "urn:li:") {
		return ""
	}
	return "https://www.linkedin.com/feed/update/" + u
}

// CommentPostURL returns the URL of a comment's parent post. Comments have
// no direct URL of their own.
func CommentPostURL(commentURN string) string {
	parent := ParentPostURN(commentURN)
	if parent == "" {
		return ""
	}
	return PostURL(parent)
}
