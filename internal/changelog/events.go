package changelog

import (
	"strings"

	"github.com/agenthands/actigraph/internal/model"
	"github.com/agenthands/actigraph/internal/urn"
)

// Resource names carried by member changelog events.
const (
	ResourceReactions      = "socialActions/likes"
	ResourceComments       = "socialActions/comments"
	ResourcePosts          = "ugcPosts"
	ResourcePost           = "ugcPost"
	ResourceInstantReposts = "instantReposts"
)

// Event is one element of the member changelog feed. The activity payload
// varies by resource, so it stays a raw map and is drilled into with the
// typed getters below.
type Event struct {
	ResourceName string         `json:"resourceName"`
	ResourceID   string         `json:"resourceId,omitempty"`
	ResourceURI  string         `json:"resourceUri,omitempty"`
	Method       string         `json:"method,omitempty"`
	MethodName   string         `json:"methodName,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	Owner        string         `json:"owner,omitempty"`
	ProcessedAt  int64          `json:"processedAt,omitempty"`
	CapturedAt   int64          `json:"capturedAt,omitempty"`
	Activity     map[string]any `json:"activity,omitempty"`
}

// IsDelete reports whether the event records a deletion.
func (e Event) IsDelete() bool {
	method := e.Method
	if method == "" {
		method = e.MethodName
	}
	return strings.EqualFold(method, "DELETE")
}

func (e Event) actor() string {
	if e.Actor != "" {
		return e.Actor
	}
	return str(e.Activity, "actor")
}

// createdTime returns the activity creation time in epoch milliseconds,
// falling back to the event's processedAt when the payload omits it.
func (e Event) createdTime() int64 {
	if ms := i64(sub(e.Activity, "created"), "time"); ms != 0 {
		return ms
	}
	return e.ProcessedAt
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func sub(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func i64(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// MaxProcessedAt returns the newest processedAt across the events, for
// advancing the fetch cursor. Zero if the slice is empty.
func MaxProcessedAt(events []Event) int64 {
	var max int64
	for _, e := range events {
		if e.ProcessedAt > max {
			max = e.ProcessedAt
		}
	}
	return max
}

// RecordsFromEvents maps changelog events onto activity records, in event
// order. A DELETE reaction event removes the matching reaction records
// accumulated earlier in the same batch rather than producing one. Events
// that cannot be mapped are counted per reason in the returned map.
func RecordsFromEvents(events []Event, owner string) ([]model.ActivityRecord, map[string]int) {
	var records []model.ActivityRecord
	skipped := make(map[string]int)

	for _, e := range events {
		name := e.ResourceName
		payload := e.Activity

		switch {
		case strings.Contains(name, ResourceReactions):
			records = reaction(e, payload, owner, records, skipped)
		case strings.Contains(name, ResourceComments) || isCommentShaped(payload):
			// Comment activities occasionally surface under a post
			// resource name; route by payload shape as well.
			records = comment(e, payload, owner, records, skipped)
		case strings.Contains(strings.ToLower(name), strings.ToLower(ResourcePost)):
			records = post(e, payload, owner, records, skipped)
		case strings.Contains(name, ResourceInstantReposts):
			records = instantRepost(e, payload, owner, records, skipped)
		default:
			skipped["unknown_resource"]++
		}
	}
	return records, skipped
}

func isCommentShaped(activity map[string]any) bool {
	return str(activity, "object") != "" && sub(activity, "message") != nil
}

// reactionTarget finds the post or comment URN a reaction applies to. The
// changelog is inconsistent about where it lives.
func reactionTarget(e Event, activity map[string]any) string {
	if t := str(activity, "root"); t != "" {
		return t
	}
	if t := str(activity, "object"); t != "" {
		return t
	}
	if strings.HasPrefix(e.ResourceID, "urn:li:") {
		return e.ResourceID
	}
	// e.g. /socialActions/urn:li:activity:123/likes/urn:li:person:abc
	for _, part := range strings.Split(e.ResourceURI, "/") {
		if strings.HasPrefix(part, "urn:li:") {
			return part
		}
	}
	reactionURN := str(activity, "$URN")
	if reactionURN == "" {
		reactionURN = str(activity, "urn")
	}
	if inner, ok := strings.CutPrefix(reactionURN, "urn:li:reaction:("); ok {
		parts := strings.Split(strings.TrimSuffix(inner, ")"), ",")
		if len(parts) == 2 {
			if target := strings.TrimSpace(parts[1]); strings.HasPrefix(target, "urn:li:") {
				return target
			}
		}
	}
	return ""
}

func reaction(e Event, activity map[string]any, owner string, records []model.ActivityRecord, skipped map[string]int) []model.ActivityRecord {
	target := reactionTarget(e, activity)
	actor := e.actor()
	if target == "" {
		skipped["reaction_no_target"]++
		return records
	}
	if actor == "" {
		skipped["reaction_no_actor"]++
		return records
	}

	if e.IsDelete() {
		// Un-reaction: drop the matching reactions gathered so far.
		kept := records[:0]
		for _, r := range records {
			if r.IsReaction() && r.AuthorURN == actor && r.ActivityURN == target {
				continue
			}
			kept = append(kept, r)
		}
		return kept
	}

	activityType := model.ActivityReactionToPost
	postURL := urn.PostURL(target)
	if urn.IsComment(target) {
		activityType = model.ActivityReactionToComment
		postURL = urn.CommentPostURL(target)
	}
	ms := e.createdTime()

	return append(records, model.ActivityRecord{
		Owner:        owner,
		ActivityType: activityType,
		Time:         ms,
		ReactionType: model.NormalizeReactionType(str(activity, "reactionType")),
		AuthorURN:    actor,
		ActivityURN:  target,
		PostURL:      postURL,
		CreatedAt:    model.FormatTimestamp(ms),
	})
}

func post(e Event, activity map[string]any, owner string, records []model.ActivityRecord, skipped map[string]int) []model.ActivityRecord {
	postURN := str(activity, "id")
	if postURN == "" {
		skipped["post_no_id"]++
		return records
	}
	if !urn.IsPost(postURN) {
		skipped["post_unrecognized_urn"]++
		return records
	}

	author := str(activity, "author")
	if author == "" {
		author = str(sub(activity, "firstPublishedActor"), "member")
	}
	if author == "" {
		author = e.actor()
	}

	shareContent := sub(sub(activity, "specificContent"), "com.linkedin.ugc.ShareContent")
	content := str(sub(shareContent, "shareCommentary"), "text")

	responseContext := sub(activity, "responseContext")
	isRepost := str(activity, "ugcOrigin") == "RESHARE" || str(responseContext, "parent") != ""

	activityType := model.ActivityPost
	var originalURN string
	if isRepost {
		activityType = model.ActivityRepost
		originalURN = str(responseContext, "parent")
		if originalURN == "" {
			originalURN = str(responseContext, "root")
		}
	}
	ms := e.createdTime()

	return append(records, model.ActivityRecord{
		Owner:           owner,
		ActivityType:    activityType,
		Time:            ms,
		AuthorURN:       author,
		ActivityURN:     postURN,
		PostURL:         urn.PostURL(postURN),
		Content:         content,
		OriginalPostURN: originalURN,
		CreatedAt:       model.FormatTimestamp(ms),
	})
}

func comment(e Event, activity map[string]any, owner string, records []model.ActivityRecord, skipped map[string]int) []model.ActivityRecord {
	commentID := str(activity, "id")
	postURN := str(activity, "object")
	actor := e.actor()

	if commentID == "" {
		skipped["comment_no_id"]++
		return records
	}
	if postURN == "" {
		skipped["comment_no_post_urn"]++
		return records
	}
	if actor == "" {
		skipped["comment_no_actor"]++
		return records
	}

	commentURN := urn.BuildComment(postURN, commentID)
	if commentURN == "" {
		skipped["comment_invalid_urn"]++
		return records
	}

	parentURN := parentCommentURN(activity, postURN)
	if parentURN == "" {
		parentURN = postURN
	}
	ms := e.createdTime()

	return append(records, model.ActivityRecord{
		Owner:        owner,
		ActivityType: model.ActivityComment,
		Time:         ms,
		AuthorURN:    actor,
		ActivityURN:  commentURN,
		PostURL:      urn.CommentPostURL(commentURN),
		Content:      str(sub(activity, "message"), "text"),
		ParentURN:    parentURN,
		CreatedAt:    model.FormatTimestamp(ms),
	})
}

// parentCommentURN digs a parent comment reference out of the payload. Replies
// carry it under a handful of key spellings, sometimes as a bare numeric id.
func parentCommentURN(activity map[string]any, postURN string) string {
	keys := []string{
		"parent", "parentComment", "parentCommentUrn",
		"parentCommentURN", "parentCommentId", "parentCommentID",
	}
	for _, container := range []map[string]any{sub(activity, "responseContext"), activity} {
		if container == nil {
			continue
		}
		for _, key := range keys {
			raw, ok := container[key].(string)
			if !ok || raw == "" {
				continue
			}
			if urn.IsComment(raw) {
				return raw
			}
			if isDigits(raw) {
				if built := urn.BuildComment(postURN, raw); built != "" {
					return built
				}
			}
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func instantRepost(e Event, activity map[string]any, owner string, records []model.ActivityRecord, skipped map[string]int) []model.ActivityRecord {
	share := str(sub(activity, "repostedContent"), "share")
	actor := e.actor()
	if share == "" {
		skipped["instant_repost_no_share"]++
		return records
	}
	if actor == "" {
		skipped["instant_repost_no_actor"]++
		return records
	}
	ms := e.createdTime()

	return append(records, model.ActivityRecord{
		Owner:           owner,
		ActivityType:    model.ActivityInstantRepost,
		Time:            ms,
		AuthorURN:       actor,
		ActivityURN:     share,
		PostURL:         urn.PostURL(share),
		OriginalPostURN: share,
		CreatedAt:       model.FormatTimestamp(ms),
	})
}
