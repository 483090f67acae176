package model

import "time"

// ActivityType enumerates the recognised activity kinds in the record store.
type ActivityType string

const (
	ActivityPost              ActivityType = "post"
	ActivityComment           ActivityType = "comment"
	ActivityRepost            ActivityType = "repost"
	ActivityInstantRepost     ActivityType = "instant_repost"
	ActivityReactionToPost    ActivityType = "reaction_to_post"
	ActivityReactionToComment ActivityType = "reaction_to_comment"
)

// KnownActivityTypes is the set of types the extractor will accept.
var KnownActivityTypes = map[ActivityType]bool{
	ActivityPost:              true,
	ActivityComment:           true,
	ActivityRepost:            true,
	ActivityInstantRepost:     true,
	ActivityReactionToPost:    true,
	ActivityReactionToComment: true,
}

// ReactionUnspecified is the sentinel reaction type for source values
// outside the recognised set (or absent entirely).
const ReactionUnspecified = "UNSPECIFIED"

var knownReactionTypes = map[string]bool{
	"LIKE":          true,
	"PRAISE":        true,
	"EMPATHY":       true,
	"INTEREST":      true,
	"APPRECIATION":  true,
	"ENTERTAINMENT": true,
	"MAYBE":         true,
}

// NormalizeReactionType maps a raw source reaction type onto the recognised
// enum, collapsing anything unknown to ReactionUnspecified.
func NormalizeReactionType(raw string) string {
	if knownReactionTypes[raw] {
		return raw
	}
	return ReactionUnspecified
}

// ActivityRecord is one observed activity event, one row in the append-only
// record store. Records are never mutated or deleted after append.
type ActivityRecord struct {
	Owner           string
	ActivityType    ActivityType
	Time            int64 // epoch milliseconds
	ReactionType    string
	AuthorURN       string
	ActivityURN     string
	PostURL         string
	Content         string
	ParentURN       string
	OriginalPostURN string
	CreatedAt       string // RFC 3339, derived from Time at record creation
}

// IsReaction reports whether the record is a reaction activity.
func (r ActivityRecord) IsReaction() bool {
	return r.ActivityType == ActivityReactionToPost || r.ActivityType == ActivityReactionToComment
}

// ID returns the record's deduplication identity. Posts, comments and
// reposts are identified by their activity URN. Reactions have no URN of
// their own in the source data, so their identity is synthesized from
// actor, target and timestamp; two reactions by the same actor on the same
// target at the same millisecond collapse into one record.
func (r ActivityRecord) ID() string {
	if r.IsReaction() {
		return SyntheticReactionKey(r.AuthorURN, r.ActivityURN, r.Time)
	}
	return r.ActivityURN
}

// CreatedTime parses the CreatedAt field, falling back to the epoch
// millisecond Time when CreatedAt is empty or malformed.
func (r ActivityRecord) CreatedTime() time.Time {
	if r.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			return t
		}
	}
	return time.UnixMilli(r.Time).UTC()
}

// FormatTimestamp renders an epoch millisecond timestamp as RFC 3339 in UTC.
// Zero yields the empty string.
func FormatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
