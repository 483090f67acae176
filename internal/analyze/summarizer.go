package analyze

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/llm"
)

// ActivitySummary is a generated digest of a period of posts and comments.
type ActivitySummary struct {
	Items int    `json:"items"`
	Since int64  `json:"since,omitempty"`
	Text  string `json:"text"`
}

// Summarizer digests recent graph content with the generator: themes,
// technologies and recurring people across the period's posts and comments.
type Summarizer struct {
	driver driver.GraphDriver
	gen    llm.Generator
}

func NewSummarizer(d driver.GraphDriver, gen llm.Generator) *Summarizer {
	return &Summarizer{driver: d, gen: gen}
}

const (
	defaultSummaryItems = 50
	summaryItemRunes    = 2000
)

// Summarize collects posts and comments with timestamp >= since (0 means no
// cutoff), newest first up to limit, and generates one digest over them.
func (s *Summarizer) Summarize(ctx context.Context, since int64, limit int) (*ActivitySummary, error) {
	if s.gen == nil {
		return nil, fmt.Errorf("configured llm provider has no generation support")
	}
	if limit <= 0 {
		limit = defaultSummaryItems
	}

	result, err := s.driver.ExecuteQuery(ctx, driver.RecentActivityQuery, map[string]any{
		"since": since,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect recent activity: %w", err)
	}

	var sb strings.Builder
	items := 0
	for _, rec := range result.Records {
		text := ""
		if v, ok := rec.Get("text"); ok {
			text, _ = v.(string)
		}
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > summaryItemRunes {
			text = string(runes[:summaryItemRunes]) + "..."
		}
		label := "Post"
		if v, ok := rec.Get("labels"); ok {
			if labels, ok := v.([]any); ok && len(labels) > 0 {
				label, _ = labels[0].(string)
			}
		}
		items++
		fmt.Fprintf(&sb, "[%s] %s\n", label, text)
	}

	summary := &ActivitySummary{Items: items, Since: since}
	if items == 0 {
		summary.Text = "No activity in the requested period."
		return summary, nil
	}

	prompt := fmt.Sprintf(`You summarize a period of LinkedIn activity.

Activity, newest first:
---
%s---

Write a short digest of the activity above: the main themes, the
technologies discussed, and any people or projects that come up repeatedly.
Plain text only, no preamble.`, sb.String())

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate activity summary: %w", err)
	}
	summary.Text = strings.TrimSpace(text)
	return summary, nil
}

// ParseWindow converts a period like "7d", "2w" or "1m" into a duration.
// Months count as 30 days.
func ParseWindow(period string) (time.Duration, error) {
	if len(period) < 2 {
		return 0, fmt.Errorf("invalid period %q, expected forms like 7d, 2w, 1m", period)
	}
	n, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid period %q, expected forms like 7d, 2w, 1m", period)
	}
	switch period[len(period)-1] {
	case 'd', 'D':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w', 'W':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm', 'M':
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid period %q, expected forms like 7d, 2w, 1m", period)
}
