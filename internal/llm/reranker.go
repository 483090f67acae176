package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reranker reorders retrieved documents by relevance to a query using the
// generator itself. On any failure it falls back to the input order, so a
// flaky model never loses results.
type Reranker struct {
	gen Generator
}

func NewReranker(gen Generator) *Reranker {
	return &Reranker{gen: gen}
}

// Rank returns document indices ordered most-relevant-first. Indices the
// model fails to mention are appended in original order.
func (r *Reranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) <= 1 {
		indices := make([]int, len(docs))
		return indices, nil
	}

	var sb strings.Builder
	for i, d := range docs {
		// Truncate on runes so a multi-byte character is never split.
		if runes := []rune(d); len(runes) > 200 {
			d = string(runes[:200]) + "..."
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i, d)
	}

	prompt := fmt.Sprintf(`You are a search relevance system.
Query: %s

Documents:
%s
Rank the documents above by relevance to the query.
Output ONLY the document indices in order, separated by commas. Example: 0, 2, 1
Do not output any other text.`, query, sb.String())

	resp, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return identityOrder(len(docs)), nil
	}
	return mergeRanking(parseIndices(resp), len(docs)), nil
}

func identityOrder(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// mergeRanking keeps the model's ordering for valid indices and appends any
// it dropped, so the result is always a permutation of [0, n).
func mergeRanking(ranked []int, n int) []int {
	seen := make(map[int]bool, n)
	out := make([]int, 0, n)
	for _, i := range ranked {
		if i >= 0 && i < n && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

var indexPattern = regexp.MustCompile(`\d+`)

func parseIndices(s string) []int {
	var indices []int
	for _, m := range indexPattern.FindAllString(s, -1) {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}
