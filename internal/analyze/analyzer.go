package analyze

import (
	"context"
	"fmt"

	"github.com/agenthands/actigraph/internal/driver"
)

type Analyzer struct {
	driver driver.GraphDriver
	lpa    labelPropagation
}

func New(d driver.GraphDriver) *Analyzer {
	return &Analyzer{driver: d, lpa: labelPropagation{maxIterations: 20}}
}

// Community is a cluster of people who repeatedly engage with each other's
// activity. Members are sorted; people with no mutual engagement are not
// reported.
type Community struct {
	ID      int      `json:"id"`
	Size    int      `json:"size"`
	Members []string `json:"members"`
}

// Communities clusters every person in the graph by interaction affinity.
func (a *Analyzer) Communities(ctx context.Context) ([]Community, error) {
	people, err := a.people(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := a.affinities(ctx)
	if err != nil {
		return nil, err
	}

	var out []Community
	for i, members := range a.lpa.detect(people, edges) {
		out = append(out, Community{ID: i + 1, Size: len(members), Members: members})
	}
	return out, nil
}

func (a *Analyzer) people(ctx context.Context) ([]string, error) {
	result, err := a.driver.ExecuteQuery(ctx, driver.PersonListQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	people := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		if urn, ok := rec.Get("urn"); ok {
			if s, ok := urn.(string); ok && s != "" {
				people = append(people, s)
			}
		}
	}
	return people, nil
}

// affinities folds the directed engagement counts into undirected edges.
func (a *Analyzer) affinities(ctx context.Context) ([]Edge, error) {
	result, err := a.driver.ExecuteQuery(ctx, driver.PersonAffinityQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query person affinities: %w", err)
	}

	weights := map[[2]string]int{}
	for _, rec := range result.Records {
		from, _ := rec.Get("a")
		to, _ := rec.Get("b")
		w, _ := rec.Get("weight")
		src, srcOK := from.(string)
		dst, dstOK := to.(string)
		n, nOK := w.(int64)
		if !srcOK || !dstOK || !nOK || src == "" || dst == "" {
			continue
		}
		if src > dst {
			src, dst = dst, src
		}
		weights[[2]string{src, dst}] += int(n)
	}

	edges := make([]Edge, 0, len(weights))
	for pair, w := range weights {
		edges = append(edges, Edge{A: pair[0], B: pair[1], Weight: w})
	}
	return edges, nil
}
