// Package analyze derives higher-level structure from the loaded activity
// graph.
package analyze

import "sort"

// Edge is an undirected interaction affinity between two people, weighted by
// how often they engaged with each other's activity.
type Edge struct {
	A      string
	B      string
	Weight int
}

// labelPropagation clusters people by propagating community labels over the
// affinity graph until no label changes. Deterministic: people are visited in
// sorted order, a node keeps its label on a tie, and otherwise adopts the
// lexicographically largest of the strongest neighbor labels.
type labelPropagation struct {
	maxIterations int
}

func (d labelPropagation) detect(people []string, edges []Edge) [][]string {
	if len(people) == 0 {
		return nil
	}

	adj := make(map[string]map[string]int, len(people))
	for _, p := range people {
		adj[p] = map[string]int{}
	}
	for _, e := range edges {
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		adj[e.A][e.B] += w
		adj[e.B][e.A] += w
	}

	order := append([]string(nil), people...)
	sort.Strings(order)

	labels := make(map[string]string, len(people))
	for _, p := range people {
		labels[p] = p
	}

	for iter := 0; iter < d.maxIterations; iter++ {
		changed := 0
		for _, p := range order {
			neighbors := adj[p]
			if len(neighbors) == 0 {
				continue
			}

			counts := map[string]int{}
			best := 0
			for n, w := range neighbors {
				counts[labels[n]] += w
				if counts[labels[n]] > best {
					best = counts[labels[n]]
				}
			}
			if counts[labels[p]] == best {
				continue
			}

			candidate := ""
			for l, c := range counts {
				if c == best && l > candidate {
					candidate = l
				}
			}
			if candidate != labels[p] {
				labels[p] = candidate
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	clusters := map[string][]string{}
	for _, p := range order {
		clusters[labels[p]] = append(clusters[labels[p]], p)
	}

	// Singletons are not communities.
	var communities [][]string
	for _, members := range clusters {
		if len(members) >= 2 {
			communities = append(communities, members)
		}
	}
	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i]) != len(communities[j]) {
			return len(communities[i]) > len(communities[j])
		}
		return communities[i][0] < communities[j][0]
	})
	return communities
}
