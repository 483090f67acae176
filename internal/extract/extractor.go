// Package extract turns activity records into graph nodes and relationships.
// Extraction is pure: no I/O, deterministic output order for the same input.
package extract

import (
	"github.com/agenthands/actigraph/internal/model"
	"github.com/agenthands/actigraph/internal/urn"
)

// builder accumulates nodes per label group and relationships, deduplicating
// by merge key while preserving first-seen order.
type builder struct {
	people    *nodeSet
	posts     *nodeSet
	comments  *nodeSet
	resources *nodeSet

	rels    []model.Relationship
	relSeen map[string]struct{}
	skipped map[string]int
}

type nodeSet struct {
	order []string
	byKey map[string]model.Node
}

func newNodeSet() *nodeSet {
	return &nodeSet{byKey: make(map[string]model.Node)}
}

func (s *nodeSet) has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// add inserts the node unless the key is already present.
func (s *nodeSet) add(n model.Node) {
	if s.has(n.Key) {
		return
	}
	s.order = append(s.order, n.Key)
	s.byKey[n.Key] = n
}

// upgrade replaces an existing node when the new one carries content and the
// stored one is a bare placeholder.
func (s *nodeSet) upgrade(n model.Node) {
	existing, ok := s.byKey[n.Key]
	if !ok {
		s.add(n)
		return
	}
	if len(n.Props) > len(existing.Props) {
		s.byKey[n.Key] = n
	}
}

func (s *nodeSet) nodes() []model.Node {
	out := make([]model.Node, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

func (b *builder) addRel(r model.Relationship) {
	if r.Key == "" {
		r.Key = model.RelationshipKey(r.From, r.Type, r.To)
	}
	if _, dup := b.relSeen[r.Key]; dup {
		return
	}
	b.relSeen[r.Key] = struct{}{}
	b.rels = append(b.rels, r)
}

// Extract maps activity records onto graph data. Records of unknown type or
// missing their mandatory fields are counted in Skipped, never fatal. The
// same records always produce the same nodes and relationships in the same
// order.
func Extract(records []model.ActivityRecord) *model.GraphData {
	b := &builder{
		people:    newNodeSet(),
		posts:     newNodeSet(),
		comments:  newNodeSet(),
		resources: newNodeSet(),
		relSeen:   make(map[string]struct{}),
		skipped:   make(map[string]int),
	}

	for _, rec := range records {
		if !model.KnownActivityTypes[rec.ActivityType] {
			b.skipped["unknown_activity_type"]++
			continue
		}
		if rec.AuthorURN == "" || rec.ActivityURN == "" {
			b.skipped["missing_identity"]++
			continue
		}

		b.person(rec.AuthorURN)

		switch rec.ActivityType {
		case model.ActivityPost:
			b.post(rec)
		case model.ActivityRepost:
			b.repost(rec)
		case model.ActivityInstantRepost:
			b.instantRepost(rec)
		case model.ActivityComment:
			b.comment(rec)
		case model.ActivityReactionToPost, model.ActivityReactionToComment:
			b.reaction(rec)
		}
	}

	b.resolveOrphans()

	nodes := b.people.nodes()
	nodes = append(nodes, b.posts.nodes()...)
	nodes = append(nodes, b.comments.nodes()...)
	nodes = append(nodes, b.resources.nodes()...)

	return &model.GraphData{
		Nodes:         nodes,
		Relationships: b.rels,
		Skipped:       b.skipped,
	}
}

func (b *builder) person(personURN string) {
	if !urn.IsPerson(personURN) {
		return
	}
	b.people.add(model.Node{
		Key:   personURN,
		Label: model.LabelPerson,
		Props: map[string]any{
			"urn":       personURN,
			"person_id": urn.ExtractID(personURN),
		},
	})
}

func (b *builder) placeholderPost(postURN string) {
	b.posts.add(model.Node{
		Key:   postURN,
		Label: model.LabelPost,
		Props: map[string]any{
			"urn":     postURN,
			"post_id": urn.ExtractID(postURN),
			"url":     urn.PostURL(postURN),
		},
	})
}

func (b *builder) post(rec model.ActivityRecord) {
	props := map[string]any{
		"urn":         rec.ActivityURN,
		"post_id":     urn.ExtractID(rec.ActivityURN),
		"url":         rec.PostURL,
		"type":        "original",
		"has_content": rec.Content != "",
		"timestamp":   rec.Time,
		"created_at":  rec.CreatedAt,
	}
	if rec.Content != "" {
		props["content"] = rec.Content
	}
	b.posts.upgrade(model.Node{Key: rec.ActivityURN, Label: model.LabelPost, Props: props})

	b.addRel(model.Relationship{
		Type: model.RelIsAuthorOf,
		From: rec.AuthorURN,
		To:   rec.ActivityURN,
		Props: map[string]any{
			"timestamp":  rec.Time,
			"created_at": rec.CreatedAt,
		},
	})
	b.linkResources(rec.ActivityURN, rec.Content)
}

func (b *builder) repost(rec model.ActivityRecord) {
	props := map[string]any{
		"urn":         rec.ActivityURN,
		"post_id":     urn.ExtractID(rec.ActivityURN),
		"url":         rec.PostURL,
		"type":        "repost",
		"has_content": rec.Content != "",
		"timestamp":   rec.Time,
		"created_at":  rec.CreatedAt,
	}
	if rec.Content != "" {
		props["content"] = rec.Content
	}
	if rec.OriginalPostURN != "" {
		props["original_post_urn"] = rec.OriginalPostURN
	}
	b.posts.upgrade(model.Node{Key: rec.ActivityURN, Label: model.LabelPost, Props: props})

	b.addRel(model.Relationship{
		Type: model.RelReposts,
		From: rec.AuthorURN,
		To:   rec.ActivityURN,
		Props: map[string]any{
			"timestamp":  rec.Time,
			"created_at": rec.CreatedAt,
		},
	})

	if rec.OriginalPostURN != "" {
		b.placeholderPost(rec.OriginalPostURN)
		b.addRel(model.Relationship{
			Type:  model.RelReposts,
			From:  rec.ActivityURN,
			To:    rec.OriginalPostURN,
			Props: map[string]any{"relationship_type": "repost_of"},
		})
	}
	b.linkResources(rec.ActivityURN, rec.Content)
}

func (b *builder) instantRepost(rec model.ActivityRecord) {
	b.placeholderPost(rec.ActivityURN)
	b.addRel(model.Relationship{
		Type: model.RelReposts,
		From: rec.AuthorURN,
		To:   rec.ActivityURN,
		Props: map[string]any{
			"timestamp":   rec.Time,
			"created_at":  rec.CreatedAt,
			"repost_type": "instant",
		},
	})
}

func (b *builder) comment(rec model.ActivityRecord) {
	commentURN := rec.ActivityURN
	ref, _ := urn.ParseComment(commentURN)

	b.comments.upgrade(model.Node{
		Key:   commentURN,
		Label: model.LabelComment,
		Props: map[string]any{
			"urn":        commentURN,
			"comment_id": ref.CommentID,
			"text":       rec.Content,
			"timestamp":  rec.Time,
			"created_at": rec.CreatedAt,
			"url":        urn.CommentPostURL(commentURN),
		},
	})

	// The enclosing post, when derivable from the comment URN.
	if postURN := urn.ParentPostURN(commentURN); postURN != "" {
		b.placeholderPost(postURN)
	}

	b.addRel(model.Relationship{
		Type: model.RelIsAuthorOf,
		From: rec.AuthorURN,
		To:   commentURN,
		Props: map[string]any{
			"timestamp":  rec.Time,
			"created_at": rec.CreatedAt,
		},
	})

	target := rec.ParentURN
	if target == "" {
		target = urn.ParentPostURN(commentURN)
	}
	if target != "" {
		b.addRel(model.Relationship{
			Type: model.RelCommentsOn,
			From: commentURN,
			To:   target,
			Props: map[string]any{
				"timestamp":  rec.Time,
				"created_at": rec.CreatedAt,
			},
		})
	}
	b.linkResources(commentURN, rec.Content)
}

func (b *builder) reaction(rec model.ActivityRecord) {
	target := rec.ActivityURN
	if urn.IsComment(target) {
		b.comments.add(model.Node{
			Key:   target,
			Label: model.LabelComment,
			Props: map[string]any{"urn": target},
		})
	} else {
		b.placeholderPost(target)
	}

	// Reactions keep their timestamp in the merge key so two reactions by
	// the same person on the same target stay distinct edges.
	b.addRel(model.Relationship{
		Key:  model.RelationshipKey(rec.AuthorURN, model.RelReactedTo, target) + "|" + model.FormatTimestamp(rec.Time),
		Type: model.RelReactedTo,
		From: rec.AuthorURN,
		To:   target,
		Props: map[string]any{
			"reaction_type": rec.ReactionType,
			"timestamp":     rec.Time,
			"created_at":    rec.CreatedAt,
		},
	})
}

// linkResources creates Resource nodes for external URLs in content and
// LINKS_TO edges from the source entity.
func (b *builder) linkResources(sourceKey, content string) {
	for _, u := range ExtractURLs(content) {
		if ShouldIgnoreURL(u) {
			continue
		}
		domain, resourceType := CategorizeURL(u)
		if domain == "" {
			continue
		}
		b.resources.add(model.Node{
			Key:   u,
			Label: model.LabelResource,
			Props: map[string]any{
				"url":    u,
				"domain": domain,
				"type":   resourceType,
			},
		})
		b.addRel(model.Relationship{
			Type: model.RelLinksTo,
			From: sourceKey,
			To:   u,
		})
	}
}

// resolveOrphans makes sure every relationship endpoint exists as a node.
// A reply whose parent comment never appeared in the batch gets a bare
// placeholder Comment so the edge still loads, and the reply itself is
// marked parent_unresolved.
func (b *builder) resolveOrphans() {
	for _, rel := range b.rels {
		for _, key := range []string{rel.From, rel.To} {
			if b.people.has(key) || b.posts.has(key) || b.comments.has(key) || b.resources.has(key) {
				continue
			}
			switch {
			case urn.IsPerson(key):
				b.person(key)
			case urn.IsComment(key):
				b.comments.add(model.Node{
					Key:   key,
					Label: model.LabelComment,
					Props: map[string]any{
						"urn":         key,
						"placeholder": true,
					},
				})
				if rel.Type == model.RelCommentsOn && key == rel.To {
					if child, ok := b.comments.byKey[rel.From]; ok {
						child.Props["parent_unresolved"] = true
					}
				}
			default:
				b.placeholderPost(key)
			}
		}
	}
}
