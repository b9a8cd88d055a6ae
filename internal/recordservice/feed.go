package recordservice

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/starford/folio/internal/models"
)

// Change kinds reported by Feed.
const (
	KindCreated = "created"
	KindChanged = "changed"
	KindDeleted = "deleted"
)

// EventFunc receives one record change.
type EventFunc func(kind, typ, id string)

// Delta is one difference between two listings.
type Delta struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Feed observes typ and calls cb for every record that appeared, changed or
// disappeared between successive listings, until ctx ends. The first listing
// only seeds the comparison.
func (s *Service) Feed(ctx context.Context, typ string, cb EventFunc) error {
	stream, err := s.WatchAll(ctx, typ, "", "")
	if err != nil {
		return err
	}
	defer stream.Close()

	s.logger.Info("feed: started", slog.String("type", typ))
	var prev map[string]models.Document
	for docs := range stream.C {
		next := byID(docs)
		if prev != nil {
			for _, d := range Diff(prev, next) {
				cb(d.Kind, typ, d.ID)
			}
		}
		prev = next
	}
	s.logger.Info("feed: stopped", slog.String("type", typ))
	return stream.Err()
}

// Diff compares two listings keyed by id. Deltas are ordered by id.
func Diff(prev, next map[string]models.Document) []Delta {
	var out []Delta
	for id, doc := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			out = append(out, Delta{Kind: KindCreated, ID: id})
		case !old.Equal(doc):
			out = append(out, Delta{Kind: KindChanged, ID: id})
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			out = append(out, Delta{Kind: KindDeleted, ID: id})
		}
	}
	slices.SortFunc(out, func(a, b Delta) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func byID(docs []models.Document) map[string]models.Document {
	m := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		m[d.RecordID()] = d
	}
	return m
}
