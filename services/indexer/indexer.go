// Package indexer runs the fetch-transform-load pipeline: catalog client in,
// normalized sqlite artifact out.
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chardila/mybgg/lib/scrapers/bgg"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/indexer")

type Service struct {
	client *bgg.Client
	db     *sql.DB
	opts   Options
}

type Options struct {
	Username         string
	SupportThreshold int
}

func NewService(client *bgg.Client, database *sql.DB, opts Options) Service {
	if opts.SupportThreshold <= 0 {
		opts.SupportThreshold = DefaultSupportThreshold
	}
	return Service{
		client: client,
		db:     database,
		opts:   opts,
	}
}

type Stats struct {
	Owned     int
	Skipped   int
	Persisted int
}

// Sync runs one full pipeline pass. Individual items that cannot be fetched
// or normalized are skipped with a warning; a bad credential or a failed
// commit aborts the whole run.
func (s Service) Sync(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Sync")
	defer span.End()
	span.SetAttributes(attribute.String("username", s.opts.Username))

	var stats Stats

	items, err := s.client.Collection(ctx, s.opts.Username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection stage failed")
		return stats, fmt.Errorf("collection stage: %w", err)
	}

	// the listing carries one row per owned copy, the artifact holds one
	// record per game
	byID := map[int]bgg.CollectionItem{}
	var ids []int
	for _, item := range items {
		if !item.Owned {
			continue
		}
		if _, ok := byID[item.ID]; ok {
			continue
		}
		byID[item.ID] = item
		ids = append(ids, item.ID)
	}
	stats.Owned = len(ids)
	slog.InfoContext(ctx, "collection fetched", "owned", stats.Owned)

	entries, expansions, err := s.client.Details(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail stage failed")
		return stats, fmt.Errorf("detail stage: %w", err)
	}

	records := make([]NormalizedRecord, 0, len(ids))
	for _, id := range ids {
		item := byID[id]
		entry, ok := entries[item.ID]
		if !ok {
			slog.WarnContext(ctx, "skipping item with no catalog entry", "id", item.ID)
			stats.Skipped++
			continue
		}
		rec, err := Transform(item, entry, expansions[item.ID], TransformOptions{
			SupportThreshold: s.opts.SupportThreshold,
		})
		if err != nil {
			slog.WarnContext(ctx, "skipping item", "id", item.ID, "err", err)
			stats.Skipped++
			continue
		}
		records = append(records, rec)
	}

	// deterministic artifact regardless of fetch order
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	err = WriteRecords(ctx, s.db, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence stage failed")
		return stats, fmt.Errorf("persistence stage: %w", err)
	}
	stats.Persisted = len(records)

	slog.InfoContext(
		ctx, "sync complete",
		"owned", stats.Owned,
		"skipped", stats.Skipped,
		"persisted", stats.Persisted,
	)
	return stats, nil
}
