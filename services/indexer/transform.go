package indexer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chardila/mybgg/lib/scrapers/bgg"
)

// provenance of a player-count bucket
const (
	SourceOfficial  = "official"
	SourceExpansion = "expansion"
	SourceCommunity = "community"
)

// DefaultSupportThreshold is the poll-vote count below which a suggested
// player count is not believed. Upstream semantics here are fuzzy, so it
// stays tunable instead of being hardcoded deeper down.
const DefaultSupportThreshold = 10

type PlayerCount struct {
	Count  int
	Open   bool
	Source string
}

// Label renders the count for display: "4", or "4+" for open-ended.
func (p PlayerCount) Label() string {
	if p.Open {
		return strconv.Itoa(p.Count) + "+"
	}
	return strconv.Itoa(p.Count)
}

// NormalizedRecord is the merged, persistence-ready form of one owned
// collection item. It is the only entity that outlives a sync run.
type NormalizedRecord struct {
	ID             int
	Name           string
	Year           int
	Rating         float64
	NumPlays       int
	Image          string
	Categories     []string
	Mechanics      []string
	Players        []PlayerCount
	PlaytimeBucket string
	SearchText     string
}

type TransformOptions struct {
	SupportThreshold int
}

// TransformError marks catalog data that cannot be mapped to a record. The
// affected item is skipped, the run continues.
type TransformError struct {
	ID     int
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("cannot normalize item %d: %s", e.ID, e.Reason)
}

// Transform merges one collection item with its catalog entry and the votes
// of its expansions into a NormalizedRecord.
func Transform(item bgg.CollectionItem, entry bgg.CatalogEntry, expansions []bgg.ExpansionLink, opts TransformOptions) (NormalizedRecord, error) {
	if opts.SupportThreshold <= 0 {
		opts.SupportThreshold = DefaultSupportThreshold
	}
	if entry.ID != item.ID {
		return NormalizedRecord{}, &TransformError{
			ID:     item.ID,
			Reason: fmt.Sprintf("catalog entry id %d does not match", entry.ID),
		}
	}
	if entry.Name == "" {
		return NormalizedRecord{}, &TransformError{ID: item.ID, Reason: "catalog entry has no name"}
	}

	rec := NormalizedRecord{
		ID:         item.ID,
		Name:       entry.Name,
		Year:       entry.Year,
		Rating:     item.Rating,
		NumPlays:   item.NumPlays,
		Image:      entry.Image,
		Categories: append([]string{}, entry.Categories...),
		Mechanics:  append([]string{}, entry.Mechanics...),
	}
	rec.Players = MergePlayers(entry, expansions, opts.SupportThreshold)
	rec.PlaytimeBucket = PlaytimeBucket(entry.PlayingTime)
	rec.SearchText = searchText(entry)
	return rec, nil
}

type playerKey struct {
	count int
	open  bool
}

// MergePlayers builds the ordered, de-duplicated player-count list:
//
//  1. the entry's own poll votes that clear the support threshold, labeled
//     official when the count sits inside the box-stated range, community
//     otherwise
//  2. expansion poll votes for counts not already present, labeled expansion
//  3. every integer of the box-stated range not already present, labeled
//     official
//
// Fixed counts sort ascending, open-ended counts sort after all fixed ones.
// Merging the same expansion twice changes nothing.
func MergePlayers(entry bgg.CatalogEntry, expansions []bgg.ExpansionLink, threshold int) []PlayerCount {
	present := map[playerKey]bool{}
	var out []PlayerCount
	add := func(count int, open bool, source string) {
		key := playerKey{count, open}
		if present[key] {
			return
		}
		present[key] = true
		out = append(out, PlayerCount{Count: count, Open: open, Source: source})
	}

	hasRange := entry.MinPlayers > 0 && entry.MaxPlayers >= entry.MinPlayers

	for _, v := range entry.SuggestedVotes {
		if v.Votes < threshold {
			continue
		}
		source := SourceCommunity
		if hasRange && !v.Open && v.Count >= entry.MinPlayers && v.Count <= entry.MaxPlayers {
			source = SourceOfficial
		}
		add(v.Count, v.Open, source)
	}

	for _, exp := range expansions {
		for _, v := range exp.SuggestedVotes {
			if v.Votes < threshold {
				continue
			}
			add(v.Count, v.Open, SourceExpansion)
		}
	}

	if hasRange {
		for n := entry.MinPlayers; n <= entry.MaxPlayers; n++ {
			add(n, false, SourceOfficial)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Open != out[j].Open {
			return !out[i].Open
		}
		return out[i].Count < out[j].Count
	})
	return out
}

// playtime buckets in display order, lower edge inclusive
const (
	BucketUnknown  = "unknown"
	BucketShort    = "<30min"
	BucketHalfHour = "30min-1h"
	BucketHour     = "1-2h"
	BucketLong     = "2h+"
)

func PlaytimeBucket(minutes int) string {
	switch {
	case minutes <= 0:
		return BucketUnknown
	case minutes < 30:
		return BucketShort
	case minutes < 60:
		return BucketHalfHour
	case minutes < 120:
		return BucketHour
	default:
		return BucketLong
	}
}

func searchText(entry bgg.CatalogEntry) string {
	parts := make([]string, 0, 1+len(entry.Categories)+len(entry.Mechanics))
	parts = append(parts, entry.Name)
	parts = append(parts, entry.Categories...)
	parts = append(parts, entry.Mechanics...)
	return strings.ToLower(strings.Join(parts, " "))
}
