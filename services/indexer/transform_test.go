package indexer

import (
	"testing"

	"github.com/chardila/mybgg/lib/scrapers/bgg"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func baseEntry(id int) bgg.CatalogEntry {
	entry := bgg.NewCatalogEntry(id)
	entry.Name = "Some Game"
	entry.Year = 2015
	entry.MinPlayers = 2
	entry.MaxPlayers = 4
	entry.PlayingTime = 90
	entry.Categories = []string{"Economic"}
	entry.Mechanics = []string{"Trading"}
	return entry
}

func TestMergePlayersBoxRangeOnly(t *testing.T) {
	players := MergePlayers(baseEntry(1), nil, DefaultSupportThreshold)

	require.Equal(t, []PlayerCount{
		{Count: 2, Source: SourceOfficial},
		{Count: 3, Source: SourceOfficial},
		{Count: 4, Source: SourceOfficial},
	}, players)
}

func TestMergePlayersVoteLabels(t *testing.T) {
	entry := baseEntry(1)
	entry.SuggestedVotes = []bgg.PlayerVote{
		{Count: 2, Votes: 15},          // inside the box range
		{Count: 5, Votes: 20},          // outside the box range
		{Count: 3, Votes: 3},           // below threshold, dropped
		{Count: 4, Open: true, Votes: 30}, // open-ended
	}

	players := MergePlayers(entry, nil, DefaultSupportThreshold)

	require.Equal(t, []PlayerCount{
		{Count: 2, Source: SourceOfficial},
		{Count: 3, Source: SourceOfficial},
		{Count: 4, Source: SourceOfficial},
		{Count: 5, Source: SourceCommunity},
		{Count: 4, Open: true, Source: SourceCommunity},
	}, players)
}

func TestMergePlayersExpansionVotes(t *testing.T) {
	expansion := bgg.ExpansionLink{
		ID:   99,
		Name: "Big Box",
		SuggestedVotes: []bgg.PlayerVote{
			{Count: 5, Votes: 12},
			{Count: 6, Votes: 25},
			// merged before the box-range fill, so the expansion label wins
			{Count: 3, Votes: 40},
		},
	}

	players := MergePlayers(baseEntry(1), []bgg.ExpansionLink{expansion}, DefaultSupportThreshold)

	require.Equal(t, []PlayerCount{
		{Count: 2, Source: SourceOfficial},
		{Count: 3, Source: SourceExpansion},
		{Count: 4, Source: SourceOfficial},
		{Count: 5, Source: SourceExpansion},
		{Count: 6, Source: SourceExpansion},
	}, players)
}

func TestMergePlayersIsIdempotent(t *testing.T) {
	expansion := bgg.ExpansionLink{
		ID:             99,
		SuggestedVotes: []bgg.PlayerVote{{Count: 5, Votes: 12}},
	}

	once := MergePlayers(baseEntry(1), []bgg.ExpansionLink{expansion}, DefaultSupportThreshold)
	twice := MergePlayers(baseEntry(1), []bgg.ExpansionLink{expansion, expansion}, DefaultSupportThreshold)

	require.Empty(t, cmp.Diff(once, twice))
}

func TestMergePlayersNoRangeAtAll(t *testing.T) {
	entry := bgg.NewCatalogEntry(1)
	entry.Name = "Rangeless"
	entry.SuggestedVotes = []bgg.PlayerVote{{Count: 3, Votes: 50}}

	players := MergePlayers(entry, nil, DefaultSupportThreshold)
	require.Equal(t, []PlayerCount{{Count: 3, Source: SourceCommunity}}, players)
}

func TestPlaytimeBuckets(t *testing.T) {
	cases := []struct {
		minutes int
		bucket  string
	}{
		{0, BucketUnknown},
		{-5, BucketUnknown},
		{1, BucketShort},
		{29, BucketShort},
		{30, BucketHalfHour},
		{45, BucketHalfHour},
		{59, BucketHalfHour},
		{60, BucketHour},
		{90, BucketHour},
		{119, BucketHour},
		{120, BucketLong},
		{130, BucketLong},
	}
	for _, c := range cases {
		require.Equal(t, c.bucket, PlaytimeBucket(c.minutes), "minutes=%d", c.minutes)
	}
}

func TestTransform(t *testing.T) {
	item := bgg.CollectionItem{ID: 1, Owned: true, Rating: 7.5, NumPlays: 12}

	rec, err := Transform(item, baseEntry(1), nil, TransformOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, rec.ID)
	require.Equal(t, "Some Game", rec.Name)
	require.Equal(t, 2015, rec.Year)
	require.Equal(t, 7.5, rec.Rating)
	require.Equal(t, 12, rec.NumPlays)
	require.Equal(t, BucketHour, rec.PlaytimeBucket)
	require.Equal(t, "some game economic trading", rec.SearchText)
	require.Len(t, rec.Players, 3)
}

func TestTransformRejectsNamelessEntries(t *testing.T) {
	entry := bgg.NewCatalogEntry(1)

	_, err := Transform(bgg.CollectionItem{ID: 1}, entry, nil, TransformOptions{})
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 1, terr.ID)
}

func TestTransformRejectsMismatchedEntries(t *testing.T) {
	_, err := Transform(bgg.CollectionItem{ID: 1}, baseEntry(2), nil, TransformOptions{})
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
}

func TestPlayerCountLabel(t *testing.T) {
	require.Equal(t, "4", PlayerCount{Count: 4}.Label())
	require.Equal(t, "7+", PlayerCount{Count: 7, Open: true}.Label())
}
