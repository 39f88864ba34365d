package bgg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlayerCount(t *testing.T) {
	cases := []struct {
		in    string
		count int
		open  bool
		ok    bool
	}{
		{"4", 4, false, true},
		{"4+", 4, true, true},
		{" 12 ", 12, false, true},
		{"0", 0, false, false},
		{"", 0, false, false},
		{"lots", 0, false, false},
	}
	for _, c := range cases {
		count, open, ok := parsePlayerCount(c.in)
		require.Equal(t, c.ok, ok, "input %q", c.in)
		require.Equal(t, c.count, count, "input %q", c.in)
		require.Equal(t, c.open, open, "input %q", c.in)
	}
}

func TestIsPendingBody(t *testing.T) {
	require.True(t, isPendingBody([]byte(pendingXML)))
	require.False(t, isPendingBody([]byte(collectionXML)))
	require.False(t, isPendingBody([]byte("not xml at all")))
}

func TestParseThingsVotesAndLinks(t *testing.T) {
	body := thingsBody(thingXML(7, "Base Game", `<link type="boardgameexpansion" id="99" value="Big Box"/>`))

	entries, err := parseThings([]byte(body))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, 7, entry.ID)
	require.Equal(t, "Base Game", entry.Name)
	require.Equal(t, 2015, entry.Year)
	require.Equal(t, 2, entry.MinPlayers)
	require.Equal(t, 4, entry.MaxPlayers)
	require.Equal(t, 90, entry.PlayingTime)
	require.Equal(t, []string{"Economic"}, entry.Categories)
	require.Equal(t, []string{"Trading"}, entry.Mechanics)
	require.Equal(t, []int{99}, entry.ExpansionIDs)
	require.False(t, entry.Expansion)

	// Best + Recommended count as support, Not Recommended does not
	require.Equal(t, []PlayerVote{
		{Count: 2, Votes: 16},
		{Count: 4, Open: true, Votes: 3},
	}, entry.SuggestedVotes)
}

func TestParseThingsInboundLink(t *testing.T) {
	body := thingsBody(`
	<item type="boardgameexpansion" id="99">
		<name type="primary" value="Big Box"/>
		<link type="boardgameexpansion" id="7" value="Base Game" inbound="true"/>
	</item>`)

	entries, err := parseThings([]byte(body))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Expansion)
	require.Equal(t, []int{7}, entries[0].BaseIDs)
	require.Empty(t, entries[0].ExpansionIDs)
}
