// Package bgg talks to the upstream catalog API, hiding its asynchronous
// job model, throttling, and flakiness behind a synchronous interface.
package bgg

// CollectionItem is one row of a user's collection listing. It only lives
// for the duration of a sync run.
type CollectionItem struct {
	ID              int
	Owned           bool
	PreviouslyOwned bool
	ForTrade        bool
	Rating          float64
	NumPlays        int
}

// PlayerVote is one bucket of the suggested-player-count poll: `Votes`
// supporters for playing at `Count` players (`Open` marks the "Count or
// more" bucket).
type PlayerVote struct {
	Count int
	Open  bool
	Votes int
}

// CatalogEntry is the per-item metadata the catalog holds. Expansion items
// are fetched in the same shape but are only ever folded into their owning
// base entry, never surfaced on their own.
type CatalogEntry struct {
	ID             int
	Name           string
	Year           int
	MinPlayers     int
	MaxPlayers     int
	PlayingTime    int
	SuggestedVotes []PlayerVote
	Categories     []string
	Mechanics      []string
	Image          string
	Expansion      bool
	ExpansionIDs   []int
	BaseIDs        []int
}

// NewCatalogEntry returns an entry with all containers explicitly
// initialized, so no two entries ever share backing storage.
func NewCatalogEntry(id int) CatalogEntry {
	return CatalogEntry{
		ID:             id,
		SuggestedVotes: []PlayerVote{},
		Categories:     []string{},
		Mechanics:      []string{},
		ExpansionIDs:   []int{},
		BaseIDs:        []int{},
	}
}

// ExpansionLink carries the only parts of an expansion that matter to its
// owning entry: identity and player-count votes.
type ExpansionLink struct {
	ID             int
	Name           string
	SuggestedVotes []PlayerVote
}
