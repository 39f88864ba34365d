package bgg

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// raw shapes of the upstream's markup responses

type collectionDoc struct {
	XMLName xml.Name            `xml:"items"`
	Items   []collectionItemXML `xml:"item"`
}

type collectionItemXML struct {
	ObjectID int `xml:"objectid,attr"`
	Status   struct {
		Own       int `xml:"own,attr"`
		PrevOwned int `xml:"prevowned,attr"`
		ForTrade  int `xml:"fortrade,attr"`
	} `xml:"status"`
	NumPlays int `xml:"numplays"`
	Stats    struct {
		Rating struct {
			Value string `xml:"value,attr"`
		} `xml:"rating"`
	} `xml:"stats"`
}

type thingDoc struct {
	XMLName xml.Name       `xml:"items"`
	Items   []thingItemXML `xml:"item"`
}

type thingItemXML struct {
	ID    int    `xml:"id,attr"`
	Type  string `xml:"type,attr"`
	Image string `xml:"image"`
	Names []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:"value,attr"`
	} `xml:"name"`
	YearPublished intValueXML `xml:"yearpublished"`
	MinPlayers    intValueXML `xml:"minplayers"`
	MaxPlayers    intValueXML `xml:"maxplayers"`
	PlayingTime   intValueXML `xml:"playingtime"`
	Polls         []pollXML   `xml:"poll"`
	Links         []linkXML   `xml:"link"`
}

type intValueXML struct {
	Value int `xml:"value,attr"`
}

type pollXML struct {
	Name    string `xml:"name,attr"`
	Results []struct {
		NumPlayers string `xml:"numplayers,attr"`
		Results    []struct {
			Value    string `xml:"value,attr"`
			NumVotes int    `xml:"numvotes,attr"`
		} `xml:"result"`
	} `xml:"results"`
}

type linkXML struct {
	Type    string `xml:"type,attr"`
	ID      int    `xml:"id,attr"`
	Value   string `xml:"value,attr"`
	Inbound bool   `xml:"inbound,attr"`
}

// isPendingBody reports whether a response body is the upstream's
// "still processing, retry later" marker rather than a real payload.
func isPendingBody(body []byte) bool {
	var msg struct {
		XMLName xml.Name `xml:"message"`
	}
	return xml.Unmarshal(bytes.TrimSpace(body), &msg) == nil
}

func parseCollection(body []byte) ([]CollectionItem, error) {
	var doc collectionDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	items := make([]CollectionItem, 0, len(doc.Items))
	for _, raw := range doc.Items {
		rating := 0.0
		// unrated games come back as "N/A"
		if v, err := strconv.ParseFloat(raw.Stats.Rating.Value, 64); err == nil {
			rating = v
		}
		items = append(items, CollectionItem{
			ID:              raw.ObjectID,
			Owned:           raw.Status.Own == 1,
			PreviouslyOwned: raw.Status.PrevOwned == 1,
			ForTrade:        raw.Status.ForTrade == 1,
			Rating:          rating,
			NumPlays:        raw.NumPlays,
		})
	}
	return items, nil
}

func parseThings(body []byte) ([]CatalogEntry, error) {
	var doc thingDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(doc.Items))
	for _, raw := range doc.Items {
		entries = append(entries, entryFromXML(raw))
	}
	return entries, nil
}

func entryFromXML(raw thingItemXML) CatalogEntry {
	entry := NewCatalogEntry(raw.ID)
	entry.Year = raw.YearPublished.Value
	entry.MinPlayers = raw.MinPlayers.Value
	entry.MaxPlayers = raw.MaxPlayers.Value
	entry.PlayingTime = raw.PlayingTime.Value
	entry.Image = raw.Image
	entry.Expansion = raw.Type == "boardgameexpansion"

	for _, name := range raw.Names {
		if name.Type == "primary" {
			entry.Name = name.Value
			break
		}
	}
	if entry.Name == "" && len(raw.Names) > 0 {
		entry.Name = raw.Names[0].Value
	}

	for _, link := range raw.Links {
		switch link.Type {
		case "boardgamecategory":
			entry.Categories = append(entry.Categories, link.Value)
		case "boardgamemechanic":
			entry.Mechanics = append(entry.Mechanics, link.Value)
		case "boardgameexpansion":
			// on a base item this lists its expansions; on an expansion
			// item the inbound link points back at the owning base item
			if link.Inbound {
				entry.BaseIDs = append(entry.BaseIDs, link.ID)
			} else {
				entry.ExpansionIDs = append(entry.ExpansionIDs, link.ID)
			}
		}
	}

	for _, poll := range raw.Polls {
		if poll.Name != "suggested_numplayers" {
			continue
		}
		for _, results := range poll.Results {
			count, open, ok := parsePlayerCount(results.NumPlayers)
			if !ok {
				continue
			}
			votes := 0
			for _, result := range results.Results {
				switch result.Value {
				case "Best", "Recommended":
					votes += result.NumVotes
				}
			}
			entry.SuggestedVotes = append(entry.SuggestedVotes, PlayerVote{
				Count: count,
				Open:  open,
				Votes: votes,
			})
		}
	}

	return entry
}

// parsePlayerCount understands both fixed counts ("4") and the open-ended
// form ("4+") the poll uses for "more than the stated maximum".
func parsePlayerCount(s string) (count int, open bool, ok bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "+") {
		open = true
		s = strings.TrimSuffix(s, "+")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false, false
	}
	return n, open, true
}
