package indexer

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/chardila/mybgg/services/indexer/db"
)

type playerJSON struct {
	Count  string `json:"count"`
	Source string `json:"source"`
}

// WriteRecords persists the full record set atomically via the db layer.
func WriteRecords(ctx context.Context, database *sql.DB, records []NormalizedRecord) error {
	rows := make([]db.Game, 0, len(records))
	for _, rec := range records {
		row, err := gameRow(rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return db.ReplaceAll(ctx, database, rows)
}

func gameRow(rec NormalizedRecord) (db.Game, error) {
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return db.Game{}, err
	}
	mechanics, err := json.Marshal(rec.Mechanics)
	if err != nil {
		return db.Game{}, err
	}

	players := make([]playerJSON, 0, len(rec.Players))
	for _, p := range rec.Players {
		players = append(players, playerJSON{Count: p.Label(), Source: p.Source})
	}
	playersEncoded, err := json.Marshal(players)
	if err != nil {
		return db.Game{}, err
	}

	return db.Game{
		ID:             int64(rec.ID),
		Name:           rec.Name,
		Year:           int64(rec.Year),
		Rating:         rec.Rating,
		NumPlays:       int64(rec.NumPlays),
		Image:          rec.Image,
		Categories:     string(categories),
		Mechanics:      string(mechanics),
		Players:        string(playersEncoded),
		PlaytimeBucket: rec.PlaytimeBucket,
		SearchText:     rec.SearchText,
	}, nil
}
