package db

import (
	"context"
	"database/sql"
)

// Game is one flat row of the artifact's games table. The list-valued
// columns hold JSON arrays so the read side stays a single table scan.
type Game struct {
	ID             int64
	Name           string
	Year           int64
	Rating         float64
	NumPlays       int64
	Image          string
	Categories     string
	Mechanics      string
	Players        string
	PlaytimeBucket string
	SearchText     string
}

// ReplaceAll rebuilds the games table from scratch and lands the whole set
// in one transaction: either every row commits or none do, so a half-written
// artifact can never be observed.
func ReplaceAll(ctx context.Context, database *sql.DB, games []Game) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS games")
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, Schema)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (
			id, name, year, rating, numplays, image,
			categories, mechanics, players, playtime_bucket, search_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range games {
		_, err = stmt.ExecContext(
			ctx,
			g.ID, g.Name, g.Year, g.Rating, g.NumPlays, g.Image,
			g.Categories, g.Mechanics, g.Players, g.PlaytimeBucket, g.SearchText,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListGames returns rows ordered by name, the read contract the browsing
// layer consumes. `limit` <= 0 means no limit.
func ListGames(ctx context.Context, database *sql.DB, limit int) ([]Game, error) {
	query := `
		SELECT id, name, year, rating, numplays, image,
			categories, mechanics, players, playtime_bucket, search_text
		FROM games ORDER BY name
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = database.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = database.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		var g Game
		err = rows.Scan(
			&g.ID, &g.Name, &g.Year, &g.Rating, &g.NumPlays, &g.Image,
			&g.Categories, &g.Mechanics, &g.Players, &g.PlaytimeBucket, &g.SearchText,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
