package commands

import (
	"database/sql"
	"encoding/json"
	"os"
	"strings"

	"github.com/chardila/mybgg/lib/serviceutil"
	"github.com/chardila/mybgg/services/indexer/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var previewDb *string
var previewLimit *int

func init() {
	previewDb = previewCmd.Flags().String("db", "mybgg.db", "The database to preview.")
	previewLimit = previewCmd.Flags().Int("limit", 25, "Maximum rows to print.")
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview [--db <path/to/mybgg.db>] [--limit <n>]",
	Short: "Prints the first rows of a synced database.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := sql.Open("sqlite", *previewDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		games, err := db.ListGames(cmd.Context(), database, *previewLimit)
		if err != nil {
			serviceutil.Fatal("failed to list games", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"id", "name", "year", "players", "playtime", "rating", "plays"})
		for _, g := range games {
			t.AppendRow(table.Row{
				g.ID, g.Name, g.Year,
				playersSummary(g.Players),
				g.PlaytimeBucket, g.Rating, g.NumPlays,
			})
		}
		t.Render()
	},
}

func playersSummary(encoded string) string {
	var players []struct {
		Count  string `json:"count"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(encoded), &players); err != nil {
		return encoded
	}
	counts := make([]string, 0, len(players))
	for _, p := range players {
		counts = append(counts, p.Count)
	}
	return strings.Join(counts, " ")
}
