package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/moviegpt/internal/config"
	"github.com/kdimtricp/moviegpt/internal/database"
	"github.com/kdimtricp/moviegpt/internal/models"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithoutKeys()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return errors.New("search history is disabled (DB_PATH=off)")
			}

			db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := database.NewHistoryRepository(db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatHistory(records, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of searches to show")

	return cmd
}

func formatHistory(records []models.SearchRecord, now time.Time) string {
	if len(records) == 0 {
		return "No searches recorded yet."
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			humanize.RelTime(rec.CreatedAt, now, "ago", "from now"),
			rec.Query,
			string(rec.Outcome),
			strconv.Itoa(rec.TitleCount),
			strconv.Itoa(rec.ResultCount),
			rec.Duration.Round(time.Millisecond).String(),
		})
	}

	return renderTable([]column{
		{header: "When"},
		{header: "Query"},
		{header: "Outcome"},
		{header: "Titles", right: true},
		{header: "Movies", right: true},
		{header: "Took", right: true},
	}, rows)
}
