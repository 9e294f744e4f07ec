package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/moviegpt/internal/ai"
	"github.com/kdimtricp/moviegpt/internal/config"
	"github.com/kdimtricp/moviegpt/internal/database"
	"github.com/kdimtricp/moviegpt/internal/discovery"
	"github.com/kdimtricp/moviegpt/internal/models"
	"github.com/kdimtricp/moviegpt/internal/search"
)

func newSearchCommand() *cobra.Command {
	var jsonOutput bool
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Suggest movies for a free-text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("query must not be empty")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: cfg.RequestTimeout}
			openAIClient := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, httpClient)
			tmdbClient := search.NewTMDbClient(cfg.TMDbAPIKey, cfg.TMDbBaseURL, httpClient)

			var recorder discovery.HistoryRecorder
			if cfg.HistoryEnabled() && !noHistory {
				db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
				if err != nil {
					return err
				}
				defer db.Close()
				recorder = database.NewHistoryRepository(db)
			}

			svc := discovery.NewService(ai.NewTitleExpander(openAIClient), search.NewResolver(tmdbClient), recorder, discovery.Config{})
			state := svc.Search(cmd.Context(), svc.NewSession(), query)

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}

			switch state.Outcome {
			case models.OutcomeFailed:
				return errors.New(state.Alert)
			case models.OutcomeRefused:
				fmt.Fprintln(out, state.Error)
				return nil
			}

			fmt.Fprintln(out, formatMovies(state.Movies))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the search state as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this search")

	return cmd
}

func formatMovies(movies []search.Movie) string {
	if len(movies) == 0 {
		return "No movies found."
	}

	rows := make([][]string, 0, len(movies))
	for i, movie := range movies {
		rating := ""
		if movie.VoteAverage > 0 {
			rating = strconv.FormatFloat(movie.VoteAverage, 'f', 1, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			movie.Title,
			movie.Year(),
			rating,
			strconv.Itoa(movie.ID),
		})
	}

	return renderTable([]column{
		{header: "#", right: true},
		{header: "Title"},
		{header: "Year"},
		{header: "Rating", right: true},
		{header: "TMDb ID", right: true},
	}, rows)
}
