package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTMDbBaseURL  = "https://api.themoviedb.org/3"
	defaultTMDbImageURL = "https://image.tmdb.org/t/p"
)

type TMDbClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type SearchMovieResult struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalResults int     `json:"total_results"`
}

// Movie is a TMDb search hit, passed through to callers as-is.
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	GenreIDs         []int   `json:"genre_ids"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Adult            bool    `json:"adult"`
}

// Year returns the release year, or "" when TMDb has no usable date.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// StatusError reports a non-2xx answer from TMDb.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "TMDb status error"
	}
	if e.Message == "" {
		return fmt.Sprintf("TMDb API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("TMDb API returned status %d: %s", e.StatusCode, e.Message)
}

func NewTMDbClient(apiKey, baseURL string, httpClient *http.Client) *TMDbClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTMDbBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &TMDbClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *TMDbClient) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)

	fullURL := fmt.Sprintf("%s/search/movie?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body struct {
			StatusMessage string `json:"status_message"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			statusErr.Message = body.StatusMessage
		}
		return nil, statusErr
	}

	var searchResult SearchMovieResult
	if err := json.NewDecoder(resp.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return searchResult.Results, nil
}

func (c *TMDbClient) GetImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", defaultTMDbImageURL, size, path)
}
