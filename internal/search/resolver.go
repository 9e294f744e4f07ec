package search

import (
	"context"
	"log"
)

// MaxResults bounds the size of a resolved result set.
const MaxResults = 16

type MovieSearcher interface {
	SearchMovies(ctx context.Context, query string) ([]Movie, error)
}

// Resolver maps candidate titles to their best TMDb match, one lookup at a
// time and in input order.
type Resolver struct {
	searcher MovieSearcher
}

func NewResolver(searcher MovieSearcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// Resolve never fails as a whole. Titles that error or have no match are
// skipped, and the result holds at most MaxResults movies.
func (r *Resolver) Resolve(ctx context.Context, titles []string) []Movie {
	movies := make([]Movie, 0, min(len(titles), MaxResults))

	for i, title := range titles {
		if err := ctx.Err(); err != nil {
			log.Printf("[RESOLVE] Stopping after %d/%d titles: %v", i, len(titles), err)
			break
		}

		results, err := r.searcher.SearchMovies(ctx, title)
		if err != nil {
			log.Printf("[RESOLVE] Lookup failed for %q: %v", title, err)
			continue
		}

		if len(results) == 0 {
			log.Printf("[RESOLVE] No match for %q", title)
			continue
		}

		movies = append(movies, results[0])
	}

	if len(movies) > MaxResults {
		movies = movies[:MaxResults]
	}

	log.Printf("[RESOLVE] Resolved %d movies from %d titles", len(movies), len(titles))
	return movies
}
