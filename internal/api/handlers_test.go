package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/moviegpt/internal/ai"
	"github.com/kdimtricp/moviegpt/internal/database"
	"github.com/kdimtricp/moviegpt/internal/discovery"
	"github.com/kdimtricp/moviegpt/internal/models"
	"github.com/kdimtricp/moviegpt/internal/search"
)

// fakeUpstreams stands in for the completion API and TMDb.
type fakeUpstreams struct {
	mu          sync.Mutex
	reply       string
	openAICode  int
	catalog     map[string][]search.Movie
	openAICalls atomic.Int32
	tmdbCalls   atomic.Int32

	openAI *httptest.Server
	tmdb   *httptest.Server
}

func newFakeUpstreams(t *testing.T) *fakeUpstreams {
	t.Helper()
	f := &fakeUpstreams{
		openAICode: http.StatusOK,
		catalog:    map[string][]search.Movie{},
	}

	f.openAI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.openAICalls.Add(1)
		f.mu.Lock()
		reply, code := f.reply, f.openAICode
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if code != http.StatusOK {
			w.WriteHeader(code)
			w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
		w.Write(body)
	}))

	f.tmdb = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tmdbCalls.Add(1)
		f.mu.Lock()
		results := f.catalog[r.URL.Query().Get("query")]
		f.mu.Unlock()
		if results == nil {
			results = []search.Movie{}
		}
		json.NewEncoder(w).Encode(search.SearchMovieResult{Page: 1, Results: results, TotalResults: len(results)})
	}))

	t.Cleanup(func() {
		f.openAI.Close()
		f.tmdb.Close()
	})
	return f
}

func (f *fakeUpstreams) setReply(reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = reply
	f.openAICode = http.StatusOK
}

func (f *fakeUpstreams) fail(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openAICode = code
}

func (f *fakeUpstreams) addMovie(title string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog[title] = []search.Movie{
		{ID: id, Title: title, ReleaseDate: "1999-01-01", PosterPath: fmt.Sprintf("/%d.jpg", id), VoteAverage: 7.5},
	}
}

type testServer struct {
	server    *httptest.Server
	client    *http.Client
	upstreams *fakeUpstreams
	history   *database.HistoryRepository
	svc       *discovery.Service
}

func setupTestServer(t *testing.T, withHistory bool) *testServer {
	t.Helper()

	upstreams := newFakeUpstreams(t)
	tmdb := search.NewTMDbClient("tmdb-key", upstreams.tmdb.URL, nil)
	expander := ai.NewTitleExpander(ai.NewOpenAIClient("sk-test", "", upstreams.openAI.URL, nil))

	var history *database.HistoryRepository
	var recorder discovery.HistoryRecorder
	var lister HistoryLister
	if withHistory {
		db, err := database.NewDB(database.Config{SQLitePath: filepath.Join(t.TempDir(), "history.db")})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		history = database.NewHistoryRepository(db)
		recorder = history
		lister = history
	}

	svc := discovery.NewService(expander, search.NewResolver(tmdb), recorder, discovery.Config{})
	app, err := NewApp(svc, lister, tmdb)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		server:    server,
		client:    &http.Client{Jar: jar},
		upstreams: upstreams,
		history:   history,
		svc:       svc,
	}
}

func (ts *testServer) htmxSearch(t *testing.T, query string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/search", strings.NewReader(url.Values{"q": {query}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (ts *testServer) apiSearch(t *testing.T, query string) discovery.State {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"query": query})
	resp, err := ts.client.Post(ts.server.URL+"/api/search", "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state discovery.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func (ts *testServer) apiState(t *testing.T) discovery.State {
	t.Helper()

	resp, err := ts.client.Get(ts.server.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state discovery.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func TestPingHandler(t *testing.T) {
	ts := setupTestServer(t, false)

	resp, err := ts.client.Get(ts.server.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestHomeHandler_IssuesSessionCookie(t *testing.T) {
	ts := setupTestServer(t, false)

	resp, err := ts.client.Get(ts.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hx-post="/search"`)
	assert.NotContains(t, string(body), `href="/history"`)

	var found bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName {
			found = true
			assert.NotEmpty(t, cookie.Value)
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.True(t, found, "expected session cookie")
}

func TestSearchHandler_RendersGrid(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply(`["The Godfather", "Apocalypse Now", "Unknown Film"]`)
	ts.upstreams.addMovie("The Godfather", 238)
	ts.upstreams.addMovie("Apocalypse Now", 28)

	body := ts.htmxSearch(t, "movies with brando")

	assert.NotContains(t, body, "<html", "HTMX requests get the partial only")
	assert.Contains(t, body, "The Godfather")
	assert.Contains(t, body, "Apocalypse Now")
	assert.NotContains(t, body, "Unknown Film")
	assert.Contains(t, body, "https://image.tmdb.org/t/p/w342/238.jpg")
	assert.Less(t, strings.Index(body, "The Godfather"), strings.Index(body, "Apocalypse Now"))

	assert.EqualValues(t, 1, ts.upstreams.openAICalls.Load())
	assert.EqualValues(t, 3, ts.upstreams.tmdbCalls.Load())
}

func TestSearchHandler_FullPageWithoutHTMX(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply(`["Heat"]`)
	ts.upstreams.addMovie("Heat", 949)

	resp, err := ts.client.Get(ts.server.URL + "/search?q=" + url.QueryEscape("michael mann"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<html")
	assert.Contains(t, string(body), `value="michael mann"`)
	assert.Contains(t, string(body), "Heat")
}

func TestSearchHandler_Refusal(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply("Sorry, I cannot help with that.")

	body := ts.htmxSearch(t, "qwertyuiop")

	assert.Contains(t, body, "Sorry, I cannot help with that.")
	assert.Contains(t, body, "No movies found.")
	assert.EqualValues(t, 0, ts.upstreams.tmdbCalls.Load())
}

func TestSearchHandler_UpstreamFailureShowsAlert(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply(`["Heat"]`)
	ts.upstreams.addMovie("Heat", 949)

	ts.htmxSearch(t, "michael mann")
	ts.upstreams.fail(http.StatusServiceUnavailable)
	body := ts.htmxSearch(t, "tarantino")

	assert.Contains(t, body, `role="alertdialog"`)
	assert.Contains(t, body, "upstream unavailable")
	assert.Contains(t, body, "Heat", "previous results stay on screen")
}

func TestSearchHandler_EmptyQueryMakesNoCalls(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply(`["Heat"]`)

	body := ts.htmxSearch(t, "   ")

	assert.NotContains(t, body, "No movies found.")
	assert.EqualValues(t, 0, ts.upstreams.openAICalls.Load())
	assert.EqualValues(t, 0, ts.upstreams.tmdbCalls.Load())
}

func TestAPISearch_JSON(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.upstreams.setReply(`["Inception", "Interstellar"]`)
	ts.upstreams.addMovie("Inception", 27205)
	ts.upstreams.addMovie("Interstellar", 157336)

	state := ts.apiSearch(t, "nolan films")

	assert.Equal(t, models.OutcomeSuccess, state.Outcome)
	assert.False(t, state.Loading)
	require.Len(t, state.Movies, 2)
	assert.Equal(t, 27205, state.Movies[0].ID)
	assert.Equal(t, 157336, state.Movies[1].ID)

	current := ts.apiState(t)
	assert.Equal(t, state.SessionID, current.SessionID)
	assert.Equal(t, state.CycleID, current.CycleID)
	assert.Len(t, current.Movies, 2)
}

func TestAPISearch_TruncatesTo16(t *testing.T) {
	ts := setupTestServer(t, false)

	titles := make([]string, 20)
	for i := range titles {
		titles[i] = fmt.Sprintf("Film %02d", i)
		ts.upstreams.addMovie(titles[i], i+1)
	}
	reply, _ := json.Marshal(titles)
	ts.upstreams.setReply(string(reply))

	state := ts.apiSearch(t, "lots of films")

	// The expander keeps 16 titles, so only 16 lookups happen.
	require.Len(t, state.Movies, search.MaxResults)
	for i, movie := range state.Movies {
		assert.Equal(t, titles[i], movie.Title)
	}
	assert.EqualValues(t, ai.MaxTitles, ts.upstreams.tmdbCalls.Load())
}

func TestAPISearch_InvalidBody(t *testing.T) {
	ts := setupTestServer(t, false)

	resp, err := ts.client.Post(ts.server.URL+"/api/search", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIState_FreshSession(t *testing.T) {
	ts := setupTestServer(t, false)

	state := ts.apiState(t)

	assert.NotEmpty(t, state.SessionID)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Movies)
	assert.Empty(t, state.Outcome)
}

func TestAPIState_StaleCookie(t *testing.T) {
	ts := setupTestServer(t, false)

	req, err := http.NewRequest(http.MethodGet, ts.server.URL+"/api/state", nil)
	require.NoError(t, err)
	previous := uuid.NewString()
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: previous})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, previous, raw["session_id"])
	assert.Equal(t, []any{}, raw["movies"])
}

func TestSearchHandler_ReplacesMalformedCookie(t *testing.T) {
	ts := setupTestServer(t, false)

	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/search", strings.NewReader("q=+++"))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: fmt.Sprintf("not-a-uuid-%d", i)})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var issued string
		for _, cookie := range resp.Cookies() {
			if cookie.Name == sessionCookieName {
				issued = cookie.Value
			}
		}
		_, err = uuid.Parse(issued)
		assert.NoError(t, err, "a fresh session id replaces the malformed cookie")
		_, known := ts.svc.GetState(fmt.Sprintf("not-a-uuid-%d", i))
		assert.False(t, known)
	}

	assert.Equal(t, 20, ts.svc.SessionCount(), "only issued sessions are registered")
	assert.Zero(t, ts.upstreams.openAICalls.Load())
}

func TestHistoryHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := setupTestServer(t, false)

		resp, err := ts.client.Get(ts.server.URL + "/history")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("lists searches", func(t *testing.T) {
		ts := setupTestServer(t, true)
		ts.upstreams.setReply(`["Heat"]`)
		ts.upstreams.addMovie("Heat", 949)
		ts.htmxSearch(t, "michael mann")
		ts.upstreams.setReply("Sorry, I cannot help with that.")
		ts.htmxSearch(t, "qwertyuiop")

		records, err := ts.history.ListRecent(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, records, 2)

		resp, err := ts.client.Get(ts.server.URL + "/history")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "michael mann")
		assert.Contains(t, string(body), "qwertyuiop")
		assert.Contains(t, string(body), string(models.OutcomeRefused))
		assert.Contains(t, string(body), "2 searches recorded, showing the latest 2.")
	})
}
