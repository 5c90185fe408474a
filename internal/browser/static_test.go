package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sjsage522/asinharvester/config"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchPage(next string, asins ...string) string {
	items := ""
	for _, a := range asins {
		items += fmt.Sprintf(`<div data-component-type="s-search-result" data-asin="%s"><h2><span>Item %s</span></h2></div>`, a, a)
	}
	return `<html><body><div class="s-search-results" data-component-type="s-search-results">` + items + `</div>` + next + `</body></html>`
}

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, searchPage(`<a class="s-pagination-next" href="/s?k=cable&amp;page=2">Next</a>`, "B000000001", "B000000002"))
		case "2":
			fmt.Fprint(w, searchPage(`<span class="s-pagination-next s-pagination-disabled">Next</span>`, "B000000003"))
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStatic_OpenAndFollowNext(t *testing.T) {
	server := newSearchServer(t)
	nav := NewStatic(nil)
	ctx := context.Background()

	session, err := nav.Open(ctx, server.URL+"/s?k=cable")
	require.NoError(t, err)
	defer session.Close()

	view, err := session.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Find(`[data-component-type="s-search-result"]`).Length())

	sel := harvest.DefaultSelectors()
	clicked, err := session.Click(ctx, sel.NextPage)
	require.NoError(t, err)
	assert.True(t, clicked)
	assert.Equal(t, server.URL+"/s?k=cable&page=2", session.URL())

	clicked, err = session.Click(ctx, sel.NextPage)
	require.NoError(t, err)
	assert.False(t, clicked, "disabled control is not clickable")

	assert.NoError(t, session.ScrollToBottom(ctx))
	assert.NoError(t, session.ScrollToTop(ctx))
}

func TestStatic_CollectsAcrossPages(t *testing.T) {
	server := newSearchServer(t)
	ctx := context.Background()

	nav := NewStatic(nil)
	session, err := nav.Open(ctx, server.URL+"/s?k=cable")
	require.NoError(t, err)

	sel := nav.Selectors()
	timing := harvest.DefaultTiming()
	timing.ScrollDelay = 0
	timing.ClickSettleDelay = 0
	timing.NavigationDelay = 0
	timing.NavigationPoll = 0
	timing.NavigationPolls = 1

	res := harvest.NewCollector(session, harvest.CollectorConfig{Selectors: &sel, Timing: &timing, Logger: logger.Nop()}).
		CollectAll(ctx, 5)

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.PagesProcessed)
	assert.Equal(t, []string{"B000000001", "B000000002", "B000000003"}, res.Identifiers())
}

func TestStatic_SelectorsSkipLoadMore(t *testing.T) {
	assert.Empty(t, NewStatic(nil).Selectors().LoadMore)
	assert.Equal(t, harvest.DefaultSelectors().NextPage, NewStatic(nil).Selectors().NextPage)
}

func TestStatic_ClickFollowsNestedLink(t *testing.T) {
	pages := map[string]string{
		"/one": `<html><body><div data-cel-widget="load_more"><a href="/two">more</a></div></body></html>`,
		"/two": `<html><body><p>second</p></body></html>`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Path])
	}))
	defer server.Close()

	ctx := context.Background()
	session, err := NewStatic(nil).Open(ctx, server.URL+"/one")
	require.NoError(t, err)

	clicked, err := session.Click(ctx, `[data-cel-widget="load_more"]`)
	require.NoError(t, err)
	assert.True(t, clicked)

	view, err := session.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, view.Text(), "second")
}

func TestStatic_OpenPropagatesFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewStatic(nil).Open(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, herrors.IsType(err, herrors.ErrorTypeRateLimit))
}

func TestNewNavigator(t *testing.T) {
	nav, err := NewNavigator(&config.Config{Driver: config.DriverHTTP})
	require.NoError(t, err)
	assert.IsType(t, &Static{}, nav)
	assert.NoError(t, nav.Close())

	_, err = NewNavigator(&config.Config{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}
