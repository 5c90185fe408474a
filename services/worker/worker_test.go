package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/asinharvester/helpers"
	"sjsage522/asinharvester/internal/browser"
	"sjsage522/asinharvester/internal/harvest"
	herrors "sjsage522/asinharvester/pkg/errors"
	"sjsage522/asinharvester/services/cache"
	"sjsage522/asinharvester/services/publisher"
	"sjsage522/asinharvester/services/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu         sync.Mutex
	messages   []Event
	keys       []string
	trims      int
	publishErr error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, event)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func resultsPage(next string, items ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div data-component-type="s-search-results">`)
	for _, item := range items {
		parts := strings.SplitN(item, "|", 2)
		fmt.Fprintf(&b, `<div data-component-type="s-search-result" data-asin="%s"><h2><span>%s</span></h2>`+
			`<span class="a-icon-star-small"><span class="a-icon-alt">4.5 out of 5 stars</span></span></div>`, parts[0], parts[1])
	}
	b.WriteString(`</div>`)
	b.WriteString(next)
	b.WriteString(`</body></html>`)
	return b.String()
}

func newShop(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"1": resultsPage(`<a class="s-pagination-next" href="/s?k=strap&amp;page=2">Next</a>`,
			"B0WORKER01|Anker Watch Strap", "B0WORKER02|Acme Watch Strap"),
		"2": resultsPage(`<span class="s-pagination-next s-pagination-disabled">Next</span>`,
			"B0WORKER03|Belkin Watch Strap"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, pages[page])
	})
	mux.HandleFunc("/captcha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/errors/validateCaptcha"></form></body></html>`)
	})
	mux.HandleFunc("/throttled", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7200")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func fastTiming() *harvest.Timing {
	timing := harvest.DefaultTiming()
	timing.ScrollDelay = 0
	timing.ClickSettleDelay = 0
	timing.NavigationDelay = 0
	timing.NavigationPoll = 0
	timing.NavigationPolls = 1
	timing.QuickGrowthDelay = 0
	timing.QuickScrollDelay = 0
	timing.ResultsPoll = 5 * time.Millisecond
	timing.ResultsTimeout = 20 * time.Millisecond
	return &timing
}

type fixture struct {
	worker  *Worker
	store   storage.Store
	pub     *MockPublisher
	blocker *cache.Blocker
}

func newFixture(t *testing.T, ctx context.Context, jobs []Job, interval time.Duration) fixture {
	t.Helper()
	store, err := storage.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := &MockPublisher{}
	blocker := cache.NewBlocker(cache.NewMemoryCache(), time.Minute)
	w := NewWorker(ctx, jobs, browser.NewStatic(nil), store, pub, interval, Options{
		Blocker: blocker,
		Timing:  fastTiming(),
	})
	return fixture{worker: w, store: store, pub: pub, blocker: blocker}
}

func TestWorker_RunOnceSavesAndPublishes(t *testing.T) {
	shop := newShop(t)
	ctx := context.Background()
	jobs, err := ParseJobs([]byte(fmt.Sprintf(`
jobs:
  - name: straps
    url: %[1]s/s?k=strap
    account: alice
    category: watch strap
  - name: no-acme
    url: %[1]s/s?k=strap
    account: bob
    category: watch strap
    filter:
      excludeBrands: acme
`, shop.URL)))
	require.NoError(t, err)

	f := newFixture(t, ctx, jobs, time.Minute)
	events := f.worker.RunOnce()
	require.Len(t, events, 2)

	assert.True(t, events[0].Success, events[0].Error)
	assert.Equal(t, []string{"B0WORKER01", "B0WORKER02", "B0WORKER03"}, events[0].Asins)
	assert.Equal(t, 2, events[0].PagesProcessed)
	assert.Equal(t, 3, events[0].NewCount)
	assert.Equal(t, 3, events[0].TotalCount)
	assert.NotEmpty(t, events[0].RunID)

	assert.Equal(t, harvest.ModeFiltered, events[1].Mode)
	assert.Equal(t, []string{"B0WORKER01", "B0WORKER03"}, events[1].Asins)

	saved, err := f.store.GetOne(ctx, "bob", "watch strap")
	require.NoError(t, err)
	assert.Equal(t, []string{"B0WORKER01", "B0WORKER03"}, saved)

	assert.Equal(t, []string{EventKey, EventKey}, f.pub.keys)
	require.Len(t, f.pub.messages, 2)
	assert.Equal(t, events[0].RunID, f.pub.messages[0].RunID)
	assert.Equal(t, events[1].Asins, f.pub.messages[1].Asins)
	assert.Equal(t, "alice", f.pub.messages[0].Account)
	assert.Equal(t, 1, f.pub.trims)

	// A second round adds nothing new
	events = f.worker.RunOnce()
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].NewCount)
	assert.Equal(t, 3, events[0].TotalCount)
	assert.NotEqual(t, f.pub.messages[0].RunID, events[0].RunID)
}

func TestWorker_RobotCheckBlocksHost(t *testing.T) {
	shop := newShop(t)
	jobs, err := ParseJobs([]byte(fmt.Sprintf(`
jobs:
  - url: %[1]s/captcha
    account: alice
    category: console
  - url: %[1]s/s?k=strap
    account: alice
    category: console
`, shop.URL)))
	require.NoError(t, err)

	f := newFixture(t, context.Background(), jobs, time.Minute)
	events := f.worker.RunOnce()

	require.Len(t, events, 1, "second job is skipped while the host is blocked")
	assert.False(t, events[0].Success)
	assert.Contains(t, events[0].Error, "robot check")
	assert.False(t, events[0].Retryable)
	assert.True(t, f.blocker.IsBlocked(helpers.HostOf(shop.URL)))
	assert.Equal(t, 1, f.pub.trims)
}

func TestWorker_RetryAfterSetsBlockDuration(t *testing.T) {
	shop := newShop(t)
	jobs := []Job{{Name: "throttled", URL: shop.URL + "/throttled", Account: "alice", Category: "console", Mode: harvest.ModeAll, MaxPages: 1}}

	f := newFixture(t, context.Background(), jobs, time.Minute)
	events := f.worker.RunOnce()

	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Contains(t, events[0].Error, "rate limited for 2h0m0s")

	until, blocked := f.blocker.BlockedUntil(helpers.HostOf(shop.URL))
	require.True(t, blocked)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), until, 5*time.Second, "Retry-After wins over the default block time")
}

func TestWorker_OpenFailureIsReported(t *testing.T) {
	shop := newShop(t)
	jobs := []Job{{Name: "down", URL: shop.URL + "/down", Account: "alice", Category: "console", Mode: harvest.ModeAll, MaxPages: 1}}

	f := newFixture(t, context.Background(), jobs, time.Minute)
	events := f.worker.RunOnce()

	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Contains(t, events[0].Error, "unexpected status code: 500")
	assert.True(t, events[0].Retryable)
	assert.Empty(t, events[0].Asins)
	assert.False(t, f.blocker.IsBlocked(helpers.HostOf(shop.URL)))
}

func TestWorker_PublishErrorDoesNotStopRound(t *testing.T) {
	shop := newShop(t)
	jobs := []Job{
		{Name: "a", URL: shop.URL + "/s?k=strap", Account: "alice", Category: "console", Mode: harvest.ModeAll, MaxPages: 1},
		{Name: "b", URL: shop.URL + "/s?k=strap", Account: "bob", Category: "console", Mode: harvest.ModeAll, MaxPages: 1},
	}
	f := newFixture(t, context.Background(), jobs, time.Minute)
	f.pub.publishErr = errors.New("stream down")

	events := f.worker.RunOnce()
	require.Len(t, events, 2)

	saved, err := f.store.GetOne(context.Background(), "bob", "console")
	require.NoError(t, err)
	assert.Equal(t, []string{"B0WORKER01", "B0WORKER02"}, saved)
}

func TestWorker_StartStopsOnCancel(t *testing.T) {
	shop := newShop(t)
	ctx, cancel := context.WithCancel(context.Background())
	jobs := []Job{{Name: "a", URL: shop.URL + "/s?k=strap", Account: "alice", Category: "console", Mode: harvest.ModeAll, MaxPages: 1}}
	f := newFixture(t, ctx, jobs, time.Hour)

	done := make(chan error, 1)
	go func() { done <- f.worker.Start() }()

	require.Eventually(t, func() bool {
		f.pub.mu.Lock()
		defer f.pub.mu.Unlock()
		return f.pub.trims >= 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestParseJobs(t *testing.T) {
	jobs, err := ParseJobs([]byte(`
jobs:
  - url: https://www.amazon.com/s?k=cable
    account: alice
    category: electronics
  - name: quick
    url: https://www.amazon.com/s?k=strap
    account: alice
    category: watch strap
    mode: quick
    maxPages: 2
`))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "job-1", jobs[0].Name)
	assert.Equal(t, harvest.ModeAll, jobs[0].Mode)
	assert.Equal(t, DefaultJobPages, jobs[0].MaxPages)
	assert.Nil(t, jobs[0].Filter)

	assert.Equal(t, harvest.ModeQuick, jobs[1].Mode)
	assert.Equal(t, 2, jobs[1].MaxPages)
	require.NotNil(t, jobs[1].Filter)
	assert.True(t, jobs[1].Filter.IsEmpty())
}

func TestParseJobs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad url", "jobs:\n  - url: ftp://x\n    account: a\n    category: c\n", "http(s)"},
		{"missing account", "jobs:\n  - url: https://x\n    category: c\n", "account and category"},
		{"negative pages", "jobs:\n  - url: https://x\n    account: a\n    category: c\n    maxPages: -1\n", "maxPages"},
		{"unknown mode", "jobs:\n  - url: https://x\n    account: a\n    category: c\n    mode: dance\n", "unknown mode"},
		{"bad rating", "jobs:\n  - url: https://x\n    account: a\n    category: c\n    filter:\n      minRating: 7\n", "minRating"},
		{"not yaml", "jobs: [", "parse jobs file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobs([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadJobs_MissingFile(t *testing.T) {
	_, err := LoadJobs(t.TempDir() + "/missing.yaml")
	assert.True(t, herrors.IsType(err, herrors.ErrorTypeConfiguration))
}
