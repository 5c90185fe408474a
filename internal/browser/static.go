package browser

import (
	"context"
	"io"
	"sync"

	"sjsage522/asinharvester/helpers"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
)

// FetchFunc retrieves a document body
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// Static opens pages with plain HTTP requests. Without a layout engine
// nothing is stamped with a size, so every result counts as visible, and
// scrolling never loads more.
type Static struct {
	fetch FetchFunc
	log   *logger.Logger
}

// NewStatic creates a static navigator. A nil fetch uses helpers.FetchWithRandomHeaders.
func NewStatic(fetch FetchFunc) *Static {
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}
	return &Static{fetch: fetch, log: logger.ForBrowser(DriverStatic)}
}

// Open fetches url
func (s *Static) Open(ctx context.Context, url string) (Session, error) {
	p := &StaticPage{fetch: s.fetch, log: s.log}
	if err := p.load(ctx, url); err != nil {
		return nil, err
	}
	return p, nil
}

// Selectors drops the load-more fallback. A static page cannot grow in place.
func (s *Static) Selectors() harvest.Selectors {
	sel := harvest.DefaultSelectors()
	sel.LoadMore = ""
	return sel
}

// Close implements Navigator
func (s *Static) Close() error {
	return nil
}

// StaticPage is a fetched document. Clicking a link fetches its target.
type StaticPage struct {
	mu    sync.Mutex
	fetch FetchFunc
	log   *logger.Logger
	url   string
	snap  *harvest.Snapshot
}

var _ Session = (*StaticPage)(nil)

func (p *StaticPage) load(ctx context.Context, url string) error {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return err
	}
	snap, err := harvest.NewSnapshot(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.url, p.snap = url, snap
	p.mu.Unlock()
	p.log.Debug().Str("url", url).Msg("Fetched page")
	return nil
}

// URL implements Session
func (p *StaticPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Snapshot implements harvest.Driver
func (p *StaticPage) Snapshot(_ context.Context) (harvest.DocumentView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, nil
}

// ScrollToBottom implements harvest.Driver
func (p *StaticPage) ScrollToBottom(_ context.Context) error {
	return nil
}

// ScrollToTop implements harvest.Driver
func (p *StaticPage) ScrollToTop(_ context.Context) error {
	return nil
}

// Click follows the link of the first element matching selector, or of the
// first link inside it.
func (p *StaticPage) Click(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	el := p.snap.Find(selector).First()
	base := p.url
	p.mu.Unlock()

	if el.Length() == 0 {
		return false, nil
	}
	href, ok := el.Attr("href")
	if !ok {
		href, ok = el.Find("a[href]").First().Attr("href")
	}
	if !ok || href == "" || href == "#" {
		return false, nil
	}

	target, err := helpers.ResolveURL(base, href)
	if err != nil {
		return false, nil
	}
	if err := p.load(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// Close implements Session
func (p *StaticPage) Close() error {
	return nil
}
