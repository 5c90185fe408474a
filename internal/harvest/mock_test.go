package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// fakeClock advances only when slept on
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) count(d time.Duration) int {
	n := 0
	for _, s := range c.slept {
		if s == d {
			n++
		}
	}
	return n
}

// fakeDriver serves a fixed sequence of pages. Each page is a list of stages;
// scrolling (or clicking load-more) reveals the next stage.
type fakeDriver struct {
	pages [][]string
	page  int
	stage int

	nextSelector string
	// staticScroll keeps scrolling from revealing stages
	staticScroll bool
	// stickyLoadMore reports every load-more click as successful even when nothing grows
	stickyLoadMore bool
	// growOnSnapshot reveals the next stage on every snapshot
	growOnSnapshot bool
	// panicOnPage panics while snapshotting that 1-based page
	panicOnPage int
	snapshotErr error

	snapshots  int
	scrolls    int
	topScrolls int
	clicks     []string
}

func newFakeDriver(pages ...[]string) *fakeDriver {
	return &fakeDriver{pages: pages, nextSelector: DefaultSelectors().NextPage}
}

// singleStage wraps each page HTML as a page with one stage
func singleStage(pages ...string) [][]string {
	out := make([][]string, len(pages))
	for i, p := range pages {
		out[i] = []string{p}
	}
	return out
}

func (d *fakeDriver) html() string {
	return d.pages[d.page][d.stage]
}

func (d *fakeDriver) lastStage() bool {
	return d.stage >= len(d.pages[d.page])-1
}

func (d *fakeDriver) Snapshot(_ context.Context) (DocumentView, error) {
	d.snapshots++
	if d.panicOnPage == d.page+1 {
		panic("renderer crashed")
	}
	if d.snapshotErr != nil {
		return nil, d.snapshotErr
	}
	view, err := SnapshotFromHTML(d.html())
	if d.growOnSnapshot && !d.lastStage() {
		d.stage++
	}
	return view, err
}

func (d *fakeDriver) ScrollToBottom(_ context.Context) error {
	d.scrolls++
	if !d.staticScroll && !d.lastStage() {
		d.stage++
	}
	return nil
}

func (d *fakeDriver) ScrollToTop(_ context.Context) error {
	d.topScrolls++
	return nil
}

func (d *fakeDriver) Click(_ context.Context, selector string) (bool, error) {
	d.clicks = append(d.clicks, selector)
	view, err := SnapshotFromHTML(d.html())
	if err != nil {
		return false, err
	}
	// Like querySelector(...).click(): the first match in document order is clicked
	first := view.Find(selector).First()
	if first.Length() == 0 {
		return false, nil
	}
	if first.Is(d.nextSelector) {
		if d.page+1 >= len(d.pages) {
			return false, nil
		}
		d.page++
		d.stage = 0
		return true, nil
	}
	if d.lastStage() {
		return d.stickyLoadMore, nil
	}
	d.stage++
	return true, nil
}

func (d *fakeDriver) clickCount(selector string) int {
	n := 0
	for _, s := range d.clicks {
		if s == selector {
			n++
		}
	}
	return n
}

var errSnapshot = errors.New("snapshot failed")

// HTML builders

func item(asin, body string) string {
	return fmt.Sprintf(`<div data-component-type="s-search-result" data-asin="%s">%s</div>`, asin, body)
}

func titled(asin, title string, extra ...string) string {
	return item(asin, fmt.Sprintf(`<h2><span>%s</span></h2>%s`, title, strings.Join(extra, "")))
}

func rating(value string) string {
	return fmt.Sprintf(`<span class="a-icon-star-small"><span class="a-icon-alt">%s out of 5 stars</span></span>`, value)
}

func bought(text string) string {
	return fmt.Sprintf(`<span class="a-size-base a-color-secondary">%s bought in past month</span>`, text)
}

func delivery(label string) string {
	return fmt.Sprintf(`<div aria-label="%s"><span>%s</span></div>`, label, label)
}

const nextLink = `<ul class="s-pagination-strip"><a class="s-pagination-item s-pagination-next" href="/s?k=test&page=2">Next</a></ul>`

const disabledNext = `<ul class="s-pagination-strip"><span class="s-pagination-item s-pagination-next s-pagination-disabled">Next</span></ul>`

const loadMoreWidget = `<div data-cel-widget="load_more"><a href="#">Show more</a></div>`

func resultsPage(tail string, items ...string) string {
	return `<html><body><div class="s-main-slot s-result-list s-search-results" data-component-type="s-search-results">` +
		strings.Join(items, "\n") +
		`</div>` + tail + `</body></html>`
}

func mustSnapshot(html string) *Snapshot {
	s, err := SnapshotFromHTML(html)
	if err != nil {
		panic(err)
	}
	return s
}
