package harvest

import (
	"context"
	"time"

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
)

// Timing holds the settle delays and attempt budgets used while loading pages
type Timing struct {
	ScrollDelay      time.Duration
	MaxScrolls       int
	StableScrolls    int
	ClickSettleDelay time.Duration

	NavigationDelay time.Duration
	NavigationPoll  time.Duration
	NavigationPolls int
	// MinIdentifiers is how many identifier elements a freshly navigated page must show
	MinIdentifiers int

	ResultsTimeout time.Duration
	ResultsPoll    time.Duration

	QuickGrowthScrolls int
	QuickGrowthDelay   time.Duration
	QuickPageScrolls   int
	QuickScrollDelay   time.Duration
}

// DefaultTiming returns the delays tuned for Amazon result pages
func DefaultTiming() Timing {
	return Timing{
		ScrollDelay:        1500 * time.Millisecond,
		MaxScrolls:         50,
		StableScrolls:      5,
		ClickSettleDelay:   2 * time.Second,
		NavigationDelay:    3 * time.Second,
		NavigationPoll:     500 * time.Millisecond,
		NavigationPolls:    10,
		MinIdentifiers:     10,
		ResultsTimeout:     8 * time.Second,
		ResultsPoll:        300 * time.Millisecond,
		QuickGrowthScrolls: 10,
		QuickGrowthDelay:   600 * time.Millisecond,
		QuickPageScrolls:   3,
		QuickScrollDelay:   300 * time.Millisecond,
	}
}

// stagnantClickStreak is the streak length at which the load-more control is tried
const stagnantClickStreak = 2

// Loader grows the current page until its content stops changing
type Loader struct {
	driver Driver
	ext    *Extractor
	sel    Selectors
	clock  Clock
	timing Timing
	log    *logger.Logger
}

// NewLoader creates a loader over driver
func NewLoader(driver Driver, sel Selectors, clock Clock, timing Timing, log *logger.Logger) *Loader {
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		driver: driver,
		ext:    NewExtractor(sel),
		sel:    sel,
		clock:  clock,
		timing: timing,
		log:    log,
	}
}

// LoadMore scrolls until the unique identifier count is unchanged for
// stabilityThreshold consecutive attempts or maxAttempts is spent, and returns
// the final count. After two stagnant attempts it clicks the load-more control
// once per streak. Running out of attempts is logged, not returned.
func (l *Loader) LoadMore(ctx context.Context, maxAttempts, stabilityThreshold int) (int, error) {
	probe := StabilityProbe{
		Grow:    l.driver.ScrollToBottom,
		Measure: l.countIdentifiers,
		Stagnant: func(ctx context.Context, streak int) (bool, error) {
			if streak != stagnantClickStreak || l.sel.LoadMore == "" {
				return false, nil
			}
			paginates, err := l.loadMoreIsPagination(ctx)
			if err != nil || paginates {
				return false, err
			}
			clicked, err := l.driver.Click(ctx, l.sel.LoadMore)
			if err != nil || !clicked {
				return false, err
			}
			l.log.Debug().Msg("Clicked load-more control")
			if err := l.clock.Sleep(ctx, l.timing.ClickSettleDelay); err != nil {
				return false, err
			}
			return true, nil
		},
	}

	opts := StabilityOptions{
		MaxAttempts: maxAttempts,
		Threshold:   stabilityThreshold,
		Settle:      l.timing.ScrollDelay,
	}

	state, err := WaitForStability(ctx, l.clock, opts, probe)
	if err != nil {
		if !herrors.IsType(err, herrors.ErrorTypeTimeout) {
			return state.Count, err
		}
		l.log.Warn().Err(err).Int("count", state.Count).Msg("Page never settled, using what loaded")
	}

	l.log.Debug().
		Int("count", state.Count).
		Int("attempts", state.Attempts).
		Bool("stable", state.Stable).
		Msg("Finished scrolling")

	if err := l.driver.ScrollToTop(ctx); err != nil {
		return state.Count, err
	}
	return state.Count, nil
}

// Load runs LoadMore with the configured budgets
func (l *Loader) Load(ctx context.Context) (int, error) {
	return l.LoadMore(ctx, l.timing.MaxScrolls, l.timing.StableScrolls)
}

// WaitForResults polls until the results grid holds at least one item. It
// reports false when the timeout passed first.
func (l *Loader) WaitForResults(ctx context.Context, timeout time.Duration) (bool, error) {
	ok, err := waitFor(ctx, l.clock, timeout, l.timing.ResultsPoll, func() (bool, error) {
		view, err := l.driver.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		return l.ext.CountItems(view) > 0, nil
	})
	if err == nil && !ok {
		l.log.Warn().Dur("timeout", timeout).Msg("Timed out waiting for search results grid")
	}
	return ok, err
}

// QuickLoad is the light loading step: a few growth scrolls while the item
// count keeps rising, then a fixed number of short scrolls.
func (l *Loader) QuickLoad(ctx context.Context) error {
	last := 0
	for i := 0; i < l.timing.QuickGrowthScrolls; i++ {
		if err := l.scrollAndSettle(ctx, l.timing.QuickGrowthDelay); err != nil {
			return err
		}
		view, err := l.driver.Snapshot(ctx)
		if err != nil {
			return err
		}
		count := l.ext.CountItems(view)
		if count <= last {
			break
		}
		last = count
	}

	for i := 0; i < l.timing.QuickPageScrolls; i++ {
		if err := l.scrollAndSettle(ctx, l.timing.QuickScrollDelay); err != nil {
			return err
		}
	}
	return nil
}

// AwaitNavigation sleeps the navigation delay and then polls until the page
// shows enough identifier elements or the poll budget runs out.
func (l *Loader) AwaitNavigation(ctx context.Context) error {
	if err := l.clock.Sleep(ctx, l.timing.NavigationDelay); err != nil {
		return err
	}
	for i := 0; i < l.timing.NavigationPolls; i++ {
		view, err := l.driver.Snapshot(ctx)
		if err != nil {
			return err
		}
		if view.Find("["+l.sel.IdentifierAttr+"]").Length() >= l.timing.MinIdentifiers {
			return nil
		}
		if err := l.clock.Sleep(ctx, l.timing.NavigationPoll); err != nil {
			return err
		}
	}
	l.log.Debug().Msg("Next page still sparse after navigation wait")
	return nil
}

// loadMoreIsPagination reports whether the element a load-more click would hit
// is the next-page control. Clicking it would leave the page mid-load.
func (l *Loader) loadMoreIsPagination(ctx context.Context) (bool, error) {
	if l.sel.NextPage == "" {
		return false, nil
	}
	view, err := l.driver.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	target := view.Find(l.sel.LoadMore).First()
	if target.Length() == 0 || !target.Is(l.sel.NextPage) {
		return false, nil
	}
	l.log.Warn().Str("selector", l.sel.LoadMore).Msg("Load-more selector matches the next-page control, not clicking")
	return true, nil
}

func (l *Loader) scrollAndSettle(ctx context.Context, d time.Duration) error {
	if err := l.driver.ScrollToBottom(ctx); err != nil {
		return err
	}
	return l.clock.Sleep(ctx, d)
}

func (l *Loader) countIdentifiers(ctx context.Context) (int, error) {
	view, err := l.driver.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return l.ext.CountIdentifiers(view), nil
}
