package harvest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
)

// Mode names a collection strategy
type Mode string

const (
	ModeAll      Mode = "all"
	ModeFiltered Mode = "filtered"
	ModeQuick    Mode = "quick"
)

// PageStat records what one page contributed to a run
type PageStat struct {
	Page     int `json:"page"`
	Raw      int `json:"raw"`
	Accepted int `json:"accepted"`
	New      int `json:"newAsins"`
}

// Result is the outcome of a collection run. IDs holds everything collected
// before Err, so a failed run still carries its partial work.
type Result struct {
	IDs            ResultSet
	PagesProcessed int
	PerPage        []PageStat
	Err            error
	Duration       time.Duration
}

// Success reports whether the run finished without a fault
func (r Result) Success() bool {
	return r.Err == nil
}

// Identifiers returns the collected identifiers sorted
func (r Result) Identifiers() []string {
	return r.IDs.Strings()
}

// CollectorConfig carries the optional collaborators of a Collector
type CollectorConfig struct {
	Selectors *Selectors
	Timing    *Timing
	Clock     Clock
	Logger    *logger.Logger
}

// Collector walks result pages through a Driver and accumulates identifiers
type Collector struct {
	driver Driver
	sel    Selectors
	timing Timing
	clock  Clock
	log    *logger.Logger

	extractor *Extractor
	evaluator *Evaluator
}

// NewCollector creates a collector over driver
func NewCollector(driver Driver, cfg CollectorConfig) *Collector {
	sel := DefaultSelectors()
	if cfg.Selectors != nil {
		sel = *cfg.Selectors
	}
	timing := DefaultTiming()
	if cfg.Timing != nil {
		timing = *cfg.Timing
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Collector{
		driver:    driver,
		sel:       sel,
		timing:    timing,
		clock:     clock,
		log:       cfg.Logger,
		extractor: NewExtractor(sel),
		evaluator: NewEvaluator(sel),
	}
}

// CollectAll collects every valid identifier on up to maxPages pages
func (c *Collector) CollectAll(ctx context.Context, maxPages int) Result {
	return c.collect(ctx, ModeAll, nil, maxPages)
}

// CollectFiltered collects the identifiers passing cfg on up to maxPages pages
func (c *Collector) CollectFiltered(ctx context.Context, cfg FilterConfig, maxPages int) Result {
	return c.collect(ctx, ModeFiltered, &cfg, maxPages)
}

// CollectQuick is CollectFiltered with the lighter loading step
func (c *Collector) CollectQuick(ctx context.Context, cfg FilterConfig, maxPages int) Result {
	return c.collect(ctx, ModeQuick, &cfg, maxPages)
}

func (c *Collector) runLogger(mode Mode) *logger.Logger {
	if c.log != nil {
		return c.log.WithField("mode", string(mode))
	}
	return logger.ForCollector(string(mode))
}

func (c *Collector) collect(ctx context.Context, mode Mode, cfg *FilterConfig, maxPages int) Result {
	start := c.clock.Now()
	log := c.runLogger(mode)
	result := Result{IDs: NewResultSet()}
	defer func() {
		result.Duration = c.clock.Now().Sub(start)
	}()

	if maxPages < 1 {
		result.Err = herrors.NewValidation("collector", fmt.Sprintf("maxPages must be positive, got %d", maxPages))
		return result
	}

	// One reference date for the whole run keeps delivery checks stable across midnight
	today := start
	loader := NewLoader(c.driver, c.sel, c.clock, c.timing, log)

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}

		accepted, stat, err := c.processPage(ctx, loader, log, mode, cfg, today, page)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Page failed, stopping collection")
			result.Err = err
			break
		}
		if stat == nil {
			log.Info().Int("page", page).Msg("Page reports no results, stopping collection")
			break
		}

		stat.New = result.IDs.Merge(accepted)
		result.PerPage = append(result.PerPage, *stat)
		result.PagesProcessed = page

		log.Info().
			Int("page", page).
			Int("raw", stat.Raw).
			Int("accepted", stat.Accepted).
			Int("new", stat.New).
			Int("total", result.IDs.Len()).
			Msg("Page collected")

		if page >= maxPages {
			break
		}

		advanced, err := c.advance(ctx, loader)
		if err != nil {
			result.Err = err
			break
		}
		if !advanced {
			log.Info().Int("page", page).Msg("No next page")
			break
		}
	}

	log.Info().
		Int("pages", result.PagesProcessed).
		Int("total", result.IDs.Len()).
		Bool("success", result.Err == nil).
		Msg("Collection finished")

	return result
}

// processPage loads, extracts and filters the current page. A nil stat with
// a nil error means the page explicitly has no results. Panics from the
// driver are turned into extraction faults so that earlier pages survive.
func (c *Collector) processPage(
	ctx context.Context,
	loader *Loader,
	log *logger.Logger,
	mode Mode,
	cfg *FilterConfig,
	today time.Time,
	page int,
) (accepted ResultSet, stat *PageStat, err error) {
	defer func() {
		if r := recover(); r != nil {
			accepted, stat = nil, nil
			err = herrors.NewExtraction("collector", fmt.Sprintf("page %d panicked: %v", page, r), nil)
		}
	}()

	if err := c.load(ctx, loader, mode, page); err != nil {
		return nil, nil, err
	}

	view, err := c.driver.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c.sel.RobotCheck != "" && view.Find(c.sel.RobotCheck).Length() > 0 {
		return nil, nil, herrors.NewRateLimit("collector", 0)
	}
	if c.sel.NoResultsText != "" && strings.Contains(view.Text(), c.sel.NoResultsText) {
		return nil, nil, nil
	}

	candidates, err := c.extractor.Extract(view)
	if err != nil {
		return nil, nil, err
	}

	accepted = NewResultSet()
	for _, cand := range candidates {
		if cfg != nil {
			ok, why := c.evaluator.Explain(cand, *cfg, today)
			if !ok {
				log.Debug().Str("asin", string(cand.ID)).Str("rejected", why.String()).Msg("Filtered out")
				continue
			}
		}
		accepted.Insert(cand.ID)
	}

	return accepted, &PageStat{Page: page, Raw: len(candidates), Accepted: accepted.Len()}, nil
}

func (c *Collector) load(ctx context.Context, loader *Loader, mode Mode, page int) error {
	if mode != ModeQuick {
		_, err := loader.Load(ctx)
		return err
	}
	if page == 1 {
		if _, err := loader.WaitForResults(ctx, c.timing.ResultsTimeout); err != nil {
			return err
		}
	}
	return loader.QuickLoad(ctx)
}

// advance clicks the next-page control and waits for the new page. It
// reports false when there is no next page.
func (c *Collector) advance(ctx context.Context, loader *Loader) (advanced bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			advanced = false
			err = herrors.NewExtraction("collector", fmt.Sprintf("pagination panicked: %v", r), nil)
		}
	}()

	clicked, err := c.driver.Click(ctx, c.sel.NextPage)
	if err != nil || !clicked {
		return false, err
	}
	if err := loader.AwaitNavigation(ctx); err != nil {
		return false, err
	}
	return true, nil
}
