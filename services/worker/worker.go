package worker

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"sjsage522/asinharvester/helpers"
	"sjsage522/asinharvester/internal/browser"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
	"sjsage522/asinharvester/services/cache"
	"sjsage522/asinharvester/services/publisher"
	"sjsage522/asinharvester/services/storage"

	"github.com/google/uuid"
)

// Options carries the optional collaborators of a Worker
type Options struct {
	Blocker *cache.Blocker
	Timing  *harvest.Timing
	Clock   harvest.Clock
}

// Worker runs the configured jobs: collect, save, publish
type Worker struct {
	ctx           context.Context
	jobs          []Job
	navigator     browser.Navigator
	store         storage.Store
	publisher     publisher.Publisher
	blocker       *cache.Blocker
	timing        *harvest.Timing
	clock         harvest.Clock
	crawlInterval time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	jobs []Job,
	nav browser.Navigator,
	store storage.Store,
	pub publisher.Publisher,
	crawlInterval time.Duration,
	opts Options,
) *Worker {
	if pub == nil {
		pub = publisher.Nop{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = harvest.RealClock{}
	}
	return &Worker{
		ctx:           ctx,
		jobs:          jobs,
		navigator:     nav,
		store:         store,
		publisher:     pub,
		blocker:       opts.Blocker,
		timing:        opts.Timing,
		clock:         clock,
		crawlInterval: crawlInterval,
		log:           logger.ForWorker(),
	}
}

// Start runs every job, sleeps the crawl interval and repeats until the
// context is cancelled
func (w *Worker) Start() error {
	for {
		start := w.clock.Now()
		w.RunOnce()
		elapsed := w.clock.Now().Sub(start)
		if os.Getenv("ASIN_ENVIRONMENT") != "production" {
			w.log.Info().Dur("elapsed", elapsed).Int("jobs", len(w.jobs)).Msg("Finished job round")
		}
		if err := w.clock.Sleep(w.ctx, w.crawlInterval); err != nil {
			w.log.Info().Msg("Worker stopping")
			return nil
		}
	}
}

// RunOnce runs every job once, strictly one after another, then trims the streams
func (w *Worker) RunOnce() []Event {
	events := make([]Event, 0, len(w.jobs))
	for _, job := range w.jobs {
		if w.ctx.Err() != nil {
			break
		}
		event, ok := w.runJob(job)
		if !ok {
			continue
		}
		w.publish(event)
		events = append(events, event)
	}

	// Trim all streams after crawling
	if err := w.publisher.TrimStreams(); err != nil {
		logger.LogError("StreamTrimming", err, "failed to trim streams")
	}
	return events
}

// runJob collects, saves and describes one job. It reports false when the
// job was skipped.
func (w *Worker) runJob(job Job) (Event, bool) {
	log := w.log.WithFields(logger.Fields{"job": job.Name, "mode": string(job.Mode)})
	host := helpers.HostOf(job.URL)

	if w.blocker != nil && w.blocker.IsBlocked(host) {
		log.Warn().Str("host", host).Msg("Host is blocked, skipping job")
		return Event{}, false
	}

	event := Event{
		RunID:     uuid.NewString(),
		Job:       job.Name,
		URL:       job.URL,
		Account:   job.Account,
		Category:  job.Category,
		Mode:      job.Mode,
		Asins:     []string{},
		StartedAt: w.clock.Now(),
	}

	result, err := w.collect(job, log)
	if err == nil {
		err = result.Err
	}
	if herrors.IsType(err, herrors.ErrorTypeRateLimit) && w.blocker != nil {
		if blockErr := w.blocker.Block(host, herrors.RetryAfterOf(err)); blockErr != nil {
			log.Error().Err(blockErr).Msg("Failed to store block mark")
		}
	}

	event.Asins = result.Identifiers()
	event.PagesProcessed = result.PagesProcessed
	event.PerPage = result.PerPage

	// Partial results are saved too
	if len(event.Asins) > 0 {
		saved, saveErr := w.store.SaveIdentifiers(w.ctx, job.Account, job.Category, event.Asins)
		if saveErr != nil {
			logger.LogError(job.Name, saveErr, "failed to save identifiers")
			if err == nil {
				err = saveErr
			}
		} else {
			event.NewCount, event.TotalCount = saved.NewCount, saved.TotalCount
		}
	}

	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
		event.Retryable = herrors.IsRetryable(err)
		log.WithError(err).Warn().
			Int("asins", len(event.Asins)).
			Bool("retryable", event.Retryable).
			Msg("Job finished with error")
	} else {
		log.Info().
			Int("asins", len(event.Asins)).
			Int("new", event.NewCount).
			Int("total", event.TotalCount).
			Int("pages", event.PagesProcessed).
			Msg("Job finished")
	}
	event.FinishedAt = w.clock.Now()
	return event, true
}

func (w *Worker) collect(job Job, log *logger.Logger) (harvest.Result, error) {
	session, err := w.navigator.Open(w.ctx, job.URL)
	if err != nil {
		return harvest.Result{IDs: harvest.NewResultSet()}, err
	}
	defer session.Close()

	sel := w.navigator.Selectors()
	collector := harvest.NewCollector(session, harvest.CollectorConfig{
		Selectors: &sel,
		Timing:    w.timing,
		Clock:     w.clock,
		Logger:    log,
	})

	switch job.Mode {
	case harvest.ModeFiltered:
		return collector.CollectFiltered(w.ctx, *job.Filter, job.MaxPages), nil
	case harvest.ModeQuick:
		return collector.CollectQuick(w.ctx, *job.Filter, job.MaxPages), nil
	default:
		return collector.CollectAll(w.ctx, job.MaxPages), nil
	}
}

func (w *Worker) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.LogError(event.Job, err, "failed to encode event")
		return
	}
	if err := w.publisher.Publish(EventKey, data); err != nil {
		logger.LogError(event.Job, err, "failed to publish event")
	}
}
