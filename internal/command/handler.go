package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"sjsage522/asinharvester/helpers"
	"sjsage522/asinharvester/internal/browser"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
	"sjsage522/asinharvester/services/cache"
)

// Options configures a Handler. Only Navigator is required.
type Options struct {
	Navigator browser.Navigator
	// Blocker skips hosts that recently served a robot check. Optional.
	Blocker *cache.Blocker
	Timing  *harvest.Timing
	Clock   harvest.Clock
}

// Handler dispatches trigger commands against one page session. Commands
// run one at a time.
type Handler struct {
	mu      sync.Mutex
	nav     browser.Navigator
	session browser.Session
	blocker *cache.Blocker
	timing  *harvest.Timing
	clock   harvest.Clock
	log     *logger.Logger
}

// NewHandler creates a handler
func NewHandler(opts Options) *Handler {
	return &Handler{
		nav:     opts.Navigator,
		blocker: opts.Blocker,
		timing:  opts.Timing,
		clock:   opts.Clock,
		log:     logger.ForCommand(),
	}
}

// Handle runs req and never returns a Go error; failures are reported in the Response
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	if req.Action == ActionPing {
		return Response{Success: true, Ready: true}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.log.WithField("action", string(req.Action))
	log.Info().Str("url", req.URL).Int("max_pages", req.MaxPages).Msg("Command received")

	switch req.Action {
	case ActionClearHighlighting:
		return h.clearHighlighting(ctx)
	case ActionScanAll, ActionScanFiltered, ActionScanQuick, ActionCollectMultiPage:
	default:
		return failure(herrors.NewValidation("command", fmt.Sprintf("unknown action %q", req.Action)))
	}

	if err := validate(req); err != nil {
		return failure(err)
	}

	session, err := h.prepare(ctx, req.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Could not open page")
		return failure(err)
	}

	resp := h.run(ctx, session, req, log)
	log.Info().
		Bool("success", resp.Success).
		Int("asins", len(resp.Asins)).
		Int("pages", resp.PagesProcessed).
		Str("error", resp.Error).
		Msg("Command finished")
	return resp
}

func validate(req Request) error {
	if req.MaxPages < 0 {
		return herrors.NewValidation("command", fmt.Sprintf("maxPages must be positive, got %d", req.MaxPages))
	}
	switch req.Action {
	case ActionScanFiltered:
		if req.Config == nil {
			return herrors.NewValidation("command", "scanFiltered requires a config")
		}
		return req.Config.Validate()
	case ActionCollectMultiPage:
		if req.Config != nil {
			return req.Config.Validate()
		}
	case ActionScanQuick:
		return req.quickConfig().Validate()
	}
	return nil
}

// prepare returns the session a command runs on, opening url first when given
func (h *Handler) prepare(ctx context.Context, url string) (browser.Session, error) {
	if url == "" {
		if h.session == nil {
			return nil, herrors.NewValidation("command", "no page is open; pass a url")
		}
		return h.session, nil
	}
	if h.nav == nil {
		return nil, herrors.NewConfiguration("no navigator configured", nil)
	}

	host := helpers.HostOf(url)
	if h.blocker != nil && h.blocker.IsBlocked(host) {
		return nil, herrors.New(herrors.ErrorTypeRateLimit, host, "host is blocked after a robot check, try again later", nil)
	}

	if h.session != nil {
		_ = h.session.Close()
		h.session = nil
	}
	session, err := h.nav.Open(ctx, url)
	if err != nil {
		h.noteRateLimit(host, err)
		return nil, err
	}
	h.session = session
	return session, nil
}

func (h *Handler) run(ctx context.Context, session browser.Session, req Request, log *logger.Logger) Response {
	cfg := harvest.CollectorConfig{Timing: h.timing, Clock: h.clock, Logger: log}
	if h.nav != nil {
		sel := h.nav.Selectors()
		cfg.Selectors = &sel
	}
	collector := harvest.NewCollector(session, cfg)

	var (
		result    harvest.Result
		highlight bool
		perPage   bool
	)
	switch req.Action {
	case ActionScanAll:
		result = collector.CollectAll(ctx, req.pages(DefaultScanPages))
	case ActionScanFiltered:
		result = collector.CollectFiltered(ctx, *req.Config, req.pages(DefaultScanPages))
		highlight = true
	case ActionScanQuick:
		result = collector.CollectQuick(ctx, req.quickConfig(), req.pages(DefaultQuickPages))
		perPage = true
	case ActionCollectMultiPage:
		if req.Config != nil {
			result = collector.CollectFiltered(ctx, *req.Config, req.pages(DefaultMultiPageLimit))
			highlight = true
		} else {
			result = collector.CollectAll(ctx, req.pages(DefaultMultiPageLimit))
		}
		perPage = true
	}

	if result.Err != nil {
		h.noteRateLimit(helpers.HostOf(session.URL()), result.Err)
	}

	resp := Response{
		Success:        result.Success(),
		Asins:          result.Identifiers(),
		PagesProcessed: result.PagesProcessed,
		TimeSeconds:    roundSeconds(result.Duration.Seconds()),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if perPage {
		resp.PerPage = result.PerPage
	}
	if req.Action == ActionScanQuick && resp.Success && len(resp.Asins) == 0 {
		resp.Success = false
		resp.Error = NoResultsMessage
	}

	if hl, ok := session.(harvest.Highlighter); ok && highlight && len(resp.Asins) > 0 {
		if err := hl.Highlight(ctx, resp.Asins); err != nil {
			log.Warn().Err(err).Msg("Failed to highlight results")
		}
	}
	return resp
}

func (h *Handler) clearHighlighting(ctx context.Context) Response {
	hl, ok := h.session.(harvest.Highlighter)
	if !ok {
		return Response{Success: true}
	}
	if err := hl.ClearHighlighting(ctx); err != nil {
		return failure(err)
	}
	return Response{Success: true}
}

func (h *Handler) noteRateLimit(host string, err error) {
	if h.blocker == nil || host == "" || !herrors.IsType(err, herrors.ErrorTypeRateLimit) {
		return
	}
	if blockErr := h.blocker.Block(host, herrors.RetryAfterOf(err)); blockErr != nil {
		h.log.Error().Err(blockErr).Str("host", host).Msg("Failed to store block mark")
	}
}

// Close closes the current session
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	return err
}

// ServeHTTP accepts a JSON Request body and writes the JSON Response
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeResponse(w, http.StatusBadRequest, failure(err))
		return
	}
	req, err := ParseRequest(body)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, failure(fmt.Errorf("invalid request: %w", err)))
		return
	}
	writeResponse(w, http.StatusOK, h.Handle(r.Context(), req))
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
