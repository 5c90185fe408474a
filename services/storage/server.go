package storage

import (
	"encoding/json"
	"net/http"
	"time"

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
)

// APIKeyHeader carries the shared key between the remote store and the server
const APIKeyHeader = "X-API-Key"

type saveRequest struct {
	Account  string   `json:"account"`
	Category string   `json:"category"`
	Asins    []string `json:"asins"`
}

type keyRequest struct {
	Account  string `json:"account"`
	Category string `json:"category"`
}

type saveResponse struct {
	Success bool `json:"success"`
	SaveResult
}

type deleteResponse struct {
	Success bool `json:"success"`
	Deleted bool `json:"deleted"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type asinsResponse struct {
	Asins []string `json:"asins"`
}

type catalogResponse struct {
	Data Catalog `json:"data"`
}

type accountsResponse struct {
	Accounts []string `json:"accounts"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type statsResponse struct {
	Stats Stats `json:"stats"`
}

// Server exposes a Store over the JSON API spoken by RemoteStore
type Server struct {
	store  Store
	apiKey string
	log    *logger.Logger
}

// NewServer creates a server over store. A non-empty apiKey is required on every request but /health.
func NewServer(store Store, apiKey string) *Server {
	return &Server{store: store, apiKey: apiKey, log: logger.ForServer()}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /asins/save", s.auth(s.save))
	mux.HandleFunc("GET /asins/get", s.auth(s.getOne))
	mux.HandleFunc("GET /asins/all", s.auth(s.getAll))
	mux.HandleFunc("DELETE /asins/delete", s.auth(s.deleteCategory))
	mux.HandleFunc("GET /accounts", s.auth(s.listAccounts))
	mux.HandleFunc("POST /accounts/add", s.auth(s.addAccount))
	mux.HandleFunc("GET /categories", s.auth(s.listCategories))
	mux.HandleFunc("POST /categories/add", s.auth(s.addCategory))
	mux.HandleFunc("GET /stats", s.auth(s.stats))
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
	})
}

// RequireKey guards next with the server's api key
func (s *Server) RequireKey(next http.Handler) http.Handler {
	return s.auth(next.ServeHTTP)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.apiKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(APIKeyHeader) != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid api key"})
			return
		}
		next(w, r)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Account == "" || req.Category == "" || req.Asins == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields"})
		return
	}
	res, err := s.store.SaveIdentifiers(r.Context(), req.Account, req.Category, req.Asins)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Success: true, SaveResult: res})
}

func (s *Server) getOne(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account, category := q.Get("account"), q.Get("category")
	if account == "" || category == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing account or category"})
		return
	}
	ids, err := s.store.GetOne(r.Context(), account, category)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asinsResponse{Asins: ids})
}

func (s *Server) getAll(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.store.GetAll(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Data: catalog})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Account == "" || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields"})
		return
	}
	deleted, err := s.store.DeleteCategory(r.Context(), req.Account, req.Category)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Deleted: deleted})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountsResponse{Accounts: accounts})
}

func (s *Server) addAccount(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.AddAccount(r.Context(), req.Account); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: categories})
}

func (s *Server) addCategory(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.AddCategory(r.Context(), req.Category); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetStats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: st})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var status int
	switch herrors.TypeOf(err) {
	case herrors.ErrorTypeValidation, herrors.ErrorTypeConfiguration:
		status = http.StatusBadRequest
	case herrors.ErrorTypeNetwork:
		status = http.StatusBadGateway
	case herrors.ErrorTypeTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error().Int("status", status).Msg("Storage request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
