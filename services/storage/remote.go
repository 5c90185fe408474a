package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
)

const backendAPI = "api"

// RemoteStore talks to a storage Server over HTTP
type RemoteStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logger.Logger
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates a client for the API rooted at baseURL (e.g. http://localhost:3000/api)
func NewRemoteStore(baseURL, apiKey string, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     logger.ForStorage(backendAPI),
	}
}

func (s *RemoteStore) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return herrors.NewStorage(backendAPI, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return herrors.NewStorage(backendAPI, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set(APIKeyHeader, s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return herrors.NewStorage(backendAPI, method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode)
		if e.Error != "" {
			msg += ": " + e.Error
		}
		return herrors.NewStorage(backendAPI, msg, nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return herrors.NewStorage(backendAPI, "decode response of "+path, err)
	}
	return nil
}

// SaveIdentifiers implements Store
func (s *RemoteStore) SaveIdentifiers(ctx context.Context, account, category string, ids []string) (SaveResult, error) {
	account, category, err := requireKey(backendAPI, account, category)
	if err != nil {
		return SaveResult{}, err
	}
	var resp saveResponse
	err = s.do(ctx, http.MethodPost, "/asins/save", nil,
		saveRequest{Account: account, Category: category, Asins: normalizeIdentifiers(ids)}, &resp)
	if err != nil {
		return SaveResult{}, err
	}
	s.log.Info().
		Str("account", account).
		Str("category", category).
		Int("new", resp.NewCount).
		Int("total", resp.TotalCount).
		Msg("Saved identifiers")
	return resp.SaveResult, nil
}

// GetAll implements Store
func (s *RemoteStore) GetAll(ctx context.Context, account string) (Catalog, error) {
	var query url.Values
	if account != "" {
		query = url.Values{"account": {account}}
	}
	var resp catalogResponse
	if err := s.do(ctx, http.MethodGet, "/asins/all", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = make(Catalog)
	}
	return resp.Data, nil
}

// GetOne implements Store
func (s *RemoteStore) GetOne(ctx context.Context, account, category string) ([]string, error) {
	var resp asinsResponse
	query := url.Values{"account": {account}, "category": {category}}
	if err := s.do(ctx, http.MethodGet, "/asins/get", query, nil, &resp); err != nil {
		return nil, err
	}
	return sortedOrEmpty(resp.Asins), nil
}

// DeleteCategory implements Store
func (s *RemoteStore) DeleteCategory(ctx context.Context, account, category string) (bool, error) {
	var resp deleteResponse
	err := s.do(ctx, http.MethodDelete, "/asins/delete", nil, keyRequest{Account: account, Category: category}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// ListAccounts implements Store
func (s *RemoteStore) ListAccounts(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := s.do(ctx, http.MethodGet, "/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return mergeNames(resp.Accounts), nil
}

// ListCategories implements Store
func (s *RemoteStore) ListCategories(ctx context.Context) ([]string, error) {
	var resp categoriesResponse
	if err := s.do(ctx, http.MethodGet, "/categories", nil, nil, &resp); err != nil {
		return nil, err
	}
	return mergeCategories(resp.Categories), nil
}

// GetStats implements Store
func (s *RemoteStore) GetStats(ctx context.Context) (Stats, error) {
	var resp statsResponse
	if err := s.do(ctx, http.MethodGet, "/stats", nil, nil, &resp); err != nil {
		return Stats{}, err
	}
	return resp.Stats, nil
}

// AddAccount implements Store
func (s *RemoteStore) AddAccount(ctx context.Context, account string) error {
	account, err := requireName(backendAPI, "account", account)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, "/accounts/add", nil, keyRequest{Account: account}, nil)
}

// AddCategory implements Store
func (s *RemoteStore) AddCategory(ctx context.Context, category string) error {
	category, err := requireName(backendAPI, "category", category)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, "/categories/add", nil, keyRequest{Category: category}, nil)
}

// Ping implements Store
func (s *RemoteStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// Close implements Store
func (s *RemoteStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
