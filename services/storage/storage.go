package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sjsage522/asinharvester/config"
	"sjsage522/asinharvester/internal/harvest"
	herrors "sjsage522/asinharvester/pkg/errors"
)

// DefaultCategories are always listed, before any custom category
var DefaultCategories = []string{"console", "watch strap", "phone case", "electronics"}

// Catalog maps account → category → identifiers
type Catalog map[string]map[string][]string

// SaveResult reports the outcome of SaveIdentifiers
type SaveResult struct {
	// NewCount is how many identifiers were not stored before
	NewCount int `json:"newCount"`
	// TotalCount is the size of the stored set after the save
	TotalCount int `json:"totalCount"`
}

// Stats summarizes the stored data
type Stats struct {
	TotalAsins   int `json:"totalAsins"`
	AccountCount int `json:"accountCount"`
	// CategoryCount counts (account, category) pairs holding identifiers
	CategoryCount int `json:"categoryCount"`
}

// Store persists identifier sets under an (account, category) key.
// Every backend honors the same semantics:
//   - SaveIdentifiers is a set union; invalid identifiers are dropped and
//     the rest are stored upper-cased.
//   - Identifier lists are returned sorted, never nil.
//   - GetAll with an empty account returns every account.
//   - DeleteCategory reports whether the pair held any identifiers.
//   - ListAccounts merges registered accounts with accounts holding data, sorted.
//   - ListCategories returns DefaultCategories followed by every other
//     registered or populated category, sorted.
type Store interface {
	SaveIdentifiers(ctx context.Context, account, category string, ids []string) (SaveResult, error)
	GetAll(ctx context.Context, account string) (Catalog, error)
	GetOne(ctx context.Context, account, category string) ([]string, error)
	DeleteCategory(ctx context.Context, account, category string) (bool, error)
	ListAccounts(ctx context.Context) ([]string, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetStats(ctx context.Context) (Stats, error)
	AddAccount(ctx context.Context, account string) error
	AddCategory(ctx context.Context, category string) error
	Ping(ctx context.Context) error
	Close() error
}

// New creates the store selected by cfg.StorageBackend
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendLocal:
		return OpenSQLite(cfg.LocalDBDir)
	case config.BackendDocument:
		return NewRedisStore(ctx, RedisOptions{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: cfg.RedisKeyPrefix,
		})
	case config.BackendAPI:
		return NewRemoteStore(cfg.RemoteAPIURL, cfg.RemoteAPIKey, cfg.RemoteAPITimeout), nil
	default:
		return nil, herrors.NewConfiguration(fmt.Sprintf("unknown storage backend %q", cfg.StorageBackend), nil)
	}
}

// normalizeIdentifiers drops invalid identifiers and returns the rest
// upper-cased, deduplicated and sorted
func normalizeIdentifiers(ids []string) []string {
	return harvest.NewResultSet(ids...).Strings()
}

// requireKey validates an (account, category) pair and returns it trimmed
func requireKey(backend, account, category string) (string, string, error) {
	account, category = strings.TrimSpace(account), strings.TrimSpace(category)
	if account == "" || category == "" {
		return "", "", herrors.NewValidation(backend, "account and category are required")
	}
	return account, category, nil
}

func requireName(backend, kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", herrors.NewValidation(backend, kind+" is required")
	}
	return name, nil
}

// mergeNames returns the sorted union of the given name lists
func mergeNames(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// mergeCategories puts DefaultCategories first, then the remaining names sorted
func mergeCategories(lists ...[]string) []string {
	out := append([]string(nil), DefaultCategories...)
	defaults := make(map[string]struct{}, len(DefaultCategories))
	for _, c := range DefaultCategories {
		defaults[c] = struct{}{}
	}
	for _, name := range mergeNames(lists...) {
		if _, ok := defaults[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func sortedOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	sort.Strings(ids)
	return ids
}
