package storage

import (
	"context"
	"fmt"

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const backendDocument = "document"

// RedisOptions configures the document store
type RedisOptions struct {
	Addr string
	DB   int
	// Prefix namespaces every key the store writes
	Prefix string
}

// RedisStore is the remote document store. Each (account, category) pair is
// one Redis set; two index sets track which pairs hold data.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "asins"
	}
	s := &RedisStore{client: client, prefix: prefix, log: logger.ForStorage(backendDocument)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	s.log.Debug().Str("addr", opts.Addr).Int("db", opts.DB).Str("prefix", prefix).Msg("Connected document store")
	return s, nil
}

// Account and category names may contain the separator, so their lengths
// are part of the key.
func (s *RedisStore) pairKey(account, category string) string {
	return fmt.Sprintf("%s:asins:%d:%s:%s", s.prefix, len(account), account, category)
}

func (s *RedisStore) accountCategoriesKey(account string) string {
	return fmt.Sprintf("%s:categories:%s", s.prefix, account)
}

func (s *RedisStore) populatedAccountsKey() string { return s.prefix + ":accounts" }

func (s *RedisStore) registeredAccountsKey() string { return s.prefix + ":registered:accounts" }

func (s *RedisStore) registeredCategoryKey() string { return s.prefix + ":registered:categories" }

// SaveIdentifiers implements Store
func (s *RedisStore) SaveIdentifiers(ctx context.Context, account, category string, ids []string) (SaveResult, error) {
	account, category, err := requireKey(backendDocument, account, category)
	if err != nil {
		return SaveResult{}, err
	}
	members := normalizeIdentifiers(ids)
	key := s.pairKey(account, category)

	if len(members) == 0 {
		total, err := s.client.SCard(ctx, key).Result()
		if err != nil {
			return SaveResult{}, herrors.NewStorage(backendDocument, "count identifiers", err)
		}
		return SaveResult{TotalCount: int(total)}, nil
	}

	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}

	var added, total *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, key, values...)
		total = pipe.SCard(ctx, key)
		pipe.SAdd(ctx, s.accountCategoriesKey(account), category)
		pipe.SAdd(ctx, s.populatedAccountsKey(), account)
		return nil
	})
	if err != nil {
		return SaveResult{}, herrors.NewStorage(backendDocument, "save identifiers", err)
	}

	res := SaveResult{NewCount: int(added.Val()), TotalCount: int(total.Val())}
	s.log.Info().
		Str("account", account).
		Str("category", category).
		Int("new", res.NewCount).
		Int("total", res.TotalCount).
		Msg("Saved identifiers")
	return res, nil
}

// GetAll implements Store
func (s *RedisStore) GetAll(ctx context.Context, account string) (Catalog, error) {
	accounts, err := s.client.SMembers(ctx, s.populatedAccountsKey()).Result()
	if err != nil {
		return nil, herrors.NewStorage(backendDocument, "list accounts", err)
	}

	catalog := make(Catalog)
	for _, acc := range accounts {
		if account != "" && acc != account {
			continue
		}
		categories, err := s.client.SMembers(ctx, s.accountCategoriesKey(acc)).Result()
		if err != nil {
			return nil, herrors.NewStorage(backendDocument, "list categories", err)
		}
		for _, cat := range categories {
			ids, err := s.GetOne(ctx, acc, cat)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				continue
			}
			if catalog[acc] == nil {
				catalog[acc] = make(map[string][]string)
			}
			catalog[acc][cat] = ids
		}
	}
	return catalog, nil
}

// GetOne implements Store
func (s *RedisStore) GetOne(ctx context.Context, account, category string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.pairKey(account, category)).Result()
	if err != nil {
		return nil, herrors.NewStorage(backendDocument, "get identifiers", err)
	}
	return sortedOrEmpty(ids), nil
}

// DeleteCategory implements Store
func (s *RedisStore) DeleteCategory(ctx context.Context, account, category string) (bool, error) {
	var deleted *redis.IntCmd
	var remaining *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.pairKey(account, category))
		pipe.SRem(ctx, s.accountCategoriesKey(account), category)
		remaining = pipe.SCard(ctx, s.accountCategoriesKey(account))
		return nil
	})
	if err != nil {
		return false, herrors.NewStorage(backendDocument, "delete category", err)
	}
	if remaining.Val() == 0 {
		if err := s.client.SRem(ctx, s.populatedAccountsKey(), account).Err(); err != nil {
			return false, herrors.NewStorage(backendDocument, "update account index", err)
		}
	}
	if deleted.Val() > 0 {
		s.log.Info().Str("account", account).Str("category", category).Msg("Deleted category")
	}
	return deleted.Val() > 0, nil
}

// ListAccounts implements Store
func (s *RedisStore) ListAccounts(ctx context.Context) ([]string, error) {
	names, err := s.client.SUnion(ctx, s.registeredAccountsKey(), s.populatedAccountsKey()).Result()
	if err != nil {
		return nil, herrors.NewStorage(backendDocument, "list accounts", err)
	}
	return mergeNames(names), nil
}

// ListCategories implements Store
func (s *RedisStore) ListCategories(ctx context.Context) ([]string, error) {
	registered, err := s.client.SMembers(ctx, s.registeredCategoryKey()).Result()
	if err != nil {
		return nil, herrors.NewStorage(backendDocument, "list categories", err)
	}
	accounts, err := s.client.SMembers(ctx, s.populatedAccountsKey()).Result()
	if err != nil {
		return nil, herrors.NewStorage(backendDocument, "list accounts", err)
	}
	lists := [][]string{registered}
	for _, acc := range accounts {
		cats, err := s.client.SMembers(ctx, s.accountCategoriesKey(acc)).Result()
		if err != nil {
			return nil, herrors.NewStorage(backendDocument, "list categories", err)
		}
		lists = append(lists, cats)
	}
	return mergeCategories(lists...), nil
}

// GetStats implements Store
func (s *RedisStore) GetStats(ctx context.Context) (Stats, error) {
	catalog, err := s.GetAll(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	return statsOf(catalog), nil
}

// AddAccount implements Store
func (s *RedisStore) AddAccount(ctx context.Context, account string) error {
	account, err := requireName(backendDocument, "account", account)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.registeredAccountsKey(), account).Err(); err != nil {
		return herrors.NewStorage(backendDocument, "add account", err)
	}
	return nil
}

// AddCategory implements Store
func (s *RedisStore) AddCategory(ctx context.Context, category string) error {
	category, err := requireName(backendDocument, "category", category)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.registeredCategoryKey(), category).Err(); err != nil {
		return herrors.NewStorage(backendDocument, "add category", err)
	}
	return nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return herrors.NewStorage(backendDocument, "ping", err)
	}
	return nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// statsOf counts a catalog the same way every backend does
func statsOf(catalog Catalog) Stats {
	var st Stats
	for _, categories := range catalog {
		if len(categories) == 0 {
			continue
		}
		st.AccountCount++
		for _, ids := range categories {
			st.CategoryCount++
			st.TotalAsins += len(ids)
		}
	}
	return st
}
