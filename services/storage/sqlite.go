package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"sjsage522/asinharvester/logger"
	herrors "sjsage522/asinharvester/pkg/errors"
)

const backendLocal = "local"

// SQLiteStore is the local store, a single SQLite file
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the store in dbDir
func OpenSQLite(dbDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, herrors.NewStorage(backendLocal, "create database directory", err)
	}
	dbPath := filepath.Join(dbDir, "asins.db")

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, herrors.NewStorage(backendLocal, "open database", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, dbPath: dbPath, log: logger.ForStorage(backendLocal)}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, herrors.NewStorage(backendLocal, "enable WAL mode", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, herrors.NewStorage(backendLocal, "create tables", err)
	}

	s.log.Debug().Str("path", dbPath).Msg("Opened local store")
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_asins (
		account TEXT NOT NULL,
		category TEXT NOT NULL,
		asin TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account, category, asin)
	);

	CREATE INDEX IF NOT EXISTS idx_saved_category ON saved_asins(category);

	CREATE TABLE IF NOT EXISTS accounts (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// SaveIdentifiers implements Store
func (s *SQLiteStore) SaveIdentifiers(ctx context.Context, account, category string, ids []string) (SaveResult, error) {
	account, category, err := requireKey(backendLocal, account, category)
	if err != nil {
		return SaveResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, herrors.NewStorage(backendLocal, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO saved_asins (account, category, asin) VALUES (?, ?, ?)`)
	if err != nil {
		return SaveResult{}, herrors.NewStorage(backendLocal, "prepare insert", err)
	}
	defer stmt.Close()

	var res SaveResult
	for _, id := range normalizeIdentifiers(ids) {
		r, err := stmt.ExecContext(ctx, account, category, id)
		if err != nil {
			return SaveResult{}, herrors.NewStorage(backendLocal, "insert identifier", err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return SaveResult{}, herrors.NewStorage(backendLocal, "insert identifier", err)
		}
		res.NewCount += int(n)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_asins WHERE account = ? AND category = ?`,
		account, category).Scan(&res.TotalCount)
	if err != nil {
		return SaveResult{}, herrors.NewStorage(backendLocal, "count identifiers", err)
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, herrors.NewStorage(backendLocal, "commit", err)
	}

	s.log.Info().
		Str("account", account).
		Str("category", category).
		Int("new", res.NewCount).
		Int("total", res.TotalCount).
		Msg("Saved identifiers")
	return res, nil
}

// GetAll implements Store
func (s *SQLiteStore) GetAll(ctx context.Context, account string) (Catalog, error) {
	query := `SELECT account, category, asin FROM saved_asins`
	var args []any
	if account != "" {
		query += ` WHERE account = ?`
		args = append(args, account)
	}
	query += ` ORDER BY account, category, asin`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, herrors.NewStorage(backendLocal, "query identifiers", err)
	}
	defer rows.Close()

	catalog := make(Catalog)
	for rows.Next() {
		var acc, cat, asin string
		if err := rows.Scan(&acc, &cat, &asin); err != nil {
			return nil, herrors.NewStorage(backendLocal, "scan identifier", err)
		}
		if catalog[acc] == nil {
			catalog[acc] = make(map[string][]string)
		}
		catalog[acc][cat] = append(catalog[acc][cat], asin)
	}
	if err := rows.Err(); err != nil {
		return nil, herrors.NewStorage(backendLocal, "iterate identifiers", err)
	}
	return catalog, nil
}

// GetOne implements Store
func (s *SQLiteStore) GetOne(ctx context.Context, account, category string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asin FROM saved_asins WHERE account = ? AND category = ? ORDER BY asin`,
		account, category)
	if err != nil {
		return nil, herrors.NewStorage(backendLocal, "query identifiers", err)
	}
	defer rows.Close()

	ids, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	return sortedOrEmpty(ids), nil
}

// DeleteCategory implements Store
func (s *SQLiteStore) DeleteCategory(ctx context.Context, account, category string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_asins WHERE account = ? AND category = ?`, account, category)
	if err != nil {
		return false, herrors.NewStorage(backendLocal, "delete category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, herrors.NewStorage(backendLocal, "delete category", err)
	}
	if n > 0 {
		s.log.Info().Str("account", account).Str("category", category).Int64("removed", n).Msg("Deleted category")
	}
	return n > 0, nil
}

// ListAccounts implements Store
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM accounts UNION SELECT DISTINCT account FROM saved_asins`)
	if err != nil {
		return nil, herrors.NewStorage(backendLocal, "query accounts", err)
	}
	defer rows.Close()

	names, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	return mergeNames(names), nil
}

// ListCategories implements Store
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM categories UNION SELECT DISTINCT category FROM saved_asins`)
	if err != nil {
		return nil, herrors.NewStorage(backendLocal, "query categories", err)
	}
	defer rows.Close()

	names, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	return mergeCategories(names), nil
}

// GetStats implements Store
func (s *SQLiteStore) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT account),
			(SELECT COUNT(*) FROM (SELECT DISTINCT account, category FROM saved_asins))
		FROM saved_asins`).Scan(&st.TotalAsins, &st.AccountCount, &st.CategoryCount)
	if err != nil {
		return Stats{}, herrors.NewStorage(backendLocal, "query stats", err)
	}
	return st, nil
}

// AddAccount implements Store
func (s *SQLiteStore) AddAccount(ctx context.Context, account string) error {
	account, err := requireName(backendLocal, "account", account)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO accounts (name) VALUES (?)`, account); err != nil {
		return herrors.NewStorage(backendLocal, "add account", err)
	}
	return nil
}

// AddCategory implements Store
func (s *SQLiteStore) AddCategory(ctx context.Context, category string) error {
	category, err := requireName(backendLocal, "category", category)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, category); err != nil {
		return herrors.NewStorage(backendLocal, "add category", err)
	}
	return nil
}

// Ping implements Store
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return herrors.NewStorage(backendLocal, "ping", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, herrors.NewStorage(backendLocal, "scan row", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, herrors.NewStorage(backendLocal, "iterate rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) String() string {
	return fmt.Sprintf("sqlite(%s)", s.dbPath)
}
