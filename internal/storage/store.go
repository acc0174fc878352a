package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ArunBabu98/sellist-server/internal/ebay"
	_ "modernc.org/sqlite"
)

// RunRecord is one row of the pipeline run log.
type RunRecord struct {
	CorrelationID string
	Status        string
	Reason        string
	Title         string
	ModelVersion  string
	ProcessingMs  int64
	CreatedAt     time.Time
}

// Store defines the persistence surface of the server.
type Store interface {
	// Vision cache methods
	GetVisionCache(hash string) (string, bool, error)
	SetVisionCache(hash, response string) error

	// eBay token methods
	GetEbayTokens() (*ebay.TokenSet, error)
	SaveEbayTokens(tokens *ebay.TokenSet) error

	// Run log methods
	LogRun(rec RunRecord) error
	RecentRuns(limit int) ([]RunRecord, error)

	Close() error
}

// SQLiteStore implements Store using SQLite with encrypted tokens.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath. The
// encryptionKey protects eBay tokens at rest.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set file permissions (only works on creation)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		// Ignore error if file doesn't exist yet
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	visionCacheQuery := `
	CREATE TABLE IF NOT EXISTS vision_cache (
		request_hash TEXT PRIMARY KEY,
		response TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(visionCacheQuery); err != nil {
		return fmt.Errorf("failed to create vision_cache table: %w", err)
	}

	tokensQuery := `
	CREATE TABLE IF NOT EXISTS ebay_tokens (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		encrypted_tokens TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(tokensQuery); err != nil {
		return fmt.Errorf("failed to create ebay_tokens table: %w", err)
	}

	runLogQuery := `
	CREATE TABLE IF NOT EXISTS run_log (
		correlation_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		reason TEXT,
		title TEXT,
		model_version TEXT,
		processing_ms INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(runLogQuery); err != nil {
		return fmt.Errorf("failed to create run_log table: %w", err)
	}

	return nil
}

// GetVisionCache retrieves a cached model response by request hash.
func (s *SQLiteStore) GetVisionCache(hash string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var response string
	err := s.db.QueryRow(
		"SELECT response FROM vision_cache WHERE request_hash = ?",
		hash,
	).Scan(&response)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query vision cache: %w", err)
	}

	return response, true, nil
}

// SetVisionCache stores a model response in the cache.
func (s *SQLiteStore) SetVisionCache(hash, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO vision_cache (request_hash, response)
		VALUES (?, ?)
		ON CONFLICT(request_hash) DO UPDATE SET
			response = excluded.response,
			created_at = CURRENT_TIMESTAMP
	`, hash, response)

	if err != nil {
		return fmt.Errorf("failed to cache vision result: %w", err)
	}
	return nil
}

// GetEbayTokens retrieves the persisted eBay token set.
// Returns nil, nil if no tokens have been saved.
func (s *SQLiteStore) GetEbayTokens() (*ebay.TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encryptedTokens string
	err := s.db.QueryRow(
		"SELECT encrypted_tokens FROM ebay_tokens WHERE id = 1",
	).Scan(&encryptedTokens)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ebay tokens: %w", err)
	}

	tokensJSON, err := Decrypt(encryptedTokens, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt tokens: %w", err)
	}

	var tokens ebay.TokenSet
	if err := json.Unmarshal(tokensJSON, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}

	return &tokens, nil
}

// SaveEbayTokens stores or updates the eBay token set.
func (s *SQLiteStore) SaveEbayTokens(tokens *ebay.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokensJSON, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	encryptedTokens, err := Encrypt(tokensJSON, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt tokens: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO ebay_tokens (id, encrypted_tokens, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			encrypted_tokens = excluded.encrypted_tokens,
			updated_at = excluded.updated_at
	`, encryptedTokens, time.Now())

	if err != nil {
		return fmt.Errorf("failed to save ebay tokens: %w", err)
	}
	return nil
}

// LogRun records the outcome of a pipeline run.
func (s *SQLiteStore) LogRun(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO run_log (correlation_id, status, reason, title, model_version, processing_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO NOTHING
	`, rec.CorrelationID, rec.Status, rec.Reason, rec.Title, rec.ModelVersion, rec.ProcessingMs)

	if err != nil {
		return fmt.Errorf("failed to log run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent run records, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT correlation_id, status, reason, title, model_version, processing_ms, created_at
		FROM run_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var reason, title, modelVersion sql.NullString
		if err := rows.Scan(&rec.CorrelationID, &rec.Status, &reason, &title, &modelVersion, &rec.ProcessingMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		rec.Reason = reason.String
		rec.Title = title.String
		rec.ModelVersion = modelVersion.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
