// Package store persists frames, text extractions, detected tasks, and
// cached solutions to SQLite. Full-text search over extracted words uses
// FTS5 when the driver supports it and falls back to LIKE matching when it
// does not.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"screensage/internal/logging"
	"screensage/internal/types"
)

// ExtractionHit is one full-text search result.
type ExtractionHit struct {
	FrameID    string  `json:"frame_id"`
	WordText   string  `json:"word_text"`
	Confidence float64 `json:"confidence"`
	TextType   string  `json:"text_type"`
}

// Store is the persistence contract the pipeline writes through.
type Store interface {
	CreateSession(ctx context.Context, configSnapshot string) (string, error)
	SaveFrame(ctx context.Context, sessionID string, frame *types.Frame, report *types.ChangeReport) error
	SaveExtractions(ctx context.Context, frameID string, words []types.Word) error
	SaveDetectedTask(ctx context.Context, frameID string, problem *types.DetectedProblem, suggestions []string) error
	SaveSolution(ctx context.Context, fingerprint string, solution *types.GeneratedSolution) error
	LoadSolution(ctx context.Context, fingerprint string) (*types.GeneratedSolution, error)
	SearchText(ctx context.Context, query string, limit int) ([]ExtractionHit, error)
	Close() error
}

// LocalStore implements Store over a single SQLite file.
type LocalStore struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	ftsEnabled bool
}

// NewLocalStore opens (or creates) the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectFTS()
	logging.Store("store initialized at %s (fts=%v)", path, s.ftsEnabled)
	return s, nil
}

func (s *LocalStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS hf_video_sessions (
			id TEXT PRIMARY KEY,
			started_at_ms INTEGER NOT NULL,
			config_snapshot TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS hf_video_frames (
			id TEXT PRIMARY KEY,
			timestamp_ms INTEGER NOT NULL,
			session_id TEXT,
			frame_hash TEXT,
			change_score REAL,
			file_path TEXT,
			screen_resolution TEXT,
			active_app TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS hf_text_extractions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			frame_id TEXT NOT NULL,
			word_text TEXT NOT NULL,
			confidence REAL,
			bbox_x REAL,
			bbox_y REAL,
			bbox_width REAL,
			bbox_height REAL,
			text_type TEXT,
			line_id TEXT,
			paragraph_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_frame ON hf_text_extractions(frame_id)`,
		`CREATE TABLE IF NOT EXISTS hf_detected_tasks (
			id TEXT PRIMARY KEY,
			frame_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			confidence REAL,
			description TEXT,
			evidence_text TEXT,
			bounding_regions TEXT,
			assistance_suggestions TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS solutions_cache (
			fingerprint TEXT PRIMARY KEY,
			solution_json TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// detectFTS probes for FTS5 support and creates the index and sync
// triggers when available.
func (s *LocalStore) detectFTS() {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS hf_text_fts USING fts5(
			word_text, content='hf_text_extractions', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS hf_text_ai AFTER INSERT ON hf_text_extractions BEGIN
			INSERT INTO hf_text_fts(rowid, word_text) VALUES (new.id, new.word_text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS hf_text_ad AFTER DELETE ON hf_text_extractions BEGIN
			INSERT INTO hf_text_fts(hf_text_fts, rowid, word_text) VALUES ('delete', old.id, old.word_text);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			logging.StoreDebug("fts5 unavailable, falling back to LIKE search: %v", err)
			s.ftsEnabled = false
			return
		}
	}
	s.ftsEnabled = true
}

// FTSEnabled reports whether full-text search uses the FTS5 index.
func (s *LocalStore) FTSEnabled() bool {
	return s.ftsEnabled
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a capture session row and returns its id.
func (s *LocalStore) CreateSession(ctx context.Context, configSnapshot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hf_video_sessions (id, started_at_ms, config_snapshot) VALUES (?, ?, ?)`,
		id, time.Now().UnixMilli(), configSnapshot)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// SaveFrame records frame metadata and its change score.
func (s *LocalStore) SaveFrame(ctx context.Context, sessionID string, frame *types.Frame, report *types.ChangeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var score float64
	if report != nil {
		score = report.Overall
	}
	resolution := fmt.Sprintf("%dx%d", frame.Resolution[0], frame.Resolution[1])
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hf_video_frames
		 (id, timestamp_ms, session_id, frame_hash, change_score, screen_resolution, active_app)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		frame.ID, frame.Timestamp.UnixMilli(), sessionID,
		fmt.Sprintf("%016x", frame.Hash), score, resolution, frame.AppHint)
	if err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}
	return nil
}

// SaveExtractions stores the word-level extraction rows for a frame.
func (s *LocalStore) SaveExtractions(ctx context.Context, frameID string, words []types.Word) error {
	if len(words) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hf_text_extractions
		 (frame_id, word_text, confidence, bbox_x, bbox_y, bbox_width, bbox_height, text_type, line_id, paragraph_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range words {
		if _, err := stmt.ExecContext(ctx,
			frameID, w.Text, w.Confidence,
			w.Box.X, w.Box.Y, w.Box.Width, w.Box.Height,
			string(w.SemanticType), w.LineID, w.ParagraphID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert extraction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit extractions: %w", err)
	}
	logging.StoreDebug("saved %d extractions for frame %s", len(words), frameID)
	return nil
}

// SaveDetectedTask stores a serialized detected problem.
func (s *LocalStore) SaveDetectedTask(ctx context.Context, frameID string, problem *types.DetectedProblem, suggestions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, err := json.Marshal(problem.ScreenRegion)
	if err != nil {
		return fmt.Errorf("failed to marshal region: %w", err)
	}
	assist, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	evidence, err := json.Marshal(problem)
	if err != nil {
		return fmt.Errorf("failed to marshal problem: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hf_detected_tasks
		 (id, frame_id, task_type, confidence, description, evidence_text, bounding_regions, assistance_suggestions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		problem.ID, frameID, string(problem.Type), problem.Confidence,
		problem.Description, string(evidence), string(regions), string(assist))
	if err != nil {
		return fmt.Errorf("failed to save detected task: %w", err)
	}
	return nil
}

// SaveSolution writes a solution into the persistent cache tier.
func (s *LocalStore) SaveSolution(ctx context.Context, fingerprint string, solution *types.GeneratedSolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(solution)
	if err != nil {
		return fmt.Errorf("failed to marshal solution: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO solutions_cache (fingerprint, solution_json, created_at_ms) VALUES (?, ?, ?)`,
		fingerprint, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save solution: %w", err)
	}
	return nil
}

// LoadSolution reads a solution back from the persistent cache tier.
// Returns sql.ErrNoRows when the fingerprint is unknown.
func (s *LocalStore) LoadSolution(ctx context.Context, fingerprint string) (*types.GeneratedSolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT solution_json FROM solutions_cache WHERE fingerprint = ?`, fingerprint).Scan(&data)
	if err != nil {
		return nil, err
	}
	var solution types.GeneratedSolution
	if err := json.Unmarshal([]byte(data), &solution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal solution: %w", err)
	}
	return &solution, nil
}

// SearchText runs full-text search over extracted words.
func (s *LocalStore) SearchText(ctx context.Context, query string, limit int) ([]ExtractionHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if s.ftsEnabled {
		rows, err = s.db.QueryContext(ctx,
			`SELECT e.frame_id, e.word_text, e.confidence, e.text_type
			 FROM hf_text_fts f
			 JOIN hf_text_extractions e ON f.rowid = e.id
			 WHERE hf_text_fts MATCH ?
			 LIMIT ?`, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT frame_id, word_text, confidence, text_type
			 FROM hf_text_extractions
			 WHERE word_text LIKE ?
			 LIMIT ?`, "%"+query+"%", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search text: %w", err)
	}
	defer rows.Close()

	var hits []ExtractionHit
	for rows.Next() {
		var hit ExtractionHit
		if err := rows.Scan(&hit.FrameID, &hit.WordText, &hit.Confidence, &hit.TextType); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
