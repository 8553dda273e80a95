// Package sqlite provides a SQLite-backed match store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sidelinehq/sideline/internal/errors"
	"github.com/sidelinehq/sideline/internal/match/domain"
	"github.com/sidelinehq/sideline/internal/match/storage/sqlite/migrations"
	"github.com/sidelinehq/sideline/internal/platform/storage/sqlitemigrate"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for match aggregates.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite match store at the provided path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))
	if cleanPath == "" || cleanPath == "." {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveMatch inserts a fresh aggregate or updates an existing row guarded
// by its revision. On success the aggregate's revision is bumped to the
// stored value.
func (s *Store) SaveMatch(ctx context.Context, m *domain.Match) error {
	if m == nil {
		return fmt.Errorf("match is required")
	}

	compA, err := json.Marshal(m.CompositionA)
	if err != nil {
		return fmt.Errorf("marshal composition a: %w", err)
	}
	compB, err := json.Marshal(m.CompositionB)
	if err != nil {
		return fmt.Errorf("marshal composition b: %w", err)
	}
	setScores, err := marshalSetScores(m.SetScores)
	if err != nil {
		return err
	}

	if m.Revision == 0 {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO matches (
    id, chat_id, status, team_a_name, team_b_name,
    composition_a, composition_b, current_set,
    score_a, score_b, rotation_a, rotation_b,
    set_scores, revision, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			m.ID, m.ChatID, string(m.Status), m.TeamAName, m.TeamBName,
			string(compA), string(compB), m.CurrentSet,
			m.Score.A, m.Score.B, m.Rotation.A, m.Rotation.B,
			setScores, toMillis(m.CreatedAt), toMillis(m.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		m.Revision = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE matches SET
    status = ?, current_set = ?,
    score_a = ?, score_b = ?, rotation_a = ?, rotation_b = ?,
    set_scores = ?, revision = revision + 1, updated_at = ?
WHERE id = ? AND revision = ?`,
		string(m.Status), m.CurrentSet,
		m.Score.A, m.Score.B, m.Rotation.A, m.Rotation.B,
		setScores, toMillis(m.UpdatedAt),
		m.ID, m.Revision)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM matches WHERE id = ?", m.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return errors.WithMetadata(errors.CodeMatchNotFound,
				fmt.Sprintf("match %s not found", m.ID),
				map[string]string{"match_id": m.ID})
		}
		if err != nil {
			return fmt.Errorf("check match existence: %w", err)
		}
		return errors.WithMetadata(errors.CodeRevisionConflict,
			fmt.Sprintf("match %s was modified concurrently", m.ID),
			map[string]string{"match_id": m.ID, "revision": fmt.Sprintf("%d", m.Revision)})
	}
	m.Revision++
	return nil
}

// GetMatch loads a match aggregate by id.
func (s *Store) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	row := s.db.QueryRowContext(ctx, selectMatch+" WHERE id = ?", id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithMetadata(errors.CodeMatchNotFound,
			fmt.Sprintf("match %s not found", id),
			map[string]string{"match_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// GetLiveMatchByChat loads the live match tracked for a chat, if any. At
// most one live match per chat is expected; the most recently created one
// wins otherwise.
func (s *Store) GetLiveMatchByChat(ctx context.Context, chatID string) (*domain.Match, error) {
	row := s.db.QueryRowContext(ctx,
		selectMatch+" WHERE chat_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1",
		chatID, string(domain.StatusLive))
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithMetadata(errors.CodeMatchNotFound,
			fmt.Sprintf("no live match for chat %s", chatID),
			map[string]string{"chat_id": chatID})
	}
	if err != nil {
		return nil, fmt.Errorf("get live match by chat: %w", err)
	}
	return m, nil
}

// ListLiveMatches returns all live matches ordered by creation time.
func (s *Store) ListLiveMatches(ctx context.Context) ([]*domain.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		selectMatch+" WHERE status = ? ORDER BY created_at ASC",
		string(domain.StatusLive))
	if err != nil {
		return nil, fmt.Errorf("list live matches: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan live match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live matches: %w", err)
	}
	return matches, nil
}

const selectMatch = `
SELECT id, chat_id, status, team_a_name, team_b_name,
    composition_a, composition_b, current_set,
    score_a, score_b, rotation_a, rotation_b,
    set_scores, revision, created_at, updated_at
FROM matches`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*domain.Match, error) {
	var (
		m                    domain.Match
		status               string
		compA, compB         string
		setScores            string
		createdAt, updatedAt int64
	)
	err := row.Scan(&m.ID, &m.ChatID, &status, &m.TeamAName, &m.TeamBName,
		&compA, &compB, &m.CurrentSet,
		&m.Score.A, &m.Score.B, &m.Rotation.A, &m.Rotation.B,
		&setScores, &m.Revision, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	parsedStatus, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	m.Status = parsedStatus

	if err := json.Unmarshal([]byte(compA), &m.CompositionA); err != nil {
		return nil, fmt.Errorf("unmarshal composition a: %w", err)
	}
	if err := json.Unmarshal([]byte(compB), &m.CompositionB); err != nil {
		return nil, fmt.Errorf("unmarshal composition b: %w", err)
	}
	scores, err := unmarshalSetScores(setScores)
	if err != nil {
		return nil, err
	}
	m.SetScores = scores
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}

// Set scores persist as a JSON array of [a, b] pairs.
func marshalSetScores(scores []domain.Score) (string, error) {
	pairs := make([][2]int, 0, len(scores))
	for _, s := range scores {
		pairs = append(pairs, [2]int{s.A, s.B})
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("marshal set scores: %w", err)
	}
	return string(raw), nil
}

func unmarshalSetScores(raw string) ([]domain.Score, error) {
	var pairs [][2]int
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal set scores: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	scores := make([]domain.Score, 0, len(pairs))
	for _, p := range pairs {
		s, err := domain.NewScore(p[0], p[1])
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, nil
}
