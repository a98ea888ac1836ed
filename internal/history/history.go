// Package history keeps an audit log of completed analyses. Entries are
// never replayed to the model.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ventwave/internal/db"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("analysis not found")

// Fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Analysis struct {
	ID           string        `json:"id"`
	Agent        string        `json:"agent"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Prompt       string        `json:"prompt"`
	ImageCount   int           `json:"image_count"`
	Response     string        `json:"response"`
	ResponseID   string        `json:"response_id,omitempty"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

type Store struct {
	conn *sql.DB
	now  func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn(), now: time.Now}
}

// NewID returns a fresh analysis id.
func NewID() string {
	return uuid.NewString()
}

// Record inserts a. Empty ID and CreatedAt are filled in; the stored
// entry is returned.
func (s *Store) Record(ctx context.Context, a Analysis) (Analysis, error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO analyses (id, agent, provider, model, prompt, image_count, response,
			response_id, input_tokens, output_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Agent, a.Provider, a.Model, a.Prompt, a.ImageCount, a.Response,
		sql.NullString{String: a.ResponseID, Valid: a.ResponseID != ""},
		a.InputTokens, a.OutputTokens, a.Duration.Milliseconds(),
		a.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Analysis{}, fmt.Errorf("recording analysis: %w", err)
	}
	return a, nil
}

const selectColumns = `SELECT id, agent, provider, model, prompt, image_count, response,
	response_id, input_tokens, output_tokens, duration_ms, created_at FROM analyses`

// Recent returns up to limit analyses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Analysis, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	a, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Analysis, error) {
	var (
		a          Analysis
		responseID sql.NullString
		durationMS int64
		createdAt  string
	)
	err := r.Scan(&a.ID, &a.Agent, &a.Provider, &a.Model, &a.Prompt, &a.ImageCount, &a.Response,
		&responseID, &a.InputTokens, &a.OutputTokens, &durationMS, &createdAt)
	if err != nil {
		return Analysis{}, err
	}
	a.ResponseID = responseID.String
	a.Duration = time.Duration(durationMS) * time.Millisecond
	a.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return Analysis{}, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return a, nil
}
