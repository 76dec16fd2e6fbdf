// Package ledger persists evidence fragments that have not yet been
// folded into a characteristic.
//
// Fragments are append-only. A batch for a (user, kind) pair is deleted
// in one statement, and only after the synthesis for that batch has
// durably committed; the commit ordering lives in the accum package.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindmirror/mindmirror/internal/trait"
)

// Querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Fragment is one not-yet-synthesized piece of user text.
// Immutable once written; deleted only as part of a batch drain.
type Fragment struct {
	ID        int64
	UserID    uuid.UUID
	Kind      trait.Kind
	Message   string
	CreatedAt time.Time
}

// Store manages the evidence_fragments table.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a ledger Store bound to the given querier.
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// WithTx returns a Store view bound to the given transaction.
func (s *Store) WithTx(tx Querier) *Store {
	return &Store{db: tx, logger: s.logger}
}

// Append records a new pending fragment and returns it with its
// assigned id and timestamp.
func (s *Store) Append(ctx context.Context, userID uuid.UUID, kind trait.Kind, message string) (Fragment, error) {
	f := Fragment{UserID: userID, Kind: kind, Message: message}
	err := s.db.QueryRow(ctx,
		`INSERT INTO evidence_fragments (user_id, kind, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		userID, kind.String(), message,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return Fragment{}, fmt.Errorf("appending fragment: %w", err)
	}
	return f, nil
}

// ListPending returns all pending fragments for the pair, oldest first.
// Order is significant: synthesis concatenates fragments in this order.
func (s *Store) ListPending(ctx context.Context, userID uuid.UUID, kind trait.Kind) ([]Fragment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, kind, message, created_at
		 FROM evidence_fragments
		 WHERE user_id = $1 AND kind = $2
		 ORDER BY created_at, id`,
		userID, kind.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending fragments: %w", err)
	}
	defer rows.Close()

	var out []Fragment
	for rows.Next() {
		var f Fragment
		var kindStr string
		if err := rows.Scan(&f.ID, &f.UserID, &kindStr, &f.Message, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		f.Kind = trait.Kind(kindStr)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading fragments: %w", err)
	}
	return out, nil
}

// Drain deletes every pending fragment for the pair in one statement
// and returns the number removed. A concurrent Append either lands in
// the drained batch or survives as a fresh pending fragment; the single
// DELETE leaves no third state.
func (s *Store) Drain(ctx context.Context, userID uuid.UUID, kind trait.Kind) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM evidence_fragments WHERE user_id = $1 AND kind = $2`,
		userID, kind.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("draining fragments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PendingLength returns the summed text length of the given fragments,
// counted in characters rather than bytes so multibyte text accumulates
// at the same rate as ASCII.
func PendingLength(fragments []Fragment) int {
	total := 0
	for _, f := range fragments {
		total += utf8.RuneCountInString(f.Message)
	}
	return total
}
