// Package profile persists the latest characteristic value per
// (user, kind) pair.
//
// The table's primary key enforces at most one live record per pair;
// writes replace the record wholesale. Upsert carries an expected
// evidence count so a racing writer loses with ErrConflict instead of
// silently double-counting.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindmirror/mindmirror/internal/trait"
)

// Sentinel errors for store operations, checked with errors.Is().
var (
	// ErrNotFound indicates no characteristic exists for the pair yet.
	ErrNotFound = errors.New("characteristic not found")

	// ErrConflict indicates an optimistic-concurrency loss: the stored
	// evidence count no longer matches what the writer read.
	ErrConflict = errors.New("characteristic write conflict")
)

// Querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages the characteristics table.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a characteristic Store bound to the given querier.
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

// Get returns the live characteristic for the pair, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID uuid.UUID, kind trait.Kind) (*trait.Record, error) {
	rec := trait.Record{UserID: userID, Kind: kind}
	err := s.db.QueryRow(ctx,
		`SELECT fields, evidence_count, created_at, updated_at
		 FROM characteristics
		 WHERE user_id = $1 AND kind = $2`,
		userID, kind.String(),
	).Scan(&rec.Fields, &rec.EvidenceCount, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user=%s kind=%s", ErrNotFound, userID, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("getting characteristic: %w", err)
	}
	return &rec, nil
}

// GetBundle returns every live characteristic for the user, keyed by
// kind. A user with no characteristics yields an empty map, not an error.
func (s *Store) GetBundle(ctx context.Context, userID uuid.UUID) (map[trait.Kind]*trait.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT kind, fields, evidence_count, created_at, updated_at
		 FROM characteristics
		 WHERE user_id = $1
		 ORDER BY kind`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characteristics: %w", err)
	}
	defer rows.Close()

	bundle := make(map[trait.Kind]*trait.Record)
	for rows.Next() {
		rec := trait.Record{UserID: userID}
		var kindStr string
		if err := rows.Scan(&kindStr, &rec.Fields, &rec.EvidenceCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning characteristic: %w", err)
		}
		rec.Kind = trait.Kind(kindStr)
		bundle[rec.Kind] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading characteristics: %w", err)
	}
	return bundle, nil
}

// Upsert inserts or wholesale-replaces the record for its (user, kind)
// pair. expectedCount is the evidence count the writer read before
// synthesizing (0 when no record existed); if the stored count has
// moved, the write is rejected with ErrConflict and nothing changes.
func (s *Store) Upsert(ctx context.Context, rec *trait.Record, expectedCount int) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	if err := trait.ValidateFields(rec.Kind, rec.Fields); err != nil {
		return err
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO characteristics (user_id, kind, fields, evidence_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, kind) DO UPDATE
		 SET fields = EXCLUDED.fields,
		     evidence_count = EXCLUDED.evidence_count,
		     updated_at = now()
		 WHERE characteristics.evidence_count = $5
		 RETURNING created_at, updated_at`,
		rec.UserID, rec.Kind.String(), rec.Fields, rec.EvidenceCount, expectedCount,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict target hit but the guard failed: another writer won.
		return fmt.Errorf("%w: user=%s kind=%s expected=%d", ErrConflict, rec.UserID, rec.Kind, expectedCount)
	}
	if err != nil {
		return fmt.Errorf("upserting characteristic: %w", err)
	}

	s.logger.Debug("characteristic committed",
		"user_id", rec.UserID,
		"kind", rec.Kind,
		"evidence_count", rec.EvidenceCount,
	)
	return nil
}
