// Package accum orchestrates evidence accumulation and characteristic
// synthesis.
//
// Each inbound message either joins the pending ledger batch for its
// (user, kind) pair or, once the accumulated text reaches the
// threshold, triggers a synthesis: the model scores the evidence, the
// new record commits to the characteristic store, the drained batch is
// deleted, and the user's cached bundle is invalidated. The whole
// read-decide-write-drain sequence runs inside one transaction holding
// a per-pair advisory lock, so at most one synthesis per pair is ever
// in flight; different pairs proceed in parallel.
package accum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindmirror/mindmirror/internal/cache"
	"github.com/mindmirror/mindmirror/internal/ledger"
	"github.com/mindmirror/mindmirror/internal/notify"
	"github.com/mindmirror/mindmirror/internal/profile"
	"github.com/mindmirror/mindmirror/internal/trait"
)

// Synthesizer produces a validated field payload for a kind from
// evidence text and the prior record (nil when none exists).
// Interface defined here, by the consumer.
type Synthesizer interface {
	Synthesize(ctx context.Context, kind trait.Kind, evidenceText string, prior *trait.Record) (map[string]any, error)
}

// Outcome reports what one ProcessEvidence call did.
type Outcome struct {
	// Triggered is true when a new characteristic was committed.
	Triggered bool
	// Record is the committed characteristic, nil unless Triggered.
	Record *trait.Record
}

// conflictRetries bounds in-process retries after an optimistic
// concurrency loss before falling back to appending the evidence.
const conflictRetries = 3

// Coordinator runs the accumulation flow.
//
// Coordinator is safe for concurrent use by multiple goroutines.
type Coordinator struct {
	pool       *pgxpool.Pool
	ledger     *ledger.Store
	profiles   *profile.Store
	synth      Synthesizer
	cacheLayer *cache.Layer
	dispatcher *notify.Dispatcher
	minChars   int
	logger     *slog.Logger
}

// New creates a Coordinator. dispatcher may be nil to disable
// notifications.
func New(pool *pgxpool.Pool, led *ledger.Store, profiles *profile.Store,
	synth Synthesizer, cacheLayer *cache.Layer, dispatcher *notify.Dispatcher,
	minChars int, logger *slog.Logger) (*Coordinator, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if led == nil || profiles == nil || synth == nil || cacheLayer == nil {
		return nil, fmt.Errorf("ledger, profile store, synthesizer and cache layer are required")
	}
	if minChars <= 0 {
		return nil, fmt.Errorf("minChars must be positive, got %d", minChars)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pool:       pool,
		ledger:     led,
		profiles:   profiles,
		synth:      synth,
		cacheLayer: cacheLayer,
		dispatcher: dispatcher,
		minChars:   minChars,
		logger:     logger,
	}, nil
}

// ProcessEvidence handles one inbound message for a (user, kind) pair.
//
// An unknown kind is the only caller-visible domain failure. Synthesis
// failures are absorbed: the evidence stays pending and the next
// message retries, so the caller sees Triggered=false, not an error.
// A synthesis that has started keeps running even if the caller's
// context is cancelled; only the operation's own timeout stops it.
func (c *Coordinator) ProcessEvidence(ctx context.Context, userID uuid.UUID, kind trait.Kind, text string) (Outcome, error) {
	if !kind.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", trait.ErrUnknownKind, kind)
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, fmt.Errorf("evidence text is empty")
	}

	// Caller cancellation must not abort an in-flight synthesis.
	ctx = context.WithoutCancel(ctx)

	for attempt := 0; attempt <= conflictRetries; attempt++ {
		outcome, err := c.processOnce(ctx, userID, kind, text)
		if !errors.Is(err, profile.ErrConflict) {
			return outcome, err
		}
		// The pending set may have changed under us: rerun from the read.
		c.logger.Debug("synthesis write conflict, retrying",
			"user_id", userID, "kind", kind, "attempt", attempt+1)
	}

	// Conflict budget exhausted. Keep the evidence so nothing is lost;
	// the next message retries the whole cycle.
	if _, err := c.ledger.Append(ctx, userID, kind, text); err != nil {
		return Outcome{}, fmt.Errorf("appending after conflict retries: %w", err)
	}
	return Outcome{}, nil
}

// processOnce runs one read-decide-write-drain-invalidate cycle.
func (c *Coordinator) processOnce(ctx context.Context, userID uuid.UUID, kind trait.Kind, text string) (Outcome, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			c.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Serialize concurrent processing for the same pair. The advisory
	// lock releases automatically at commit/rollback; different pairs
	// hash to different locks and do not contend.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(userID, kind)); err != nil {
		return Outcome{}, fmt.Errorf("acquiring advisory lock: %w", err)
	}

	led := c.ledger.WithTx(tx)

	pending, err := led.ListPending(ctx, userID, kind)
	if err != nil {
		return Outcome{}, err
	}

	if !shouldSynthesize(pending, utf8.RuneCountInString(text), c.minChars) {
		if _, err := led.Append(ctx, userID, kind, text); err != nil {
			return Outcome{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Outcome{}, fmt.Errorf("committing append: %w", err)
		}
		return Outcome{}, nil
	}

	profiles := c.profiles.WithTx(tx)

	prior, err := profiles.Get(ctx, userID, kind)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return Outcome{}, err
	}

	fields, synthErr := c.synth.Synthesize(ctx, kind, concatEvidence(pending, text), prior)
	if synthErr != nil {
		// No drain, no write. The new message still becomes evidence so
		// the next inbound message retries with the full batch.
		c.logger.Warn("synthesis failed, evidence retained",
			"user_id", userID, "kind", kind, "error", synthErr)
		if _, err := led.Append(ctx, userID, kind, text); err != nil {
			return Outcome{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Outcome{}, fmt.Errorf("committing append: %w", err)
		}
		return Outcome{}, nil
	}

	expected := 0
	if prior != nil {
		expected = prior.EvidenceCount
	}
	next := &trait.Record{
		UserID:        userID,
		Kind:          kind,
		Fields:        fields,
		EvidenceCount: expected + 1,
	}

	if err := profiles.Upsert(ctx, next, expected); err != nil {
		return Outcome{}, err // ErrConflict surfaces to the retry loop
	}

	if _, err := led.Drain(ctx, userID, kind); err != nil {
		return Outcome{}, err
	}

	// The synthesis becomes durable here; drain and write are atomic.
	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, fmt.Errorf("committing synthesis: %w", err)
	}

	// Invalidate-on-write, after commit, outside the lock. The next
	// reader repopulates the bundle lazily.
	c.cacheLayer.Invalidate(ctx, cache.FamilyBundle, userID.String())

	if c.dispatcher != nil {
		c.dispatcher.Enqueue(notify.Notification{
			UserID:        userID,
			Kind:          kind,
			EvidenceCount: next.EvidenceCount,
		})
	}

	c.logger.Info("characteristic synthesized",
		"user_id", userID,
		"kind", kind,
		"evidence_count", next.EvidenceCount,
		"batch_size", len(pending)+1,
	)
	return Outcome{Triggered: true, Record: next}, nil
}

// lockKey derives the advisory-lock text for a pair. Kinds for the
// same user hash independently: no cross-kind serialization.
func lockKey(userID uuid.UUID, kind trait.Kind) string {
	return userID.String() + "/" + kind.String()
}

// concatEvidence joins the pending batch and the new message with
// single spaces, oldest first, new message last.
func concatEvidence(pending []ledger.Fragment, text string) string {
	if len(pending) == 0 {
		return text
	}
	var b strings.Builder
	for _, f := range pending {
		b.WriteString(f.Message)
		b.WriteString(" ")
	}
	b.WriteString(text)
	return b.String()
}
