package accum

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindmirror/mindmirror/internal/cache"
	"github.com/mindmirror/mindmirror/internal/ledger"
	"github.com/mindmirror/mindmirror/internal/notify"
	"github.com/mindmirror/mindmirror/internal/profile"
	"github.com/mindmirror/mindmirror/internal/testutil"
	"github.com/mindmirror/mindmirror/internal/trait"
)

// stubSynth implements Synthesizer with canned responses.
type stubSynth struct {
	mu     sync.Mutex
	fields map[string]any
	err    error
	calls  []string // evidence text per call
}

func (s *stubSynth) Synthesize(_ context.Context, _ trait.Kind, evidenceText string, _ *trait.Record) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, evidenceText)
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

func (s *stubSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	coord    *Coordinator
	ledger   *ledger.Store
	profiles *profile.Store
	synth    *stubSynth
	memory   *cache.Memory
	layer    *cache.Layer
}

func setup(t *testing.T, minChars int) *fixture {
	t.Helper()

	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.DiscardLogger()
	led := ledger.New(tdb.Pool, logger)
	profiles := profile.New(tdb.Pool, logger)
	memory := cache.NewMemory()
	t.Cleanup(func() { _ = memory.Close() })
	layer := cache.NewLayer(memory, cache.TTLs{
		Token:   time.Minute,
		Profile: time.Minute,
		Bundle:  time.Minute,
	}, logger)
	stub := &stubSynth{fields: map[string]any{"empathy": 0.7}}

	coord, err := New(tdb.Pool, led, profiles, stub, layer, nil, minChars, logger)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return &fixture{
		coord:    coord,
		ledger:   led,
		profiles: profiles,
		synth:    stub,
		memory:   memory,
		layer:    layer,
	}
}

func TestProcessEvidence_UnknownKind(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 500)

	_, err := fx.coord.ProcessEvidence(context.Background(), uuid.New(), trait.Kind("astrology"), "some text")
	if !errors.Is(err, trait.ErrUnknownKind) {
		t.Fatalf("ProcessEvidence(unknown kind) error = %v, want ErrUnknownKind", err)
	}
	if got := fx.synth.callCount(); got != 0 {
		t.Errorf("synthesizer called %d times for unknown kind, want 0", got)
	}
}

func TestProcessEvidence_AccumulatesBelowThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 500)
	ctx := context.Background()
	userID := uuid.New()

	out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, strings.Repeat("a", 200))
	if err != nil {
		t.Fatalf("ProcessEvidence() unexpected error: %v", err)
	}
	if out.Triggered {
		t.Fatal("ProcessEvidence() triggered below threshold")
	}

	pending, err := fx.ledger.ListPending(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("ListPending() unexpected error: %v", err)
	}
	if len(pending) != 1 || len(pending[0].Message) != 200 {
		t.Errorf("ledger contents = %d fragments, want one 200-char fragment", len(pending))
	}
	if got := fx.synth.callCount(); got != 0 {
		t.Errorf("synthesizer called %d times below threshold, want 0", got)
	}
	if _, err := fx.profiles.Get(ctx, userID, trait.KindSocial); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("Get() after accumulation error = %v, want ErrNotFound", err)
	}
}

func TestProcessEvidence_ThresholdScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 500)
	ctx := context.Background()
	userID := uuid.New()

	first := strings.Repeat("a", 200)
	second := strings.Repeat("b", 200)
	third := strings.Repeat("c", 150)

	for _, msg := range []string{first, second} {
		out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, msg)
		if err != nil {
			t.Fatalf("ProcessEvidence() unexpected error: %v", err)
		}
		if out.Triggered {
			t.Fatal("ProcessEvidence() triggered before reaching threshold")
		}
	}

	out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, third)
	if err != nil {
		t.Fatalf("ProcessEvidence() unexpected error: %v", err)
	}
	if !out.Triggered {
		t.Fatal("ProcessEvidence() did not trigger at 550 accumulated chars")
	}
	if out.Record == nil || out.Record.EvidenceCount != 1 {
		t.Fatalf("Outcome.Record = %+v, want evidence count 1", out.Record)
	}

	// The synthesizer saw the whole batch, oldest first.
	if got := fx.synth.callCount(); got != 1 {
		t.Fatalf("synthesizer called %d times, want 1", got)
	}
	want := first + " " + second + " " + third
	if fx.synth.calls[0] != want {
		t.Errorf("evidence text = %d chars, want %d chars in batch order", len(fx.synth.calls[0]), len(want))
	}

	// The ledger drained with the commit.
	pending, err := fx.ledger.ListPending(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("ListPending() unexpected error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ledger holds %d fragments after synthesis, want 0", len(pending))
	}

	rec, err := fx.profiles.Get(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("Get() after synthesis unexpected error: %v", err)
	}
	if rec.EvidenceCount != 1 {
		t.Errorf("stored evidence count = %d, want 1", rec.EvidenceCount)
	}
	if rec.Fields["empathy"] != 0.7 {
		t.Errorf("stored fields = %v, want empathy 0.7", rec.Fields)
	}
}

func TestProcessEvidence_EvidenceCountGrows(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 100)
	ctx := context.Background()
	userID := uuid.New()

	for want := 1; want <= 3; want++ {
		out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindEmotional, strings.Repeat("x", 100))
		if err != nil {
			t.Fatalf("ProcessEvidence() round %d unexpected error: %v", want, err)
		}
		if !out.Triggered {
			t.Fatalf("ProcessEvidence() round %d did not trigger", want)
		}
		if out.Record.EvidenceCount != want {
			t.Errorf("round %d evidence count = %d, want %d", want, out.Record.EvidenceCount, want)
		}
	}
}

func TestProcessEvidence_SynthesisFailureRetainsEvidence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 500)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := fx.ledger.Append(ctx, userID, trait.KindSocial, strings.Repeat("a", 450)); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	fx.synth.err = errors.New("model unavailable")

	out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, strings.Repeat("b", 100))
	if err != nil {
		t.Fatalf("ProcessEvidence() surfaced synthesis failure: %v", err)
	}
	if out.Triggered {
		t.Fatal("ProcessEvidence() reported trigger despite synthesis failure")
	}

	// Both the old batch and the new message survive for the next attempt.
	pending, err := fx.ledger.ListPending(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("ListPending() unexpected error: %v", err)
	}
	if got := ledger.PendingLength(pending); got != 550 {
		t.Errorf("pending length after failed synthesis = %d, want 550", got)
	}
	if _, err := fx.profiles.Get(ctx, userID, trait.KindSocial); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("Get() after failed synthesis error = %v, want ErrNotFound", err)
	}

	// Recovery: the next message retries with the full batch.
	fx.synth.err = nil
	out, err = fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, strings.Repeat("c", 10))
	if err != nil {
		t.Fatalf("ProcessEvidence() retry unexpected error: %v", err)
	}
	if !out.Triggered {
		t.Fatal("ProcessEvidence() retry did not trigger")
	}
	if out.Record.EvidenceCount != 1 {
		t.Errorf("retry evidence count = %d, want 1", out.Record.EvidenceCount)
	}
}

func TestProcessEvidence_ConcurrentTriggerCommitsOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 500)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := fx.ledger.Append(ctx, userID, trait.KindSocial, strings.Repeat("a", 450)); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	errs := make([]error, 2)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, strings.Repeat("b", 100))
		}(i)
	}
	wg.Wait()

	triggered := 0
	for i := range outcomes {
		if errs[i] != nil {
			t.Fatalf("ProcessEvidence() goroutine %d error: %v", i, errs[i])
		}
		if outcomes[i].Triggered {
			triggered++
		}
	}
	if triggered != 1 {
		t.Fatalf("%d of 2 concurrent calls triggered, want exactly 1", triggered)
	}
	if got := fx.synth.callCount(); got != 1 {
		t.Errorf("synthesizer called %d times, want 1", got)
	}

	rec, err := fx.profiles.Get(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if rec.EvidenceCount != 1 {
		t.Errorf("evidence count after concurrent trigger = %d, want 1", rec.EvidenceCount)
	}

	// The loser's message became pending evidence.
	pending, err := fx.ledger.ListPending(ctx, userID, trait.KindSocial)
	if err != nil {
		t.Fatalf("ListPending() unexpected error: %v", err)
	}
	if len(pending) != 1 || len(pending[0].Message) != 100 {
		t.Errorf("ledger after concurrent trigger = %d fragments, want one 100-char fragment", len(pending))
	}
}

func TestProcessEvidence_InvalidatesBundleCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fx := setup(t, 100)
	ctx := context.Background()
	userID := uuid.New()

	if err := fx.memory.Set(ctx, cache.FamilyBundle, userID.String(), []byte("stale bundle"), time.Minute); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}

	out, err := fx.coord.ProcessEvidence(ctx, userID, trait.KindSocial, strings.Repeat("x", 100))
	if err != nil {
		t.Fatalf("ProcessEvidence() unexpected error: %v", err)
	}
	if !out.Triggered {
		t.Fatal("ProcessEvidence() did not trigger")
	}

	if _, ok, err := fx.memory.Get(ctx, cache.FamilyBundle, userID.String()); err != nil || ok {
		t.Errorf("bundle cache entry survived synthesis (ok=%v, err=%v), want miss", ok, err)
	}
}

func TestProcessEvidence_NotifiesAfterCommit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.DiscardLogger()
	led := ledger.New(tdb.Pool, logger)
	profiles := profile.New(tdb.Pool, logger)
	memory := cache.NewMemory()
	t.Cleanup(func() { _ = memory.Close() })
	layer := cache.NewLayer(memory, cache.TTLs{Token: time.Minute, Profile: time.Minute, Bundle: time.Minute}, logger)
	stub := &stubSynth{fields: map[string]any{"optimism": 0.5}}

	received := make(chan notify.Notification, 1)
	dispatcher := notify.NewDispatcher(notify.Func(func(_ context.Context, n notify.Notification) error {
		received <- n
		return nil
	}), notify.Config{}, logger)
	t.Cleanup(dispatcher.Close)

	coord, err := New(tdb.Pool, led, profiles, stub, layer, dispatcher, 100, logger)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	userID := uuid.New()
	out, err := coord.ProcessEvidence(context.Background(), userID, trait.KindEmotional, strings.Repeat("x", 100))
	if err != nil {
		t.Fatalf("ProcessEvidence() unexpected error: %v", err)
	}
	if !out.Triggered {
		t.Fatal("ProcessEvidence() did not trigger")
	}

	select {
	case n := <-received:
		if n.UserID != userID || n.Kind != trait.KindEmotional || n.EvidenceCount != 1 {
			t.Errorf("notification = %+v, want user %s kind emotional count 1", n, userID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification delivered within 5s of commit")
	}
}
