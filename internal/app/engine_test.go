package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numero41/SNTNZ-sub000/internal/bot"
	"github.com/numero41/SNTNZ-sub000/internal/config"
	"github.com/numero41/SNTNZ-sub000/internal/domain"
	"github.com/numero41/SNTNZ-sub000/internal/storage/memory"
)

// fakeClock is an adjustable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Game.RoundDuration = 10 * time.Second
	cfg.Game.CurrentTextLength = 5
	cfg.Game.ChunkSize = 10000
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, store Store) (*Engine, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	contributor := bot.New(bot.Config{MinWords: 3, MaxWords: 8, ContextSize: 20}, nil, testLogger())
	validator := domain.NewValidator(nil)

	e := NewEngine(cfg, store, validator, contributor, clock, testLogger())
	t.Cleanup(e.Close)

	require.NoError(t, e.Start(context.Background()))
	return e, clock
}

// endRound drives the clock past the boundary and ticks once.
func endRound(e *Engine, clock *fakeClock) {
	clock.Advance(e.cfg.Game.RoundDuration + time.Millisecond)
	e.Tick(clock.Now())
}

func TestRoundEndAppendsWinner(t *testing.T) {
	store := memory.NewStore()
	e, clock := newTestEngine(t, testEngineConfig(), store)

	require.NoError(t, e.Submit("alice", "Alice", "hello", domain.StyleSet{}))
	endRound(e, clock)

	window := e.Window()
	require.Len(t, window, 1)
	// Ledger was empty, so the winner is capitalized.
	assert.Equal(t, "Hello", window[0].Word)
	assert.Equal(t, "Alice", window[0].Username)
	assert.Equal(t, 1, window[0].Score)
	assert.InDelta(t, 100.0, window[0].Pct, 0.001)

	persisted, err := store.RecentWords(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Hello", persisted[0].Word)
	assert.Empty(t, persisted[0].ChunkID)

	// The registry was cleared for the next round.
	assert.Empty(t, e.SnapshotFor("alice"))
}

func TestMidSentenceWordNotCapitalized(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	require.NoError(t, e.Submit("alice", "Alice", "hello", domain.StyleSet{}))
	endRound(e, clock)
	require.NoError(t, e.Submit("alice", "Alice", "there.", domain.StyleSet{}))
	endRound(e, clock)
	require.NoError(t, e.Submit("alice", "Alice", "again", domain.StyleSet{}))
	endRound(e, clock)

	words := e.ledger.Words()
	assert.Equal(t, []string{"Hello", "there.", "Again"}, words)
}

func TestSilentRoundLeavesLedgerUnchanged(t *testing.T) {
	store := memory.NewStore()
	e, clock := newTestEngine(t, testEngineConfig(), store)

	// No submissions at all.
	endRound(e, clock)
	assert.Empty(t, e.Window())

	// A submission voted down to zero does not win either.
	require.NoError(t, e.Submit("alice", "Alice", "meh", domain.StyleSet{}))
	require.NoError(t, e.CastVote("bob", domain.CompositeKey("meh", domain.StyleSet{}), "down"))
	endRound(e, clock)

	assert.Empty(t, e.Window())
	persisted, err := store.RecentWords(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestWindowCapacityHeld(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Game.CurrentTextLength = 3
	e, clock := newTestEngine(t, cfg, memory.NewStore())

	for _, w := range []string{"one", "two", "three", "four", "five"} {
		require.NoError(t, e.Submit("alice", "Alice", w, domain.StyleSet{}))
		endRound(e, clock)
		assert.LessOrEqual(t, len(e.Window()), 3)
	}
	assert.Equal(t, []string{"three", "four", "five"}, e.ledger.Words())
}

func TestChunkSealAtThreshold(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Game.ChunkSize = 250
	store := memory.NewStore()
	e, clock := newTestEngine(t, cfg, store)

	e.mu.Lock()
	e.charCount = 248
	e.mu.Unlock()

	// "lighthouse." plus its joining space crosses 250.
	require.NoError(t, e.Submit("alice", "Alice", "lighthouse.", domain.StyleSet{}))
	endRound(e, clock)

	e.mu.Lock()
	assert.Equal(t, 0, e.charCount)
	e.mu.Unlock()

	ctx := context.Background()
	chunks, err := store.Chunks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Lighthouse.", chunks[0].Text)

	// Every previously unsealed record now carries the chunk id.
	unsealed, err := store.UnsealedWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsealed)

	persisted, err := store.RecentWords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, chunks[0].ID, persisted[0].ChunkID)

	// Hash is reproducible from the sealed contents.
	sealed := []*domain.WordRecord{persisted[0]}
	assert.Equal(t, chunks[0].Hash, domain.ChunkHash(sealed))
}

// failingChunkStore simulates a store whose chunk insert is down.
type failingChunkStore struct {
	*memory.Store
	fail bool
}

func (s *failingChunkStore) InsertChunk(ctx context.Context, chunk *domain.Chunk) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	return s.Store.InsertChunk(ctx, chunk)
}

func TestFailedSealRetriesNextThreshold(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Game.ChunkSize = 5
	store := &failingChunkStore{Store: memory.NewStore(), fail: true}
	e, clock := newTestEngine(t, cfg, store)

	require.NoError(t, e.Submit("alice", "Alice", "unsealed", domain.StyleSet{}))
	endRound(e, clock)

	// Seal failed: counter kept its value for a natural retry.
	e.mu.Lock()
	assert.Greater(t, e.charCount, 0)
	e.mu.Unlock()

	store.fail = false
	require.NoError(t, e.Submit("alice", "Alice", "works", domain.StyleSet{}))
	endRound(e, clock)

	e.mu.Lock()
	assert.Equal(t, 0, e.charCount)
	e.mu.Unlock()

	chunks, err := store.Chunks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Unsealed works", chunks[0].Text)
}

func TestFinalSealFlushesBacklog(t *testing.T) {
	store := memory.NewStore()
	e, clock := newTestEngine(t, testEngineConfig(), store)

	require.NoError(t, e.Submit("alice", "Alice", "goodbye", domain.StyleSet{}))
	endRound(e, clock)

	e.FinalSeal()

	chunks, err := store.Chunks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	// Nothing left to seal: a second forced attempt is a no-op.
	e.FinalSeal()
	chunks, err = store.Chunks(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestBotFiresOnIdleRound(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	// Cross the half-duration checkpoint with zero submissions.
	clock.Advance(6 * time.Second)
	e.Tick(clock.Now())

	require.Eventually(t, func() bool {
		views := e.SnapshotFor("observer")
		return len(views) == 1 && views[0].SubmitterName == e.bot.Name()
	}, time.Second, 10*time.Millisecond)
}

func TestBotFiresAtMostOncePerRound(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	clock.Advance(6 * time.Second)
	e.Tick(clock.Now())
	require.Eventually(t, func() bool {
		return len(e.SnapshotFor("observer")) == 1
	}, time.Second, 10*time.Millisecond)

	pending := e.bot.PendingCount()

	// Later checkpoints in the same round must not fire again.
	clock.Advance(3 * time.Second)
	e.Tick(clock.Now())
	clock.Advance(500 * time.Millisecond)
	e.Tick(clock.Now())
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, e.SnapshotFor("observer"), 1)
	assert.Equal(t, pending, e.bot.PendingCount())
}

func TestBotStaysQuietWhenHumansSubmit(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	require.NoError(t, e.Submit("alice", "Alice", "hello", domain.StyleSet{}))

	clock.Advance(6 * time.Second)
	e.Tick(clock.Now())
	clock.Advance(3500 * time.Millisecond)
	e.Tick(clock.Now())
	time.Sleep(50 * time.Millisecond)

	views := e.SnapshotFor("observer")
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0].SubmitterName)

	e.mu.Lock()
	fired := e.botFired
	e.mu.Unlock()
	assert.False(t, fired)
}

func TestBotAbandonsQueueWhenHumanWins(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	// Let the bot submit first.
	clock.Advance(6 * time.Second)
	e.Tick(clock.Now())
	require.Eventually(t, func() bool {
		return len(e.SnapshotFor("observer")) == 1
	}, time.Second, 10*time.Millisecond)
	require.Greater(t, e.bot.PendingCount(), 0)

	// A human outvotes it late in the round.
	require.NoError(t, e.Submit("alice", "Alice", "override", domain.StyleSet{}))
	require.NoError(t, e.CastVote("bob", domain.CompositeKey("override", domain.StyleSet{}), "up"))

	endRound(e, clock)

	assert.Equal(t, "Override", e.ledger.LastWord())
	assert.Equal(t, 0, e.bot.PendingCount())
}

// stallingGenerator parks inside Generate until released.
type stallingGenerator struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *stallingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return "", errors.New("generator stalled")
}

func TestRoundEndNotDelayedByStalledGenerator(t *testing.T) {
	cfg := testEngineConfig()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	gen := &stallingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	contributor := bot.New(bot.Config{MinWords: 3, MaxWords: 8, ContextSize: 20}, gen, testLogger())

	e := NewEngine(cfg, memory.NewStore(), domain.NewValidator(nil), contributor, clock, testLogger())
	t.Cleanup(e.Close)
	t.Cleanup(func() { close(gen.release) })
	require.NoError(t, e.Start(context.Background()))

	// Cross the bot checkpoint; planning parks inside the generator.
	clock.Advance(6 * time.Second)
	e.Tick(clock.Now())
	select {
	case <-gen.started:
	case <-time.After(time.Second):
		t.Fatal("bot generation never started")
	}

	// Submissions and the round boundary must not wait for the
	// in-flight generation call.
	require.NoError(t, e.Submit("alice", "Alice", "hello", domain.StyleSet{}))

	clock.Advance(5 * time.Second)
	start := time.Now()
	e.Tick(clock.Now())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, "Hello", e.ledger.LastWord())
}

// stubConn is a minimal ClientConnection for registration tests.
type stubConn struct {
	id string

	mu     sync.Mutex
	closed bool
}

func (c *stubConn) ClientID() string { return c.id }

func (c *stubConn) Send(_ interface{}) error { return nil }

func (c *stubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestReconnectDisplacesPriorConnection(t *testing.T) {
	e, _ := newTestEngine(t, testEngineConfig(), memory.NewStore())

	first := &stubConn{id: "c1"}
	second := &stubConn{id: "c1"}
	e.RegisterClient(first)
	e.RegisterClient(second)

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	// The displaced connection's teardown must not evict its
	// replacement.
	e.UnregisterClient(first)
	e.clientsMu.RLock()
	current := e.clients["c1"]
	e.clientsMu.RUnlock()
	assert.Same(t, second, current)

	e.UnregisterClient(second)
	e.clientsMu.RLock()
	_, ok := e.clients["c1"]
	e.clientsMu.RUnlock()
	assert.False(t, ok)
}

func TestBotWordFromClosedRoundDiscarded(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	e.mu.Lock()
	staleRound := e.round
	e.mu.Unlock()

	// Close the round before the bot's goroutine lands its word.
	endRound(e, clock)
	e.fireBot(staleRound)

	assert.Empty(t, e.SnapshotFor("observer"))
}

func TestWarmStartLoadsRecentWords(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	for i, w := range []string{"An", "old", "story", "resumes."} {
		require.NoError(t, store.InsertWord(ctx, &domain.WordRecord{
			ID:   w,
			TS:   base.Add(time.Duration(i) * time.Minute),
			Word: w,
		}))
	}

	e, clock := newTestEngine(t, testEngineConfig(), store)

	assert.Equal(t, []string{"An", "old", "story", "resumes."}, e.ledger.Words())

	// The warm window drives capitalization for the next winner.
	require.NoError(t, e.Submit("alice", "Alice", "slowly", domain.StyleSet{}))
	endRound(e, clock)
	assert.Equal(t, "Slowly", e.ledger.LastWord())
}

func TestVoteDirectionValidation(t *testing.T) {
	e, _ := newTestEngine(t, testEngineConfig(), memory.NewStore())

	require.NoError(t, e.Submit("alice", "Alice", "word", domain.StyleSet{}))
	err := e.CastVote("bob", domain.CompositeKey("word", domain.StyleSet{}), "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)
}

func TestSubmitRejectsInvalidWord(t *testing.T) {
	e, clock := newTestEngine(t, testEngineConfig(), memory.NewStore())

	assert.ErrorIs(t, e.Submit("alice", "Alice", "two words", domain.StyleSet{}), domain.ErrNotSingleToken)
	assert.ErrorIs(t, e.Submit("alice", "Alice", "  ", domain.StyleSet{}), domain.ErrEmptyWord)

	endRound(e, clock)
	assert.Empty(t, e.Window())
}
