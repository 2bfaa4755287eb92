package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/numero41/SNTNZ-sub000/internal/bot"
	"github.com/numero41/SNTNZ-sub000/internal/config"
	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

const (
	// persistTimeout bounds per-record store writes so a stalled store
	// cannot hold the round-end turn for long.
	persistTimeout = 2 * time.Second

	// sealTimeout bounds a full chunk-seal transaction.
	sealTimeout = 5 * time.Second

	// Size of the event broadcast queue
	eventBufferSize = 100
)

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	ClientID() string
	Close() error
}

// Engine owns all mutable game state: the submission registry, the
// ledger window, the chunk character counter and the round boundary.
// Every mutation happens under one mutex, so composite read-modify-write
// sequences are atomic with respect to each other.
type Engine struct {
	cfg       *config.Config
	store     Store
	validator *domain.Validator
	bot       *bot.Bot
	clock     Clock
	logger    *slog.Logger

	mu           sync.Mutex
	registry     *domain.SubmissionRegistry
	ledger       *domain.TextLedger
	round        uint64
	nextBoundary time.Time
	botFired     bool
	charCount    int

	clients   map[string]ClientConnection
	clientsMu sync.RWMutex

	events chan *domain.Event
	done   chan struct{}
}

// NewEngine creates an engine. It does not touch the store until Start.
func NewEngine(cfg *config.Config, store Store, validator *domain.Validator, b *bot.Bot, clock Clock, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		store:     store,
		validator: validator,
		bot:       b,
		clock:     clock,
		logger:    logger,
		registry:  domain.NewSubmissionRegistry(),
		ledger:    domain.NewTextLedger(cfg.Game.CurrentTextLength),
		clients:   make(map[string]ClientConnection),
		events:    make(chan *domain.Event, eventBufferSize),
		done:      make(chan struct{}),
	}

	go e.eventLoop()

	return e
}

// Start warms the live window and bot context from the durable log and
// schedules the first round.
func (e *Engine) Start(ctx context.Context) error {
	records, err := e.store.RecentWords(ctx, e.cfg.Game.CurrentTextLength)
	if err != nil {
		return fmt.Errorf("loading recent words: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, record := range records {
		e.ledger.Append(record)
		e.bot.Observe(record.Word)
	}
	e.scheduleNextRoundLocked(e.clock.Now())

	e.logger.Info("engine started",
		"warmWords", len(records),
		"roundDuration", e.cfg.Game.RoundDuration,
	)

	return nil
}

// Tick advances the round state machine. Called by the scheduler at a
// coarse sub-second cadence; tolerant of drift because it inspects
// wall-clock deltas instead of counting ticks.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.nextBoundary.IsZero() {
		e.scheduleNextRoundLocked(now)
		return
	}

	remaining := e.nextBoundary.Sub(now)
	if remaining <= 0 {
		e.endRoundLocked(now)
		return
	}

	e.maybeFireBotLocked(remaining)
}

// scheduleNextRoundLocked sets the next boundary and announces it.
func (e *Engine) scheduleNextRoundLocked(now time.Time) {
	e.nextBoundary = now.Add(e.cfg.Game.RoundDuration)
	e.queueEvent(domain.NewEvent(domain.EventNextTick, &domain.NextTickPayload{
		NextBoundary: e.nextBoundary,
		Round:        e.round,
	}))
}

// maybeFireBotLocked fires the bot at most once per round, at the
// half-duration checkpoint or the 1-second safety net, and only while
// the round has no submissions. Humans always get first chance.
func (e *Engine) maybeFireBotLocked(remaining time.Duration) {
	if e.botFired || e.registry.Count() > 0 {
		return
	}

	half := e.cfg.Game.RoundDuration / 2
	if remaining > half && remaining > time.Second {
		return
	}

	e.botFired = true
	round := e.round
	go e.fireBot(round)
}

// fireBot obtains one bot word and submits it through the ordinary
// registry path. It runs on its own goroutine so an external generation
// call can never delay winner election; a word planned for a round that
// closed in the meantime is discarded.
func (e *Engine) fireBot(round uint64) {
	e.mu.Lock()
	lastWord := e.ledger.LastWord()
	window := e.ledger.Words()
	e.mu.Unlock()

	profane := make([]string, 0)
	for _, w := range window {
		if e.validator.IsProfane(w) {
			profane = append(profane, w)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Generator.Timeout)
	word := e.bot.PlanWord(ctx, lastWord, window, profane)
	cancel()

	e.mu.Lock()
	if e.round != round {
		e.mu.Unlock()
		e.logger.Debug("bot word arrived after round closed", "word", word, "round", round)
		return
	}
	e.registry.Submit(bot.ID, e.bot.Name(), word, domain.StyleSet{}, e.clock.Now())
	e.mu.Unlock()

	e.logger.Debug("bot submitted", "word", word, "round", round)
	e.queueFeedEvent()
}

// endRoundLocked elects the winner, persists and publishes it, and
// opens the next round. The registry is cleared before persistence so
// new submissions are accepted immediately.
func (e *Engine) endRoundLocked(now time.Time) {
	botHadSubmission := e.registry.HasSubmitter(bot.ID)
	sorted := e.registry.Reset()
	winner := domain.ElectWinner(sorted)

	e.round++
	e.botFired = false
	e.nextBoundary = now.Add(e.cfg.Game.RoundDuration)

	if winner == nil {
		// Silent round: nothing scored above zero.
		e.queueEvent(domain.NewEvent(domain.EventNextTick, &domain.NextTickPayload{
			NextBoundary: e.nextBoundary,
			Round:        e.round,
		}))
		e.queueFeedEvent()
		return
	}

	word := domain.CapitalizeIfNeeded(winner.Word, e.ledger.LastWord())
	record := &domain.WordRecord{
		ID:         uuid.New().String(),
		TS:         now,
		Word:       word,
		Styles:     winner.Styles,
		Username:   winner.SubmitterName,
		Score:      winner.Score(),
		TotalVotes: len(winner.Votes),
		Pct:        domain.WinnerPct(winner, sorted),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if err := e.store.InsertWord(ctx, record); err != nil {
		// The live round keeps its in-memory outcome; the word may be
		// lost across a restart.
		e.logger.Error("word persistence failed", "word", word, "error", err)
	}
	cancel()

	e.ledger.Append(record)
	e.bot.Observe(word)

	if botHadSubmission && winner.SubmitterID != bot.ID {
		// A human override makes any planned bot sentence stale.
		e.bot.Abandon()
	}

	e.charCount += len(word) + 1
	if e.charCount >= e.cfg.Game.ChunkSize {
		e.sealChunkLocked()
	}

	e.logger.Info("round ended",
		"round", e.round-1,
		"word", word,
		"by", record.Username,
		"score", record.Score,
	)

	e.queueEvent(domain.NewEvent(domain.EventCurrentTextUpdated, &domain.CurrentTextPayload{
		LedgerWindow: e.ledger.Window(),
	}))
	e.queueEvent(domain.NewEvent(domain.EventNextTick, &domain.NextTickPayload{
		NextBoundary: e.nextBoundary,
		Round:        e.round,
	}))
	e.queueFeedEvent()
}

// sealChunkLocked batches all unsealed words into one immutable chunk.
// The character counter resets only after the whole seal succeeds, so a
// failed seal retries at the next qualifying round end.
func (e *Engine) sealChunkLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), sealTimeout)
	defer cancel()

	words, err := e.store.UnsealedWords(ctx)
	if err != nil {
		e.logger.Error("reading unsealed words failed", "error", err)
		return
	}
	if len(words) == 0 {
		return
	}

	ids := make([]string, len(words))
	for i, w := range words {
		ids[i] = w.ID
	}

	chunk := &domain.Chunk{
		ID:    uuid.New().String(),
		TS:    words[0].TS,
		Hash:  domain.ChunkHash(words),
		Text:  domain.ChunkText(words),
		Words: ids,
	}

	if err := e.store.InsertChunk(ctx, chunk); err != nil {
		e.logger.Error("chunk seal failed", "error", err)
		return
	}
	if err := e.store.SetChunkID(ctx, chunk.ID, ids); err != nil {
		e.logger.Error("chunk id stamp failed", "chunkId", chunk.ID, "error", err)
		return
	}

	e.charCount = 0
	e.logger.Info("chunk sealed", "chunkId", chunk.ID, "hash", chunk.Hash, "words", len(words))
}

// FinalSeal forces a last seal attempt, regardless of the character
// counter. Called once during shutdown.
func (e *Engine) FinalSeal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sealChunkLocked()
}

// Submit registers a proposal from a client. Validation failures are
// reported only to the originating client.
func (e *Engine) Submit(clientID, name, word string, styles domain.StyleSet) error {
	word = strings.TrimSpace(word)
	if err := e.validator.Validate(word); err != nil {
		e.queueEvent(domain.NewClientEvent(domain.EventSubmissionFailed, clientID, &domain.SubmissionFailedPayload{
			Reason: err.Error(),
		}))
		return err
	}

	e.mu.Lock()
	e.registry.Submit(clientID, name, word, styles, e.clock.Now())
	e.mu.Unlock()

	e.queueFeedEvent()
	return nil
}

// CastVote applies a vote. Votes on missing submissions or on the
// voter's own key leave state untouched.
func (e *Engine) CastVote(voterID, compositeKey, direction string) error {
	var dir int
	switch direction {
	case "up":
		dir = domain.VoteUp
	case "down":
		dir = domain.VoteDown
	default:
		return domain.ErrInvalidDirection
	}

	e.mu.Lock()
	err := e.registry.CastVote(voterID, compositeKey, dir)
	e.mu.Unlock()

	if err != nil {
		return err
	}

	e.queueFeedEvent()
	return nil
}

// SnapshotFor returns the live feed annotated with the requester's own
// votes.
func (e *Engine) SnapshotFor(clientID string) []domain.SubmissionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ViewFor(clientID)
}

// Window returns the current ledger window.
func (e *Engine) Window() []*domain.WordRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Window()
}

// Stats summarizes engine state for the REST surface.
type Stats struct {
	Clients         int       `json:"clients"`
	Round           uint64    `json:"round"`
	NextBoundary    time.Time `json:"nextBoundary"`
	WindowLength    int       `json:"windowLength"`
	CharCounter     int       `json:"charCounter"`
	PendingBotWords int       `json:"pendingBotWords"`
}

// GetStats returns a snapshot of engine state.
func (e *Engine) GetStats() Stats {
	e.clientsMu.RLock()
	clients := len(e.clients)
	e.clientsMu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Clients:         clients,
		Round:           e.round,
		NextBoundary:    e.nextBoundary,
		WindowLength:    e.ledger.Len(),
		CharCounter:     e.charCount,
		PendingBotWords: e.bot.PendingCount(),
	}
}

// RegisterClient adds a client connection and sends it the initial
// state. A reconnect under an already-registered id displaces the
// previous connection, which is closed so it cannot linger half-dead.
func (e *Engine) RegisterClient(client ClientConnection) {
	id := client.ClientID()

	e.clientsMu.Lock()
	prev := e.clients[id]
	e.clients[id] = client
	e.clientsMu.Unlock()

	if prev != nil {
		e.logger.Debug("closing displaced connection", "clientID", id)
		prev.Close()
	}

	e.mu.Lock()
	payload := &domain.InitialStatePayload{
		LedgerWindow:    e.ledger.Window(),
		LiveSubmissions: e.registry.ViewFor(id),
		NextBoundary:    e.nextBoundary,
		Round:           e.round,
	}
	e.mu.Unlock()

	if err := client.Send(domain.NewClientEvent(domain.EventInitialState, id, payload)); err != nil {
		e.logger.Debug("failed to send initial state", "clientID", id, "error", err)
	}
}

// UnregisterClient removes a client connection. The identity check
// keeps a displaced connection's teardown from evicting the connection
// that replaced it under the same id.
func (e *Engine) UnregisterClient(client ClientConnection) {
	id := client.ClientID()

	e.clientsMu.Lock()
	if current, ok := e.clients[id]; ok && current == client {
		delete(e.clients, id)
	}
	e.clientsMu.Unlock()
}

// queueEvent adds an event to the broadcast queue
func (e *Engine) queueEvent(event *domain.Event) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// queueFeedEvent queues a live-feed update. The payload is built per
// client at send time so each client sees its own vote annotations.
func (e *Engine) queueFeedEvent() {
	e.queueEvent(domain.NewEvent(domain.EventLiveFeedUpdated, nil))
}

// eventLoop processes events and broadcasts to clients
func (e *Engine) eventLoop() {
	for {
		select {
		case <-e.done:
			return
		case event := <-e.events:
			e.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to the appropriate clients.
func (e *Engine) broadcastEvent(event *domain.Event) {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()

	// Feed updates are personalized per client.
	if event.Type == domain.EventLiveFeedUpdated {
		for id, client := range e.clients {
			personalized := &domain.Event{
				Type:      event.Type,
				Payload:   &domain.LiveFeedPayload{Submissions: e.SnapshotFor(id)},
				Timestamp: event.Timestamp,
			}
			if err := client.Send(personalized); err != nil {
				e.logger.Debug("failed to send to client", "clientID", id, "error", err)
			}
		}
		return
	}

	if event.ClientID != "" {
		if client, ok := e.clients[event.ClientID]; ok {
			if err := client.Send(event); err != nil {
				e.logger.Debug("failed to send to client", "clientID", event.ClientID, "error", err)
			}
		}
		return
	}

	for id, client := range e.clients {
		if err := client.Send(event); err != nil {
			e.logger.Debug("failed to send to client", "clientID", id, "error", err)
		}
	}
}

// Close shuts down the engine's broadcast loop and all clients.
func (e *Engine) Close() {
	select {
	case <-e.done:
		return
	default:
		close(e.done)
	}

	e.clientsMu.Lock()
	for _, client := range e.clients {
		client.Close()
	}
	e.clients = make(map[string]ClientConnection)
	e.clientsMu.Unlock()
}
