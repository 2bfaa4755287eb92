package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ID is the fixed identity the bot submits under. It has no privileged
// path: its words go through the ordinary submission registry.
const ID = "sntnz-bot"

// fillerWords are always banned so the bot never pads with chat filler.
var fillerWords = []string{"please", "pls", "plz"}

// seedVocabulary pads a stalled Markov walk up to the minimum sentence
// length.
var seedVocabulary = []string{
	"then", "slowly", "light", "words", "drift", "together",
	"again", "toward", "silence", "morning",
}

var errSentenceRejected = errors.New("generated sentence rejected")

// Generator produces a candidate sentence from a prompt. It is opaque
// and unreliable: it may error or run past its deadline, both of which
// route to the Markov fallback.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds the bot's tunables.
type Config struct {
	Name        string
	MinWords    int
	MaxWords    int
	ContextSize int // capacity of the training ring buffer
	StopWords   []string
	BanWords    []string // operator-configured extra ban terms
}

// Bot is the autonomous fallback contributor. It plans whole sentences,
// queues their words, and hands out one word per firing. All methods
// are safe for concurrent use: planning runs on its own goroutine while
// the engine keeps observing accepted words.
type Bot struct {
	cfg    Config
	gen    Generator
	logger *slog.Logger

	mu           sync.Mutex
	context      []string // ring of recently accepted words
	queue        []string // words of the planned sentence not yet played
	lastSentence string
	stopwords    map[string]bool
}

// New creates a bot. gen may be nil, in which case every firing uses
// the Markov fallback directly.
func New(cfg Config, gen Generator, logger *slog.Logger) *Bot {
	if cfg.Name == "" {
		cfg.Name = ID
	}
	if cfg.MinWords < 1 {
		cfg.MinWords = 3
	}
	if cfg.MaxWords < cfg.MinWords {
		cfg.MaxWords = cfg.MinWords + 7
	}
	if cfg.ContextSize < 1 {
		cfg.ContextSize = 100
	}

	stop := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[NormalizeWord(w)] = true
	}

	return &Bot{
		cfg:       cfg,
		gen:       gen,
		logger:    logger,
		stopwords: stop,
	}
}

// Name returns the display name the bot submits under.
func (b *Bot) Name() string { return b.cfg.Name }

// Observe feeds one accepted ledger word into the bounded training
// context. Called for every accepted word, human or bot.
func (b *Bot) Observe(word string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.context = append(b.context, word)
	if len(b.context) > b.cfg.ContextSize {
		b.context = b.context[1:]
	}
}

// Abandon drops the pending sentence queue. The engine calls this when
// the bot submitted but a human won the round, so the bot regenerates
// against the new context instead of resuming a stale sentence.
func (b *Bot) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
}

// PendingCount returns the number of queued words.
func (b *Bot) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// PlanWord returns exactly one candidate word: the next queued word if
// a sentence is pending, otherwise the first word of a freshly planned
// sentence. This path cannot fail. Planning runs with the lock
// released, so Observe, Abandon and PendingCount stay responsive while
// an external generation call is in flight.
func (b *Bot) PlanWord(ctx context.Context, lastWord string, windowWords, profane []string) string {
	if word, ok := b.dequeue(); ok {
		return word
	}

	b.mu.Lock()
	contextWords := append([]string(nil), b.context...)
	prev := b.lastSentence
	b.mu.Unlock()

	sentence := b.planSentence(ctx, lastWord, windowWords, profane, contextWords, prev)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		b.queue = strings.Fields(sentence)
		b.lastSentence = sentence
	}
	word := b.queue[0]
	b.queue = b.queue[1:]
	return word
}

// dequeue pops the next pending word, if any.
func (b *Bot) dequeue() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return "", false
	}
	word := b.queue[0]
	b.queue = b.queue[1:]
	return word, true
}

// planSentence tries the external generator twice (second attempt with
// a corrective instruction), then falls back to the Markov walk. It
// works from snapshots and immutable configuration only, so it runs
// without b.mu held.
func (b *Bot) planSentence(ctx context.Context, lastWord string, windowWords, profane, contextWords []string, prev string) string {
	ban := b.banPool(windowWords, profane)

	if b.gen != nil {
		prompt := b.buildPrompt(lastWord, windowWords, ban, prev, "")
		for attempt := 0; attempt < 2; attempt++ {
			raw, err := b.gen.Generate(ctx, prompt)
			if err != nil {
				b.logger.Warn("external generation failed", "attempt", attempt+1, "error", err)
				break
			}
			sentence := strings.TrimSpace(raw)
			if err := b.validateSentence(sentence, prev); err != nil {
				b.logger.Debug("generated sentence rejected", "attempt", attempt+1, "error", err)
				prompt = b.buildPrompt(lastWord, windowWords, ban, prev, err.Error())
				continue
			}
			return sentence
		}
	}

	return b.markovSentence(lastWord, ban, contextWords)
}

// banPool assembles the per-generation set of forbidden words: recent
// ledger words, profanity found in the current text, operator extras
// and fixed filler words. It is discarded after the attempt.
func (b *Bot) banPool(windowWords, profane []string) map[string]bool {
	ban := make(map[string]bool)
	add := func(words []string) {
		for _, w := range words {
			if n := NormalizeWord(w); n != "" {
				ban[n] = true
			}
		}
	}
	add(windowWords)
	add(profane)
	add(b.cfg.BanWords)
	add(fillerWords)
	return ban
}

// buildPrompt writes the generation instruction for the external
// collaborator. correction is non-empty on the retry attempt.
func (b *Bot) buildPrompt(lastWord string, windowWords []string, ban map[string]bool, prev, correction string) string {
	banned := make([]string, 0, len(ban))
	for w := range ban {
		banned = append(banned, w)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Continue this collaborative text with one short sentence of %d to %d words.\n",
		b.cfg.MinWords, b.cfg.MaxWords)
	fmt.Fprintf(&sb, "Current text: %q\n", strings.Join(windowWords, " "))
	if lastWord != "" {
		fmt.Fprintf(&sb, "The sentence must read naturally after the word %q.\n", lastWord)
	}
	fmt.Fprintf(&sb, "End with terminal punctuation. Do not repeat any word inside the sentence.\n")
	fmt.Fprintf(&sb, "Do not use any of these words: %s.\n", strings.Join(banned, ", "))
	if prev != "" {
		fmt.Fprintf(&sb, "Do not repeat or start like your previous sentence: %q.\n", prev)
	}
	if correction != "" {
		fmt.Fprintf(&sb, "Your previous answer was rejected (%s). Produce a different sentence.\n", correction)
	}
	return sb.String()
}

// validateSentence enforces the sentence contract: word count within
// bounds, terminal punctuation, at most one repeated non-stopword
// (tolerance for generator noise), and no resemblance to the previous
// bot sentence or its opening bigram.
func (b *Bot) validateSentence(sentence, prev string) error {
	words := strings.Fields(sentence)
	if len(words) < b.cfg.MinWords || len(words) > b.cfg.MaxWords {
		return fmt.Errorf("%w: word count %d outside [%d,%d]", errSentenceRejected, len(words), b.cfg.MinWords, b.cfg.MaxWords)
	}

	last := words[len(words)-1]
	if !strings.HasSuffix(last, ".") && !strings.HasSuffix(last, "!") && !strings.HasSuffix(last, "?") {
		return fmt.Errorf("%w: missing terminal punctuation", errSentenceRejected)
	}

	seen := make(map[string]int)
	repeated := 0
	for _, w := range words {
		n := NormalizeWord(w)
		if n == "" || b.stopwords[n] {
			continue
		}
		seen[n]++
		if seen[n] == 2 {
			repeated++
		}
	}
	if repeated > 1 {
		return fmt.Errorf("%w: repeated words", errSentenceRejected)
	}

	if prev != "" {
		if strings.EqualFold(sentence, prev) {
			return fmt.Errorf("%w: identical to previous sentence", errSentenceRejected)
		}
		if bigram(sentence) == bigram(prev) {
			return fmt.Errorf("%w: same opening bigram as previous sentence", errSentenceRejected)
		}
	}

	return nil
}

// markovSentence synthesizes a sentence deterministically from the
// training context. It cannot fail: a stalled walk is padded from the
// seed vocabulary and terminal punctuation is always appended.
func (b *Bot) markovSentence(lastWord string, ban map[string]bool, contextWords []string) string {
	model := BuildModel(contextWords)

	used := make(map[string]bool, len(ban))
	for w := range ban {
		used[w] = true
	}

	words := make([]string, 0, b.cfg.MaxWords)
	current := NormalizeWord(lastWord)
	for len(words) < b.cfg.MaxWords {
		next, ok := model.Next(current, used)
		if !ok {
			break
		}
		words = append(words, next)
		used[next] = true
		current = next
	}

	// Pad a stalled walk up to the minimum length. Padding ignores the
	// ban pool: the length contract outranks word avoidance, and the
	// whole seed vocabulary may sit in the recent window.
	inSentence := make(map[string]bool, len(words))
	for _, w := range words {
		inSentence[w] = true
	}
	for _, seed := range seedVocabulary {
		if len(words) >= b.cfg.MinWords {
			break
		}
		if inSentence[seed] {
			continue
		}
		words = append(words, seed)
		inSentence[seed] = true
	}
	for i := 0; len(words) < b.cfg.MinWords; i++ {
		words = append(words, seedVocabulary[i%len(seedVocabulary)])
	}

	words[len(words)-1] += "."
	return strings.Join(words, " ")
}

func bigram(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) < 2 {
		return strings.ToLower(strings.Join(words, " "))
	}
	return NormalizeWord(words[0]) + " " + NormalizeWord(words[1])
}
