package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/numero41/SNTNZ-sub000/internal/app"
	"github.com/numero41/SNTNZ-sub000/internal/bot"
	"github.com/numero41/SNTNZ-sub000/internal/config"
	"github.com/numero41/SNTNZ-sub000/internal/domain"
	"github.com/numero41/SNTNZ-sub000/internal/generate"
	"github.com/numero41/SNTNZ-sub000/internal/storage/sqlite"
	httpTransport "github.com/numero41/SNTNZ-sub000/internal/transport/http"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	cfg := config.Default()

	v := viper.New()
	v.SetEnvPrefix("SNTNZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sntnz",
		Short:         "A collaborative, round-based word-chaining game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Server.Host, "host", "b", cfg.Server.Host, "address to bind to (env: SNTNZ_HOST)")
	fs.IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "port to listen on (env: SNTNZ_PORT)")
	fs.StringVar(&cfg.Server.Env, "env", cfg.Server.Env, "development or production (env: SNTNZ_ENV)")
	fs.DurationVar(&cfg.Game.RoundDuration, "round-duration", cfg.Game.RoundDuration, "length of one acceptance round (env: SNTNZ_ROUND_DURATION)")
	fs.DurationVar(&cfg.Game.TickInterval, "tick-interval", cfg.Game.TickInterval, "scheduler polling interval (env: SNTNZ_TICK_INTERVAL)")
	fs.IntVar(&cfg.Game.CurrentTextLength, "text-length", cfg.Game.CurrentTextLength, "live window capacity in words (env: SNTNZ_TEXT_LENGTH)")
	fs.IntVar(&cfg.Game.ChunkSize, "chunk-size", cfg.Game.ChunkSize, "character threshold that seals a chunk (env: SNTNZ_CHUNK_SIZE)")
	fs.StringVar(&cfg.Bot.Name, "bot-name", cfg.Bot.Name, "display name of the fallback contributor (env: SNTNZ_BOT_NAME)")
	fs.IntVar(&cfg.Bot.MinWords, "bot-min-words", cfg.Bot.MinWords, "minimum bot sentence length (env: SNTNZ_BOT_MIN_WORDS)")
	fs.IntVar(&cfg.Bot.MaxWords, "bot-max-words", cfg.Bot.MaxWords, "maximum bot sentence length (env: SNTNZ_BOT_MAX_WORDS)")
	fs.IntVar(&cfg.Bot.LookbackMultiplier, "bot-lookback", cfg.Bot.LookbackMultiplier, "bot context capacity as a multiple of text-length (env: SNTNZ_BOT_LOOKBACK)")
	fs.StringSliceVar(&cfg.Bot.BanWords, "ban-words", cfg.Bot.BanWords, "extra words the bot must avoid (env: SNTNZ_BAN_WORDS)")
	fs.StringVar(&cfg.Generator.APIKey, "openrouter-api-key", cfg.Generator.APIKey, "OpenRouter API key; empty disables external generation (env: SNTNZ_OPENROUTER_API_KEY)")
	fs.StringVar(&cfg.Generator.Model, "generator-model", cfg.Generator.Model, "chat-completions model (env: SNTNZ_GENERATOR_MODEL)")
	fs.DurationVar(&cfg.Generator.Timeout, "generator-timeout", cfg.Generator.Timeout, "hard timeout per generation call (env: SNTNZ_GENERATOR_TIMEOUT)")
	fs.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "directory for the sqlite database (env: SNTNZ_DATA_DIR)")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error (env: SNTNZ_LOG_LEVEL)")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "json or text (env: SNTNZ_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting sntnz server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"roundDuration", cfg.Game.RoundDuration,
	)

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	var gen bot.Generator
	if cfg.Generator.APIKey != "" {
		gen = generate.NewClient(cfg.Generator.APIKey, cfg.Generator.Model, cfg.Generator.Timeout)
	} else {
		logger.Warn("no generator api key set, bot will use the local fallback only")
	}

	contributor := bot.New(bot.Config{
		Name:        cfg.Bot.Name,
		MinWords:    cfg.Bot.MinWords,
		MaxWords:    cfg.Bot.MaxWords,
		ContextSize: cfg.Game.CurrentTextLength * cfg.Bot.LookbackMultiplier,
		StopWords:   cfg.Bot.StopWords,
		BanWords:    cfg.Bot.BanWords,
	}, gen, logger)

	validator := domain.NewValidator(cfg.Bot.BanWords)
	engine := app.NewEngine(cfg, store, validator, contributor, app.SystemClock(), logger)
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()

	scheduler := app.NewScheduler(app.SystemClock(), cfg.Game.TickInterval, engine, logger)
	go scheduler.Run(schedCtx)

	server := httpTransport.NewServer(cfg, engine, store, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	stopScheduler()

	// Whatever is unsealed gets one forced seal attempt before exit.
	engine.FinalSeal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
