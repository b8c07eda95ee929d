package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mockinterview/internal/auth"
	"github.com/pavelanni/mockinterview/internal/events"
	"github.com/pavelanni/mockinterview/internal/handler"
	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/llm"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/ratelimit"
	"github.com/pavelanni/mockinterview/internal/session"
	"github.com/pavelanni/mockinterview/internal/store"
)

var version = "dev"

const (
	providerAuto   = "auto"
	providerOpenAI = "openai"
	providerMock   = "mock"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "mockinterview",
		Short:   "Mock interview sessions with generated questions and scored answers",
		Version: version,
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), tokenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mockinterview --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", store.BackendMemory, "Session store backend (memory, sqlite, postgres)")
	f.String("db", "mockinterview.db", "SQLite database path")
	f.String("database-url", "", "PostgreSQL connection string")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(cmd)
	f.String("llm-provider", providerAuto, "Question provider (openai, mock, auto = openai when a key is set)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty for the OpenAI default)")
	f.String("llm-key", "", "API key for the LLM")
	f.String("llm-model", "gpt-4o-mini", "Model used to generate questions")
	f.String("llm-eval-model", "", "Model used to grade answers (defaults to llm-model)")
	f.Duration("generate-timeout", 45*time.Second, "Timeout for one question generation call")
	f.Duration("grade-timeout", session.DefaultGradeTimeout, "Timeout for one grading call")
	f.Int("daily-cap", 200, "Question generations per caller per day (0 disables the cap)")
	f.String("daily-cap-timezone", ratelimit.DefaultTimezone, "Timezone whose midnight resets the daily cap")
	f.String("redis-url", "", "Redis URL for a shared daily cap (empty keeps counts in process)")
	f.String("amqp-url", "", "RabbitMQ URL for session events (empty disables events)")
	f.String("jwt-secret", "", "HS256 secret for bearer identity tokens (empty trusts X-User-ID)")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.Bool("allow-clear", false, "Allow DELETE /api/sessions to remove every session")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all sessions with their summaries as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer identity token for a user id",
		RunE:  runToken,
	}
	f := cmd.Flags()
	f.String("user", "", "User id to embed in the token (required)")
	f.Duration("ttl", 24*time.Hour, "Token lifetime")
	f.String("jwt-secret", "", "HS256 signing secret")
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MOCKINTERVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mockinterview")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mockinterview")
	v.AddConfigPath("/etc/mockinterview")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Backend:     strings.ToLower(v.GetString("store")),
		Path:        v.GetString("db"),
		DatabaseURL: v.GetString("database-url"),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// buildLLM picks the generator and grader. Live generation always falls back
// to the static pools.
func buildLLM(ctx context.Context, v *viper.Viper) (string, llm.Generator, llm.Grader, error) {
	provider := strings.ToLower(v.GetString("llm-provider"))
	if provider == "" || provider == providerAuto {
		provider = providerMock
		if v.GetString("llm-key") != "" {
			provider = providerOpenAI
		}
	}

	switch provider {
	case providerMock:
		slog.Warn("no language model configured, using static questions and skipping free-text grading")
		return provider, llm.Static{}, llm.NoGrader{}, nil
	case providerOpenAI:
		client, err := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			v.GetString("llm-eval-model"),
		)
		if err != nil {
			return "", nil, nil, fmt.Errorf("create LLM client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			slog.Warn("LLM health check failed, generation will fall back when needed", "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
		return provider, llm.WithFallback(client, llm.Static{}), client, nil
	default:
		return "", nil, nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func buildLimiter(ctx context.Context, v *viper.Viper) (ratelimit.Limiter, func(), error) {
	limit := v.GetInt("daily-cap")
	if limit <= 0 {
		slog.Info("daily cap disabled")
		return nil, func() {}, nil
	}
	loc := ratelimit.LoadLocation(v.GetString("daily-cap-timezone"))

	url := v.GetString("redis-url")
	if url == "" {
		return ratelimit.NewDailyCap(limit, loc), func() {}, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("daily cap backed by redis", "limit", limit, "timezone", loc.String())
	return ratelimit.NewRedis(client, limit, loc), func() { client.Close() }, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	st, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer st.Close()

	provider, gen, grader, err := buildLLM(ctx, v)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := buildLimiter(ctx, v)
	if err != nil {
		return fmt.Errorf("daily cap: %w", err)
	}
	defer closeLimiter()

	publisher, err := events.New(v.GetString("amqp-url"))
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer publisher.Close()

	svc := session.New(st, gen, grader, session.Options{
		GradeTimeout:    v.GetDuration("grade-timeout"),
		GenerateTimeout: v.GetDuration("generate-timeout"),
		Publisher:       publisher,
	})

	appCfg := model.AppConfig{
		LLMProvider:      provider,
		LLMModel:         v.GetString("llm-model"),
		DailyCap:         v.GetInt("daily-cap"),
		DailyCapTimezone: v.GetString("daily-cap-timezone"),
		AllowClear:       v.GetBool("allow-clear"),
		Version:          version,
	}
	h, err := handler.New(svc, appCfg, handler.Options{
		Limiter:   limiter,
		JWTSecret: v.GetString("jwt-secret"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(lang),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"store", v.GetString("store"),
		"llm_provider", provider,
		"model", appCfg.LLMModel,
		"lang", lang,
		"daily_cap", appCfg.DailyCap,
		"daily_cap_timezone", appCfg.DailyCapTimezone,
		"allow_clear", appCfg.AllowClear,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	st, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := store.Export(ctx, st)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	export := model.SessionsExport{
		ExportedAt: time.Now().UTC(),
		Store:      v.GetString("store"),
		Count:      len(results),
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported sessions", "count", len(results), "output", outPath)
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	token, err := auth.IssueToken(v.GetString("jwt-secret"), v.GetString("user"), v.GetDuration("ttl"))
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
