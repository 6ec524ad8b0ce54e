package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arbiterhq/arbiter/internal/api"
	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/chread"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/classify/classifiers"
	"github.com/arbiterhq/arbiter/internal/enforce"
	"github.com/arbiterhq/arbiter/internal/ingress"
	"github.com/arbiterhq/arbiter/internal/ledger"
	"github.com/arbiterhq/arbiter/internal/legitimacy"
	"github.com/arbiterhq/arbiter/internal/storage"
	"github.com/arbiterhq/arbiter/internal/store"
	"github.com/arbiterhq/arbiter/internal/violation"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("ARBITER_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("ARBITER_HTTP_PORT", "8080")
	classifierTimeoutMs := envOrDefaultInt("ARBITER_CLASSIFIER_TIMEOUT_MS", 200)
	escalationThreshold := envOrDefaultFloat("ARBITER_ESCALATION_THRESHOLD", classify.DefaultEscalationThreshold)
	escalationTimeoutH := envOrDefaultInt("ARBITER_ESCALATION_TIMEOUT_H", 72)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("ARBITER_AUTH_CACHE_TTL_S", 30)

	logger.Info("starting arbiter server",
		zap.String("http_port", httpPort),
		zap.Int("classifier_timeout_ms", classifierTimeoutMs),
		zap.Float64("escalation_threshold", escalationThreshold),
		zap.Int("escalation_timeout_h", escalationTimeoutH),
	)

	// Core state
	events := ledger.New(logger)
	violations := violation.NewTracker(logger)

	registry := legitimacy.NewRegistry(legitimacy.DefaultConfig(), logger)
	gate := legitimacy.NewGate(registry, logger)

	// Postgres pool — actor directory and ruling archive
	var (
		pgStore   *store.Store
		directory store.Directory
		archive   caseflow.Archive
	)
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		directory = pgStore
		archive = pgStore
		logger.Info("postgres connected")
	} else {
		// Development mode: in-memory directory with one seeded actor per
		// role. Keys are logged once at startup.
		mem := store.NewMemoryDirectory()
		agent, agentKey, err := mem.Add("dev-agent", store.RoleAgent)
		if err != nil {
			logger.Fatal("failed to seed dev agent", zap.Error(err))
		}
		_, reviewerKey, err := mem.Add("dev-reviewer", store.RoleReviewer)
		if err != nil {
			logger.Fatal("failed to seed dev reviewer", zap.Error(err))
		}
		registry.Register(agent.ID)
		directory = mem
		logger.Info("no POSTGRES_DSN set, using in-memory actor directory",
			zap.String("agent_key", agentKey),
			zap.String("reviewer_key", reviewerKey),
		)
	}

	// Case lifecycle with escalation timeout sweeps
	caseCfg := caseflow.Config{
		EscalationTimeout: time.Duration(escalationTimeoutH) * time.Hour,
		SweepInterval:     time.Minute,
	}
	cases := caseflow.NewManager(caseCfg, caseflow.NewLogNotifier(logger), violations, registry, archive, logger)
	cases.Start()
	defer cases.Stop()

	// Classification engine — independent classifiers wired up here
	cls := []classify.Classifier{
		classifiers.NewRiskHeuristicClassifier(),
		classifiers.NewPrecedentClassifier(cases.Precedents()),
	}
	engine := classify.NewEngine(cls, time.Duration(classifierTimeoutMs)*time.Millisecond, logger)
	classifications := classify.NewStore(events)

	// Decision stream — ClickHouse or LogWriter fallback
	var writer storage.DecisionWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// ClickHouse reader (for decisions/analytics HTTP endpoints)
	var chReader *chread.Reader
	if clickhouseDSN != "" {
		var err error
		chReader, err = chread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	enforcer := enforce.New(events, classifications, engine, gate, cases, violations, writer,
		enforce.Config{EscalationThreshold: escalationThreshold}, logger)

	validator, err := ingress.NewValidator()
	if err != nil {
		logger.Fatal("failed to compile context schema", zap.Error(err))
	}

	deps := &api.Dependencies{
		Enforcer:        enforcer,
		Ledger:          events,
		Classifications: classifications,
		Cases:           cases,
		Violations:      violations,
		Ingress:         validator,
		Actors:          directory,
		Registry:        registry,
		Reader:          chReader,
		Threshold:       escalationThreshold,
		Logger:          logger,
		CacheTTL:        time.Duration(cacheTTL) * time.Second,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("arbiter server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
