// Command gdprauthd serves the account API over HTTP.
//
// Configuration comes from GDPRAUTH_* environment variables; see config.go.
// Without GDPRAUTH_DATABASE_URL users live in memory, and with -dev an
// in-process miniredis stands in for GDPRAUTH_REDIS_ADDR.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/internal/httpapi"
	otelexport "github.com/MrEthical07/gdprAuth/metrics/export/otel"
	promexport "github.com/MrEthical07/gdprAuth/metrics/export/prometheus"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/storage/memory"
	"github.com/MrEthical07/gdprAuth/storage/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

func main() {
	var (
		dotenv = flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
		dev    = flag.Bool("dev", false, "use an in-process redis when GDPRAUTH_REDIS_ADDR is empty")
	)
	flag.Parse()

	if err := run(*dotenv, *dev); err != nil {
		fmt.Fprintf(os.Stderr, "gdprauthd: %v\n", err)
		os.Exit(1)
	}
}

func run(dotenv string, dev bool) error {
	dc, err := loadConfig(dotenv)
	if err != nil {
		return err
	}

	logger := newLogger(dc.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := gdprAuth.New().
		WithConfig(dc.engineConfig()).
		WithAuditSink(gdprAuth.NewSlogSink(logger.With("component", "audit"))).
		WithWarnLogger(func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...))
		})

	// ---------- storage ----------
	if dc.DatabaseURL != "" {
		db, err := postgres.Open(ctx, dc.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		wirePostgres(b, db, dc.UseIndex)
		logger.Info("using postgres user store")
	} else {
		b.WithUserProvider(memory.NewUserStore())
		logger.Warn("GDPRAUTH_DATABASE_URL not set, users are kept in memory")
	}

	rdb, cleanup, err := openRedis(dc, dev, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if rdb != nil {
		b.WithRedis(rdb)
	}

	// ---------- notifications ----------
	if dc.SMTPHost != "" {
		sender, err := notify.NewSMTPSender(dc.smtpConfig())
		if err != nil {
			return err
		}
		b.WithSender(sender)
	} else {
		b.WithSender(notify.NewLogSender(logger.With("component", "mail")))
		logger.Warn("GDPRAUTH_SMTP_HOST not set, mail is written to the log")
	}

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, w := range engine.SecurityReport().LintCodes {
		logger.Warn("configuration warning", "code", w)
	}

	// ---------- metrics ----------
	stopMetrics, err := startOTel(ctx, engine, dc.MetricsLogInterval, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	handler := httpapi.NewHandler(engine, logger)
	srv := &http.Server{
		Addr: dc.Addr,
		Handler: httpapi.NewRouter(handler, httpapi.Options{
			AllowedOrigins: dc.AllowedOrigins,
			TrustProxy:     dc.TrustProxy,
			MetricsHandler: promexport.NewPrometheusExporter(engine).Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", dc.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), dc.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func wirePostgres(b *gdprAuth.Builder, db *sql.DB, storedPseudonyms bool) {
	users := postgres.NewUserStore(db, postgres.WithStoredPseudonyms(storedPseudonyms))
	b.WithUserProvider(users).WithRefreshStore(postgres.NewRefreshTokenStore(db))
}

func openRedis(dc daemonConfig, dev bool, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := dc.RedisAddr
	if addr == "" && !dev {
		logger.Warn("GDPRAUTH_REDIS_ADDR not set, challenges are kept in memory and throttling is off")
		return nil, func() {}, nil
	}

	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Info("using miniredis", "addr", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		DB:       dc.RedisDB,
		Password: dc.RedisPass,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return client, cleanup, nil
}

// startOTel binds engine metrics to an SDK meter provider. When interval is
// positive the collected counters are also logged at debug level.
func startOTel(ctx context.Context, engine *gdprAuth.Engine, interval time.Duration, logger *slog.Logger) (func(), error) {
	res := resource.NewSchemaless(attribute.String("service.name", "gdprauthd"))
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(provider)

	exporter, err := otelexport.NewOTelExporter(otel.Meter("github.com/MrEthical07/gdprAuth"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	done := make(chan struct{})
	if interval > 0 {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-t.C:
					logCollected(ctx, reader, logger)
				}
			}
		}()
	}

	return func() {
		close(done)
		_ = exporter.Close()
		_ = provider.Shutdown(context.Background())
	}, nil
}

func logCollected(ctx context.Context, reader *sdkmetric.ManualReader, logger *slog.Logger) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		logger.Warn("metrics collection failed", "error", err)
		return
	}
	attrs := make([]any, 0, 32)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				attrs = append(attrs, m.Name, sum.DataPoints[0].Value)
			}
		}
	}
	logger.Debug("metrics", attrs...)
}
