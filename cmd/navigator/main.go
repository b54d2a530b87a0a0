package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/escalopa/quran-navigator/internal/adapter/i18n"
	"github.com/escalopa/quran-navigator/internal/adapter/quranapi"
	"github.com/escalopa/quran-navigator/internal/adapter/redis"
	"github.com/escalopa/quran-navigator/internal/adapter/telegram"
	"github.com/escalopa/quran-navigator/internal/application"
	"github.com/escalopa/quran-navigator/internal/config"
	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/logger"
	"github.com/escalopa/quran-navigator/internal/match"
	"github.com/escalopa/quran-navigator/internal/observe"
	"github.com/escalopa/quran-navigator/internal/search"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log)
	log.Info("configuration loaded", "path", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry
	metrics := observe.DefaultMetrics()
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Metrics.ServiceName})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(sctx); err != nil {
				log.Warn("telemetry shutdown", "error", err)
			}
		}()

		if metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}

		srv := serveMetrics(cfg.Metrics.ListenAddr, provider.Handler(), log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	catalog := domain.DefaultCatalog()

	// Initialize i18n
	i18nService, err := i18n.NewI18n(catalog)
	if err != nil {
		return err
	}

	// Initialize Redis store
	store, err := redis.NewStore(cfg.Redis.URI, redis.WithPreferencesTTL(cfg.Redis.PreferencesTTL))
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("redis connected")

	// Initialize Quran API client
	quranAPIClient := quranapi.NewClient(cfg.QuranAPI.BaseURL,
		quranapi.WithHTTPClient(&http.Client{Timeout: cfg.QuranAPI.Timeout}),
		quranapi.WithAPIKey(cfg.QuranAPI.APIKey),
		quranapi.WithAudioBaseURL(cfg.QuranAPI.AudioBaseURL),
		quranapi.WithBackupAudioURL(cfg.QuranAPI.BackupAudioURL),
		quranapi.WithTranslation(cfg.QuranAPI.TranslationID),
		quranapi.WithMetrics(metrics),
		quranapi.WithLogger(log),
	)

	weights := search.DefaultWeights()
	weights.Coverage = cfg.Search.CoverageWeight
	weights.Order = cfg.Search.OrderWeight

	searcher := search.New(quranAPIClient,
		search.WithWeights(weights),
		search.WithPageSizes(cfg.Search.PrimarySize, cfg.Search.FallbackSize),
		search.WithCache(store, cfg.Search.CacheTTL),
		search.WithMetrics(metrics),
		search.WithLogger(log),
	)

	matcher := match.New(catalog,
		match.WithScorer(scorer(cfg.Matcher.Scorer)),
		match.WithSurahFloor(cfg.Matcher.SurahFloor),
		match.WithAyahFloor(cfg.Matcher.AyahFloor),
	)

	// Initialize application service
	navigator := application.NewNavigatorService(catalog, matcher, searcher,
		application.WithVerseLoader(quranAPIClient),
		application.WithPreferencesStore(store),
		application.WithSuggestions(cfg.Search.Suggestions),
		application.WithDefaultReciter(cfg.App.DefaultReciter),
		application.WithDefaultLanguage(domain.Language(cfg.App.DefaultLanguage)),
		application.WithMetrics(metrics),
		application.WithLogger(log),
	)

	// Initialize Telegram bot
	bot, err := telegram.NewBot(cfg.Telegram.Token, navigator, catalog, i18nService, quranAPIClient, quranAPIClient,
		telegram.WithThreshold(cfg.App.AutoNavigateThreshold),
		telegram.WithUpdateTimeout(cfg.Telegram.UpdateTimeout),
		telegram.WithDebug(cfg.Telegram.Debug),
		telegram.WithNearEnd(cfg.Playback.NearEnd),
		telegram.WithClipFallback(cfg.Playback.ClipFallback),
		telegram.WithMetrics(metrics),
		telegram.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// Start bot in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Info("starting bot")
		errChan <- bot.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, stopping bot")
		if err := bot.Stop(); err != nil {
			log.Error("stop bot", "error", err)
		}
	case err := <-errChan:
		if err != nil {
			log.Error("bot stopped", "error", err)
			return err
		}
	}

	log.Info("bot stopped")
	return nil
}

func scorer(name string) match.Scorer {
	if name == "jaro_winkler" {
		return match.JaroWinkler()
	}
	return match.Levenshtein()
}

func serveMetrics(addr string, h http.Handler, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()
	return srv
}
