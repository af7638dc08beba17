package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	httpadapter "github.com/couchcryptid/yard-weather-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/yard-weather-service/internal/adapter/kafka"
	"github.com/couchcryptid/yard-weather-service/internal/adapter/openweather"
	"github.com/couchcryptid/yard-weather-service/internal/adapter/smtp"
	"github.com/couchcryptid/yard-weather-service/internal/config"
	"github.com/couchcryptid/yard-weather-service/internal/dispatch"
	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
	"github.com/couchcryptid/yard-weather-service/internal/scheduler"
	"github.com/couchcryptid/yard-weather-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL.Reveal())
	if err != nil {
		logger.Error("failed to open subscriber store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	var geocoder domain.Geocoder = openweather.NewGeocoder(
		cfg.OpenWeatherAPIKey.Reveal(), cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, metrics, logger)
	if cfg.GeocodeCacheSize > 0 {
		geocoder = openweather.NewCachedGeocoder(geocoder, cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL, nil, metrics)
		logger.Info("geocode cache enabled", "size", cfg.GeocodeCacheSize, "ttl", cfg.GeocodeCacheTTL)
	}
	forecaster := openweather.NewForecaster(
		cfg.OpenWeatherAPIKey.Reveal(), cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, metrics, logger)

	notifier, err := smtp.NewNotifier(smtp.Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SenderEmail,
		Password: cfg.EmailPassword.Reveal(),
		Timeout:  cfg.SMTPTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}

	pipeline := dispatch.NewPipeline(geocoder, forecaster, notifier, domain.NewRenderer(cfg.Location))

	opts := []dispatch.Option{dispatch.WithConcurrency(cfg.DispatchConcurrency)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, metrics, logger)
		opts = append(opts, dispatch.WithPublisher(writer))
		logger.Info("kafka outcome events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaOutcomeTopic)
	}
	dispatcher := dispatch.NewDispatcher(st, pipeline, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.ReadinessFunc(st.Ping), pipeline, st, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	var wg sync.WaitGroup
	if cfg.SchedulerEnabled {
		sched := scheduler.New(cfg.Location, cfg.SchedulerPollInterval, nil, logger, metrics)
		sched.Add("daily", scheduler.Daily(cfg.DailyAt), func(ctx context.Context) error {
			_, err := dispatcher.RunDaily(ctx)
			return err
		})
		sched.Add("weekly", scheduler.Weekly(cfg.WeeklyDay, cfg.WeeklyAt), func(ctx context.Context) error {
			_, err := dispatcher.RunWeekly(ctx)
			return err
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()
	} else {
		logger.Info("scheduler disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// In-flight batch runs are not cancelled; the scheduler returns once they finish.
	wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
