// Command sample runs the report pipeline once for an ad-hoc location and
// prints the rendered report, or sends it with -send.
//
// Usage:
//
//	go run ./cmd/sample -location 10001 -elevation 2500 -kind weekly
//	go run ./cmd/sample -location "Denver, CO" -email me@example.com -send
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/yard-weather-service/internal/adapter/openweather"
	"github.com/couchcryptid/yard-weather-service/internal/adapter/smtp"
	"github.com/couchcryptid/yard-weather-service/internal/config"
	"github.com/couchcryptid/yard-weather-service/internal/dispatch"
	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/couchcryptid/yard-weather-service/internal/observability"
)

type options struct {
	location  string
	elevation float64
	kind      domain.ReportKind
	email     string
	send      bool
}

// reports is the part of *dispatch.Pipeline the command uses.
type reports interface {
	Build(ctx context.Context, kind domain.ReportKind, sub domain.Subscriber) (domain.Report, error)
	Deliver(ctx context.Context, kind domain.ReportKind, sub domain.Subscriber) error
}

func main() {
	location := flag.String("location", "", "ZIP code or place name")
	elevation := flag.Float64("elevation", 0, "elevation in feet")
	kind := flag.String("kind", "daily", "report kind: daily or weekly")
	email := flag.String("email", "", "recipient address (defaults to SENDER_EMAIL)")
	send := flag.Bool("send", false, "send the report instead of printing it")
	flag.Parse()

	if *location == "" {
		flag.Usage()
		os.Exit(2)
	}
	k, err := domain.ParseReportKind(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	opts := options{location: *location, elevation: *elevation, kind: k, email: *email, send: *send}
	if opts.email == "" {
		opts.email = cfg.SenderEmail
	}

	p, err := newPipeline(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, p, opts, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newPipeline(cfg *config.Config) (*dispatch.Pipeline, error) {
	logger := observability.NewLogger(cfg.LogLevel, "text")
	metrics := observability.NewUnregisteredMetrics()

	geocoder := openweather.NewGeocoder(cfg.OpenWeatherAPIKey.Reveal(), cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, metrics, logger)
	forecaster := openweather.NewForecaster(cfg.OpenWeatherAPIKey.Reveal(), cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, metrics, logger)
	notifier, err := smtp.NewNotifier(smtp.Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SenderEmail,
		Password: cfg.EmailPassword.Reveal(),
		Timeout:  cfg.SMTPTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return dispatch.NewPipeline(geocoder, forecaster, notifier, domain.NewRenderer(cfg.Location)), nil
}

func run(ctx context.Context, p reports, opts options, stdout, stderr io.Writer) int {
	sub := domain.Subscriber{Email: opts.email, Location: opts.location, ElevationFeet: opts.elevation, Active: true}

	if opts.send {
		if err := p.Deliver(ctx, opts.kind, sub); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Sample %s report sent to %s\n", opts.kind, opts.email)
		return 0
	}

	report, err := p.Build(ctx, opts.kind, sub)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "To: %s\nSubject: %s\n\n%s\n", report.To, report.Subject, report.Body)
	return 0
}
