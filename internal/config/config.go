package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secret holds a credential. It prints redacted so it can't leak through logs.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Reveal returns the raw value for the one place that needs it.
func (s Secret) Reveal() string { return string(s) }

// Config holds all service settings, populated from environment variables.
// It is built once by Load and never modified afterwards.
type Config struct {
	// Provider and relay credentials.
	OpenWeatherAPIKey Secret `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	SenderEmail       string `envconfig:"SENDER_EMAIL" validate:"required,email"`
	EmailPassword     Secret `envconfig:"EMAIL_PASSWORD" validate:"required"`

	OpenWeatherBaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org" validate:"required,url"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"5s" validate:"gt=0"`
	SMTPHost           string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com" validate:"required,hostname_rfc1123"`
	SMTPPort           int           `envconfig:"SMTP_PORT" default:"465" validate:"min=1,max=65535"`
	SMTPTimeout        time.Duration `envconfig:"SMTP_TIMEOUT" default:"10s" validate:"gt=0"`

	GeocodeCacheSize int           `envconfig:"GEOCODE_CACHE_SIZE" default:"1000" validate:"min=0"`
	GeocodeCacheTTL  time.Duration `envconfig:"GEOCODE_CACHE_TTL" default:"1h" validate:"gt=0,lte=24h"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	DatabaseURL Secret `envconfig:"DATABASE_URL" default:"weather_service.db" validate:"required"`

	SchedulerEnabled      bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	ScheduleTimezone      string        `envconfig:"SCHEDULE_TIMEZONE" default:"Local"`
	DailyReportAt         string        `envconfig:"DAILY_REPORT_AT" default:"08:00"`
	WeeklyReportDay       string        `envconfig:"WEEKLY_REPORT_DAY" default:"sunday"`
	WeeklyReportAt        string        `envconfig:"WEEKLY_REPORT_AT" default:"09:00"`
	SchedulerPollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"1m" validate:"gt=0"`

	DispatchConcurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"1" validate:"min=1,max=32"`

	KafkaEnabled      bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaOutcomeTopic string   `envconfig:"KAFKA_OUTCOME_TOPIC" default:"weather-report-outcomes"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	// Resolved from the string settings above.
	Location  *time.Location `ignored:"true"`
	DailyAt   ClockTime      `ignored:"true"`
	WeeklyDay time.Weekday   `ignored:"true"`
	WeeklyAt  ClockTime      `ignored:"true"`
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Error names the environment variable that failed to load.
type Error struct {
	Var string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("config %s: %v", e.Var, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Load reads configuration from environment variables (and a .env file if
// present), applying defaults where unset. Existing environment variables win
// over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return nil, &Error{Var: perr.KeyName, Err: perr.Err}
		}
		return nil, &Error{Var: "environment", Err: err}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, validationError(err)
	}

	if cfg.KafkaEnabled && (len(cfg.KafkaBrokers) == 0 || cfg.KafkaOutcomeTopic == "") {
		return nil, &Error{Var: "KAFKA_BROKERS", Err: errors.New("KAFKA_ENABLED is true but brokers or topic are empty")}
	}

	var err error
	if cfg.Location, err = loadLocation(cfg.ScheduleTimezone); err != nil {
		return nil, &Error{Var: "SCHEDULE_TIMEZONE", Err: err}
	}
	if cfg.DailyAt, err = ParseClockTime(cfg.DailyReportAt); err != nil {
		return nil, &Error{Var: "DAILY_REPORT_AT", Err: err}
	}
	if cfg.WeeklyAt, err = ParseClockTime(cfg.WeeklyReportAt); err != nil {
		return nil, &Error{Var: "WEEKLY_REPORT_AT", Err: err}
	}
	if cfg.WeeklyDay, err = ParseWeekday(cfg.WeeklyReportDay); err != nil {
		return nil, &Error{Var: "WEEKLY_REPORT_DAY", Err: err}
	}

	return &cfg, nil
}

// ParseClockTime parses "HH:MM" in 24-hour notation.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ParseWeekday accepts full English day names, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// envNames maps struct fields to their variable names for validation errors.
var envNames = map[string]string{
	"OpenWeatherAPIKey":     "OPENWEATHER_API_KEY",
	"SenderEmail":           "SENDER_EMAIL",
	"EmailPassword":         "EMAIL_PASSWORD",
	"OpenWeatherBaseURL":    "OPENWEATHER_BASE_URL",
	"ProviderTimeout":       "PROVIDER_TIMEOUT",
	"SMTPHost":              "SMTP_HOST",
	"SMTPPort":              "SMTP_PORT",
	"SMTPTimeout":           "SMTP_TIMEOUT",
	"GeocodeCacheSize":      "GEOCODE_CACHE_SIZE",
	"GeocodeCacheTTL":       "GEOCODE_CACHE_TTL",
	"StoreDriver":           "STORE_DRIVER",
	"DatabaseURL":           "DATABASE_URL",
	"SchedulerPollInterval": "SCHEDULER_POLL_INTERVAL",
	"DispatchConcurrency":   "DISPATCH_CONCURRENCY",
	"LogLevel":              "LOG_LEVEL",
	"LogFormat":             "LOG_FORMAT",
	"ShutdownTimeout":       "SHUTDOWN_TIMEOUT",
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Var: "environment", Err: err}
	}
	fe := verrs[0]
	name, ok := envNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}
	if fe.Tag() == "required" {
		return &Error{Var: name, Err: errors.New("is required")}
	}
	// Secret values print redacted through their Stringer.
	return &Error{Var: name, Err: fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value())}
}
