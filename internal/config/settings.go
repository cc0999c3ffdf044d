package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"reviewbot/internal/apperr"
	logx "reviewbot/pkg/logx"
)

// Environment keys.
const (
	EnvAPIToken     = "API_TOKEN"
	EnvBotToken     = "BOT_TOKEN"
	EnvChatID       = "CHAT_ID"
	EnvLogLevel     = "LOG_LEVEL"
	EnvPollInterval = "POLL_INTERVAL"
	EnvPollSchedule = "POLL_SCHEDULE"
	EnvAPIEndpoint  = "API_ENDPOINT"
)

const (
	DefaultEndpoint       = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultInterval       = 600 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultSendTimeout    = 10 * time.Second
	DefaultRatePerSec     = 1
)

// Settings is the validated, typed view of Config that components consume.
type Settings struct {
	APIToken string
	BotToken string
	ChatID   int64

	Endpoint       string
	RequestTimeout time.Duration
	SendTimeout    time.Duration
	RatePerSec     int
	Interval       time.Duration
	// Schedule decides when the next cycle starts: the parsed cron spec when
	// one is configured, otherwise a constant delay of Interval.
	Schedule     cron.Schedule
	ScheduleSpec string

	Log logx.Config
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if cfg == nil || lookup == nil {
		return
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Practicum.Token, EnvAPIToken)
	set(&cfg.Practicum.Endpoint, EnvAPIEndpoint)
	set(&cfg.Telegram.Token, EnvBotToken)
	set(&cfg.Telegram.ChatID, EnvChatID)
	set(&cfg.Logging.Level, EnvLogLevel)
	set(&cfg.Poller.Interval, EnvPollInterval)
	set(&cfg.Poller.Schedule, EnvPollSchedule)
}

// Resolve validates cfg and fills defaults.
//
// Missing credentials are reported together as one KindConfiguration error;
// an empty or whitespace-only value counts as missing.
func Resolve(cfg *Config) (Settings, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var missing []string
	if strings.TrimSpace(cfg.Practicum.Token) == "" {
		missing = append(missing, EnvAPIToken)
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		missing = append(missing, EnvBotToken)
	}
	if strings.TrimSpace(cfg.Telegram.ChatID) == "" {
		missing = append(missing, EnvChatID)
	}
	if len(missing) > 0 {
		return Settings{}, apperr.Configuration(missing...)
	}

	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		return Settings{}, &apperr.Error{Kind: apperr.KindConfiguration, Field: EnvChatID, Err: fmt.Errorf("not an integer chat id: %w", err)}
	}

	s := Settings{
		APIToken: strings.TrimSpace(cfg.Practicum.Token),
		BotToken: strings.TrimSpace(cfg.Telegram.Token),
		ChatID:   chatID,
		Endpoint: strings.TrimSpace(cfg.Practicum.Endpoint),
		Log: logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		},
		RatePerSec: cfg.Telegram.RatePerSec,
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
	if s.RatePerSec <= 0 {
		s.RatePerSec = DefaultRatePerSec
	}

	if s.RequestTimeout, err = durationOrDefault("practicum.timeout", cfg.Practicum.Timeout, DefaultRequestTimeout); err != nil {
		return Settings{}, invalid(err)
	}
	if s.SendTimeout, err = durationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, DefaultSendTimeout); err != nil {
		return Settings{}, invalid(err)
	}
	if s.Interval, err = durationOrDefault("poller.interval", cfg.Poller.Interval, DefaultInterval); err != nil {
		return Settings{}, invalid(err)
	}
	if s.Interval < time.Second {
		return Settings{}, invalid(fmt.Errorf("poller.interval: must be at least 1s, got %s", s.Interval))
	}
	s.Schedule = cron.Every(s.Interval)
	if spec := strings.TrimSpace(cfg.Poller.Schedule); spec != "" {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return Settings{}, invalid(fmt.Errorf("poller.schedule: %w", err))
		}
		s.Schedule = sched
		s.ScheduleSpec = spec
	}
	return s, nil
}

func invalid(err error) error {
	return &apperr.Error{Kind: apperr.KindConfiguration, Err: err}
}

// durationOrDefault parses a Go duration at a config path; empty or zero
// means def. Negative values are rejected.
func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
