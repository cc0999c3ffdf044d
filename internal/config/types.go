package config

// Config is the on-disk (optional) configuration merged with the environment.
//
// Secrets normally come from the environment (API_TOKEN, BOT_TOKEN, CHAT_ID);
// the file is for non-secret tunables. All durations are Go duration strings
// (e.g. "30s", "10m").
//
// Example (YAML):
//
//	poller:
//	  interval: 10m
//	logging:
//	  level: debug
//	  file: { enabled: true, path: ./reviewbot.log }
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poller    PollerConfig    `json:"poller"`
	Logging   LoggingConfig   `json:"logging"`
}

type PracticumConfig struct {
	Token    string `json:"token,omitempty"` // prefer API_TOKEN
	Endpoint string `json:"endpoint,omitempty"`
	// Timeout bounds one request. Default: 30s.
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`   // prefer BOT_TOKEN
	ChatID string `json:"chat_id,omitempty"` // prefer CHAT_ID
	// RatePerSec caps outbound messages. Default: 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// SendTimeout bounds one sendMessage call. Default: 10s.
	SendTimeout string `json:"send_timeout,omitempty"`
}

type PollerConfig struct {
	// Interval between poll cycles. Default: 10m.
	Interval string `json:"interval,omitempty"`
	// Schedule is an optional cron spec ("*/15 * * * *", "@hourly",
	// "@every 10m", "CRON_TZ=Europe/Moscow 0 9-21 * * *"). It overrides Interval.
	Schedule string `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
