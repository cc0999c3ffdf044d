package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewbot/internal/apperr"
)

func env(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		EnvAPIToken: "api-secret",
		EnvBotToken: "123:bot",
		EnvChatID:   "-100200300",
	}
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	m := NewManager(afero.NewMemMapFs(), "", env(fullEnv()))
	cfg, s, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "api-secret", s.APIToken)
	assert.Equal(t, "123:bot", s.BotToken)
	assert.Equal(t, int64(-100200300), s.ChatID)
	assert.Equal(t, DefaultEndpoint, s.Endpoint)
	assert.Equal(t, DefaultInterval, s.Interval)
	assert.Equal(t, DefaultRequestTimeout, s.RequestTimeout)
	assert.Equal(t, DefaultSendTimeout, s.SendTimeout)
	assert.Equal(t, DefaultRatePerSec, s.RatePerSec)
	assert.Same(t, cfg, m.Get())
}

func TestMissingConfigurationIsFatal(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(map[string]string)
		missing string
	}{
		{"no api token", func(e map[string]string) { delete(e, EnvAPIToken) }, "API_TOKEN"},
		{"no bot token", func(e map[string]string) { delete(e, EnvBotToken) }, "BOT_TOKEN"},
		{"empty chat id", func(e map[string]string) { e[EnvChatID] = "" }, "CHAT_ID"},
		{"blank chat id", func(e map[string]string) { e[EnvChatID] = "   " }, "CHAT_ID"},
		{"nothing set", func(e map[string]string) {
			delete(e, EnvAPIToken)
			delete(e, EnvBotToken)
			delete(e, EnvChatID)
		}, "API_TOKEN, BOT_TOKEN, CHAT_ID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := fullEnv()
			tc.mutate(e)
			_, _, err := NewManager(afero.NewMemMapFs(), "", env(e)).Load()
			require.ErrorIs(t, err, apperr.ErrConfiguration)
			assert.False(t, apperr.IsRecoverable(err))

			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.missing, ae.Field)
		})
	}
}

func TestChatIDMustBeInteger(t *testing.T) {
	e := fullEnv()
	e[EnvChatID] = "@channel"
	_, _, err := NewManager(afero.NewMemMapFs(), "", env(e)).Load()
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "invalid configuration (CHAT_ID)")
}

func TestYAMLFileWithEnvOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/reviewbot.yaml", []byte(`
practicum:
  endpoint: http://localhost:8080/statuses
  timeout: 5s
telegram:
  chat_id: "42"
  rate_per_sec: 3
poller:
  interval: 2m
logging:
  level: debug
  console: true
`), 0o600))

	e := fullEnv()
	delete(e, EnvChatID)
	e[EnvPollInterval] = "90s"

	_, s, err := NewManager(fs, "/etc/reviewbot.yaml", env(e)).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/statuses", s.Endpoint)
	assert.Equal(t, 5*time.Second, s.RequestTimeout)
	assert.Equal(t, int64(42), s.ChatID)
	assert.Equal(t, 3, s.RatePerSec)
	assert.Equal(t, 90*time.Second, s.Interval)
	assert.Equal(t, "debug", s.Log.Level)
	assert.True(t, s.Log.Console)
}

func TestJSONFileRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cfg.json", []byte(`{"poller": {"interval": "1m", "jitter": "5s"}}`), 0o600))

	_, _, err := NewManager(fs, "cfg.json", env(fullEnv())).Load()
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "jitter")
}

func TestJSONFileRejectsTrailingData(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cfg.json", []byte(`{} {}`), 0o600))
	_, err := NewManager(fs, "cfg.json", env(fullEnv())).Parse()
	require.Error(t, err)
}

func TestInvalidInterval(t *testing.T) {
	for _, v := range []string{"soon", "-5s", "500ms"} {
		e := fullEnv()
		e[EnvPollInterval] = v
		_, _, err := NewManager(nil, "", env(e)).Load()
		require.ErrorIs(t, err, apperr.ErrConfiguration, v)
	}
}

func TestScheduleDefaultsToConstantDelay(t *testing.T) {
	e := fullEnv()
	e[EnvPollInterval] = "90s"
	_, s, err := NewManager(nil, "", env(e)).Load()
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, now.Add(90*time.Second), s.Schedule.Next(now), 0)
	assert.Empty(t, s.ScheduleSpec)
}

func TestScheduleFromCronSpec(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cfg.yaml", []byte("poller:\n  schedule: \"CRON_TZ=UTC */15 9-18 * * *\"\n"), 0o600))

	_, s, err := NewManager(fs, "cfg.yaml", env(fullEnv())).Load()
	require.NoError(t, err)
	assert.Equal(t, "CRON_TZ=UTC */15 9-18 * * *", s.ScheduleSpec)

	now := time.Date(2024, 3, 1, 12, 7, 30, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC), s.Schedule.Next(now), 0)

	late := time.Date(2024, 3, 1, 18, 50, 0, 0, time.UTC)
	assert.WithinDuration(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), s.Schedule.Next(late), 0)
}

func TestInvalidScheduleIsConfigurationError(t *testing.T) {
	e := fullEnv()
	e[EnvPollSchedule] = "every tuesday"
	_, _, err := NewManager(nil, "", env(e)).Load()
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "poller.schedule")
}

func TestSummarizeChangeNeverLogsSecrets(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Poller: PollerConfig{Interval: "10m"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "b"}, Poller: PollerConfig{Interval: "5m"}, Logging: LoggingConfig{Level: "debug"}}

	changed, fields := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"poller", "logging", "telegram"}, changed)
	assert.Len(t, fields, 4)
}

func TestWatchPublishesReloadedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reviewbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poller:\n  interval: 10m\n"), 0o600))

	m := NewManager(afero.NewOsFs(), path, env(fullEnv()))
	m.debounce = 20 * time.Millisecond
	_, _, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher a moment to register the directory.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, os.WriteFile(path, []byte("poller:\n  interval: 3m\n"), 0o600))
		select {
		case cfg := <-sub:
			assert.Equal(t, "3m", cfg.Poller.Interval)
			assert.Equal(t, "3m", m.Get().Poller.Interval)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no config published after file change")
		}
	}
}

func TestWatchWithoutFileReturnsImmediately(t *testing.T) {
	m := NewManager(afero.NewMemMapFs(), "", env(fullEnv()))
	require.NoError(t, m.Watch(context.Background()))
}

func TestWatchSkipsNonOSFileSystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/reviewbot/config.yaml", []byte("poller:\n  interval: 1m\n"), 0o600))

	m := NewManager(fs, "/etc/reviewbot/config.yaml", env(fullEnv()))
	_, _, err := m.Load()
	require.NoError(t, err)
	require.NoError(t, m.Watch(context.Background()))
}
