package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"reviewbot/internal/apperr"
	"reviewbot/internal/config"
	"reviewbot/internal/notifier"
	"reviewbot/internal/poller"
	"reviewbot/internal/practicum"
	"reviewbot/internal/runtime/supervisor"
	kit "reviewbot/internal/transport"
	"reviewbot/internal/transport/telegram"
	logx "reviewbot/pkg/logx"
)

// Options are the process inputs. Zero values select production behaviour.
type Options struct {
	ConfigPath string
	Fs         afero.Fs
	Lookup     config.LookupFunc

	// Sender replaces the Telegram adapter.
	Sender kit.Sender
	// API replaces the Practicum client.
	API poller.API
	// Notify replaces daemon.SdNotify.
	Notify func(state string) (bool, error)

	PollerOptions []poller.Option
	StopTimeout   time.Duration
}

type App struct {
	cfgm     *config.Manager
	settings config.Settings

	log  logx.Logger
	logs *logx.Service

	poller    *poller.Poller
	schedules chan cron.Schedule
	notify    func(state string) (bool, error)

	stopTimeout time.Duration
}

// New loads configuration and builds every component. A missing or invalid
// setting is reported as an apperr Configuration error before anything runs.
func New(opts Options) (*App, error) {
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.Notify == nil {
		opts.Notify = func(state string) (bool, error) { return daemon.SdNotify(false, state) }
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}

	cfgm := config.NewManager(opts.Fs, opts.ConfigPath, opts.Lookup)
	_, st, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(st.Log)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sender := opts.Sender
	if sender == nil {
		ad, err := telegram.New(telegram.Config{
			Token:       st.BotToken,
			SendTimeout: st.SendTimeout,
			RatePerSec:  st.RatePerSec,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = logSvc.Close()
			return nil, &apperr.Error{Kind: apperr.KindConfiguration, Field: config.EnvBotToken, Err: err}
		}
		sender = ad
	}

	notif := notifier.New(notifier.Config{
		Target:  kit.ChatTarget{ChatID: st.ChatID},
		Timeout: st.SendTimeout,
	}, sender, log.With(logx.String("comp", "notifier")))

	api := opts.API
	if api == nil {
		api = practicum.New(practicum.Config{
			Endpoint: st.Endpoint,
			Token:    st.APIToken,
			Timeout:  st.RequestTimeout,
		}, log.With(logx.String("comp", "practicum")))
	}

	a := &App{
		cfgm:        cfgm,
		settings:    st,
		log:         log.With(logx.String("comp", "app")),
		logs:        logSvc,
		schedules:   make(chan cron.Schedule, 1),
		notify:      opts.Notify,
		stopTimeout: opts.StopTimeout,
	}

	popts := append([]poller.Option{
		poller.WithScheduleUpdates(a.schedules),
		poller.WithCycleHook(a.afterCycle),
	}, opts.PollerOptions...)
	a.poller = poller.New(poller.Config{Interval: st.Interval, Schedule: st.Schedule}, api, notif,
		log.With(logx.String("comp", "poller")), popts...)

	return a, nil
}

func (a *App) Settings() config.Settings { return a.settings }

// Run blocks until ctx is cancelled or a supervised goroutine fails.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	sub := a.cfgm.Subscribe(4)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	sup.Go0("config.watch", func(c context.Context) {
		if err := a.cfgm.Watch(c); err != nil {
			a.log.Warn("config hot reload disabled", logx.Err(err), logx.String("config", a.cfgm.Path()))
		}
	})
	sup.Go("poller", a.poller.Run)
	if every := a.watchdogInterval(); every > 0 {
		sup.Go0("watchdog", func(c context.Context) { a.watchdog(c, every) })
	}

	a.sdNotify(daemon.SdNotifyReady)
	a.log.Info("started",
		logx.Int64("chat_id", a.settings.ChatID),
		logx.String("endpoint", a.settings.Endpoint),
		logx.Duration("interval", a.settings.Interval),
		logx.String("schedule", a.settings.ScheduleSpec),
		logx.String("config", a.cfgm.Path()),
	)

	<-sup.Context().Done()
	a.log.Info("stopping")
	a.sdNotify(daemon.SdNotifyStopping)

	waitCtx, cancel := context.WithTimeout(context.Background(), a.stopTimeout)
	defer cancel()
	err := sup.Stop(waitCtx)
	if err != nil {
		a.log.Error("stopped with error", logx.Err(err))
	} else {
		a.log.Info("stopped")
	}
	_ = a.logs.Close()
	return err
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.apply(last, cfg)
			last = cfg
		}
	}
}

// apply pushes the hot-reloadable parts of cfg to running components.
// Credentials, endpoint and Telegram settings are bound at startup.
func (a *App) apply(prev, cfg *config.Config) {
	st, err := config.Resolve(cfg)
	if err != nil {
		a.log.Warn("reloaded config rejected", logx.Err(err))
		return
	}
	sections, _ := config.SummarizeChange(prev, cfg)

	a.logs.Apply(st.Log)

	select {
	case <-a.schedules:
	default:
	}
	a.schedules <- st.Schedule

	var pinned []string
	for _, s := range sections {
		if s == "practicum" || s == "telegram" {
			pinned = append(pinned, s)
		}
	}
	if len(pinned) > 0 {
		a.log.Warn("restart required for changes to take effect", logx.String("sections", strings.Join(pinned, ",")))
	}
}

func (a *App) afterCycle(res poller.CycleResult) {
	status := fmt.Sprintf("STATUS=last cycle %s", res.Outcome)
	if res.Status != "" {
		status += fmt.Sprintf(", review %s", res.Status)
	}
	a.sdNotify(status)
}

func (a *App) watchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("watchdog settings ignored", logx.Err(err))
		return 0
	}
	return d / 2
}

func (a *App) watchdog(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}

func (a *App) sdNotify(state string) {
	sent, err := a.notify(state)
	if err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Trace("sd_notify", logx.String("state", state))
	}
}
