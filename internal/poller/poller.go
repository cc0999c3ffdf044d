// Package poller runs the fetch → validate → diff → notify → sleep loop.
//
// A Poller is single-threaded: Run executes one cycle at a time and owns the
// cursor and the last reported status. Nothing here is safe for concurrent
// use, and nothing needs to be.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"reviewbot/internal/apperr"
	"reviewbot/internal/homework"
	logx "reviewbot/pkg/logx"
)

// DefaultInterval is used when neither Interval nor Schedule is usable.
const DefaultInterval = 600 * time.Second

type Config struct {
	Interval time.Duration
	// Schedule overrides Interval when set.
	Schedule cron.Schedule
}

type Poller struct {
	api API
	msg Messenger
	log logx.Logger

	sched   cron.Schedule
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	onCycle func(CycleResult)
	updates <-chan cron.Schedule

	state       State
	cursor      int64
	lastStatus  homework.Status
	lastFailure string
}

type Option func(*Poller)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSleeper replaces the interruptible sleep between cycles (tests).
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithCycleHook registers fn to run after every cycle, on the loop goroutine.
func WithCycleHook(fn func(CycleResult)) Option {
	return func(p *Poller) { p.onCycle = fn }
}

// WithScheduleUpdates makes Run pick up new schedules between cycles.
func WithScheduleUpdates(ch <-chan cron.Schedule) Option {
	return func(p *Poller) { p.updates = ch }
}

func New(cfg Config, api API, msg Messenger, log logx.Logger, opts ...Option) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Poller{
		api:   api,
		msg:   msg,
		log:   log,
		sched: cfg.Schedule,
		now:   time.Now,
		sleep: sleepCtx,
	}
	if p.sched == nil {
		every := cfg.Interval
		if every < time.Second {
			every = DefaultInterval
		}
		p.sched = cron.Every(every)
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	p.cursor = p.now().Unix()
	return p
}

func (p *Poller) Cursor() int64               { return p.cursor }
func (p *Poller) LastStatus() homework.Status { return p.lastStatus }
func (p *Poller) State() State                { return p.state }
func (p *Poller) Schedule() cron.Schedule     { return p.sched }

// Run loops until ctx is cancelled. It never returns a cycle error: every
// failure is handled inside the cycle and the loop sleeps and tries again.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started", logx.Int64("cursor", p.cursor))
	defer p.setState(StateIdle)

	for {
		p.drainUpdates()

		res := p.Cycle(ctx)
		if p.onCycle != nil {
			p.onCycle(res)
		}
		if ctx.Err() != nil {
			p.log.Info("poller stopped", logx.Int64("cursor", p.cursor))
			return nil
		}

		p.setState(StateSleeping)
		delay := p.nextDelay()
		p.log.Debug("sleeping", logx.Duration("delay", delay))
		if err := p.sleep(ctx, delay); err != nil {
			p.log.Info("poller stopped", logx.Int64("cursor", p.cursor))
			return nil
		}
	}
}

// Cycle runs exactly one poll cycle.
func (p *Poller) Cycle(ctx context.Context) CycleResult {
	start := p.now()
	res := CycleResult{ID: ulid.Make().String()}
	log := p.log.With(logx.String("cycle", res.ID))
	defer func() {
		res.Cursor = p.cursor
		res.Took = p.now().Sub(start)
	}()

	p.setState(StateFetching)
	payload, err := p.api.GetAPIAnswer(ctx, p.cursor)
	if err != nil {
		p.fail(ctx, log, &res, err)
		return res
	}

	p.setState(StateValidating)
	rec, err := homework.CheckResponse(payload)
	if err != nil {
		p.fail(ctx, log, &res, err)
		return res
	}
	if rec == nil {
		log.Debug("no new submissions", logx.Int64("from_date", p.cursor))
		res.Outcome = OutcomeNoUpdate
		p.succeed(log, payload)
		return res
	}

	p.setState(StateInterpreting)
	status, err := homework.StatusOf(rec)
	if err != nil {
		p.fail(ctx, log, &res, err)
		return res
	}
	res.Status = status
	log.Debug("status recognized", logx.String("status", string(status)))

	if status == p.lastStatus {
		log.Debug("status unchanged; nothing to send", logx.String("status", string(status)))
		res.Outcome = OutcomeUnchanged
		p.succeed(log, payload)
		return res
	}

	text, err := homework.ParseStatus(rec)
	if err != nil {
		p.fail(ctx, log, &res, err)
		return res
	}
	res.Message = text

	p.setState(StateNotifying)
	if err := p.msg.Send(ctx, text); err != nil {
		// Never escalate into a failure notice: the messenger itself is broken.
		// lastStatus and the cursor stay put so the next cycle retries.
		log.Error("status notification not delivered", logx.Err(err), logx.String("status", string(status)))
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	log.Info("status change reported",
		logx.String("from", string(p.lastStatus)),
		logx.String("to", string(status)),
	)
	p.lastStatus = status
	res.Outcome = OutcomeNotified
	p.succeed(log, payload)
	return res
}

// succeed closes a cycle that reached a decision: the failure memory is
// cleared and the cursor follows the server clock when it is provided.
func (p *Poller) succeed(log logx.Logger, payload any) {
	p.lastFailure = ""
	if next, ok := homework.CurrentDate(payload); ok && next > 0 && next != p.cursor {
		log.Debug("cursor advanced", logx.Int64("from", p.cursor), logx.Int64("to", next))
		p.cursor = next
	}
}

// fail handles a recoverable cycle error: log it and report it to the chat
// once. The same failure text is not re-sent until a cycle succeeds.
func (p *Poller) fail(ctx context.Context, log logx.Logger, res *CycleResult, err error) {
	res.Outcome = OutcomeFailed
	res.Err = err

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Debug("cycle interrupted", logx.Err(err))
		return
	}

	log.Error("cycle failed",
		logx.Err(err),
		logx.Stringer("kind", apperr.KindOf(err)),
		logx.Int64("from_date", p.cursor),
	)

	if !apperr.IsRecoverable(err) {
		return
	}

	text := FailurePrefix + err.Error()
	if text == p.lastFailure {
		log.Debug("failure already reported; not repeating")
		return
	}
	if sendErr := p.msg.Send(ctx, text); sendErr != nil {
		log.Error("failure notice not delivered", logx.Err(sendErr))
		return
	}
	p.lastFailure = text
	res.FailureReported = true
}

func (p *Poller) setState(s State) {
	if p.state == s {
		return
	}
	p.log.Trace("state", logx.Stringer("from", p.state), logx.Stringer("to", s))
	p.state = s
}

func (p *Poller) drainUpdates() {
	if p.updates == nil {
		return
	}
	for {
		select {
		case s, ok := <-p.updates:
			if !ok {
				p.updates = nil
				return
			}
			if s != nil {
				p.sched = s
				p.log.Info("poll schedule changed", logx.Time("next", s.Next(p.now())))
			}
		default:
			return
		}
	}
}

// nextDelay is the wait until the schedule's next activation. A schedule
// with no activation ahead (a cron spec that never matches) falls back to
// DefaultInterval.
func (p *Poller) nextDelay() time.Duration {
	now := p.now()
	next := p.sched.Next(now)
	if next.IsZero() || !next.After(now) {
		return DefaultInterval
	}
	return next.Sub(now)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
