package notifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"reviewbot/internal/apperr"
	kit "reviewbot/internal/transport"
	logx "reviewbot/pkg/logx"
)

var ErrEmptyMessage = errors.New("notifier: empty message")

type Config struct {
	Target kit.ChatTarget
	// Timeout is the deadline on the context handed to the sender. The
	// Telegram adapter honours it only while waiting on its rate limiter;
	// the Bot API call itself is bounded by telegram.Config.SendTimeout.
	// Zero means 10s.
	Timeout time.Duration
}

type Notifier struct {
	cfg    Config
	sender kit.Sender
	log    logx.Logger
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{cfg: cfg, sender: sender, log: log}
}

// Send delivers text to the configured chat. Exactly one logical message is
// sent per successful call (long texts may be split by the transport).
func (n *Notifier) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Delivery(ErrEmptyMessage)
	}
	if n.sender == nil {
		return apperr.Delivery(errors.New("notifier: no sender configured"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	callCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	start := time.Now()
	ref, err := n.sender.SendText(callCtx, n.cfg.Target, text, &kit.SendOptions{DisablePreview: true})
	if err != nil {
		return apperr.Delivery(err)
	}
	n.log.Debug("message delivered",
		logx.Int64("chat_id", ref.ChatID),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}
