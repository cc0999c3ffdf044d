package poller

import (
	"context"
	"time"

	"reviewbot/internal/homework"
)

// API fetches the raw review payload for submissions changed since fromDate.
type API interface {
	GetAPIAnswer(ctx context.Context, fromDate int64) (any, error)
}

// Messenger delivers one chat message.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

type State int

const (
	StateIdle State = iota
	StateFetching
	StateValidating
	StateInterpreting
	StateNotifying
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateValidating:
		return "validating"
	case StateInterpreting:
		return "interpreting"
	case StateNotifying:
		return "notifying"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

type Outcome int

const (
	// OutcomeNoUpdate: the API returned no submissions since the cursor.
	OutcomeNoUpdate Outcome = iota
	// OutcomeUnchanged: the latest submission still has the last reported status.
	OutcomeUnchanged
	// OutcomeNotified: a new status was delivered to the chat.
	OutcomeNotified
	// OutcomeFailed: the cycle aborted; Err says why.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoUpdate:
		return "no_update"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeNotified:
		return "notified"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleResult describes one poll cycle.
type CycleResult struct {
	ID      string
	Outcome Outcome
	Status  homework.Status
	Message string
	Err     error
	// FailureReported is set when a failure notice reached the chat.
	FailureReported bool
	Cursor          int64
	Took            time.Duration
}

// FailurePrefix starts every failure notice sent to the chat. A notice
// identical to the last one reported is not sent again until a cycle
// succeeds, so a persistent outage produces one message.
const FailurePrefix = "Сбой в работе программы: "
