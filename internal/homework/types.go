// Package homework validates homework-review API payloads and turns a
// submission's review status into the notification text sent to the chat.
//
// Payloads are handled as decoded JSON (map[string]any / []any) so fields the
// bot doesn't know about pass through untouched.
package homework

// Record is a single submission as returned by the review API.
type Record = map[string]any

// Payload field names.
const (
	FieldHomeworks   = "homeworks"
	FieldCurrentDate = "current_date"
	FieldName        = "homework_name"
	FieldStatus      = "status"
)

type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

// verdicts is the fixed notification text per status.
var verdicts = map[Status]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Verdict returns the verdict text for s and whether s is a recognized status.
func Verdict(s Status) (string, bool) {
	v, ok := verdicts[s]
	return v, ok
}

func (s Status) Known() bool {
	_, ok := verdicts[s]
	return ok
}
