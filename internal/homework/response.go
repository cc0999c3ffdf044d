package homework

import (
	"encoding/json"
	"fmt"
	"math"

	"reviewbot/internal/apperr"
)

// CheckResponse validates the decoded API payload and returns the most recent
// submission (the first element of "homeworks").
//
// An empty list means nothing changed since the cursor: it returns (nil, nil).
func CheckResponse(payload any) (any, error) {
	list, err := homeworks(payload)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CheckResponseStrict is CheckResponse but reports an empty list as
// EmptySubmissionList instead of "no update".
func CheckResponseStrict(payload any) (any, error) {
	list, err := homeworks(payload)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.EmptySubmissionList()
	}
	return list[0], nil
}

func homeworks(payload any) ([]any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, apperr.MalformedResponse("", fmt.Errorf("payload is %T, want object", payload))
	}
	raw, ok := obj[FieldHomeworks]
	if !ok {
		return nil, apperr.MissingField(FieldHomeworks)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, apperr.MalformedResponse(FieldHomeworks, fmt.Errorf("field is %T, want list", raw))
	}
	return list, nil
}

// CurrentDate extracts the server-side "current_date" cursor from a payload.
// It reports false when the field is absent or not an integral number.
func CurrentDate(payload any) (int64, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := obj[FieldCurrentDate].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
