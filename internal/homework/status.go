package homework

import (
	"fmt"

	"reviewbot/internal/apperr"
)

// ParseStatus builds the chat message for a submission:
//
//	Changed status of review for "<name>". <verdict>
//
// It has no side effects; the same record always yields the same result.
func ParseStatus(rec any) (string, error) {
	obj, ok := rec.(map[string]any)
	if !ok {
		return "", apperr.InvalidRecordType(rec)
	}

	status, err := StatusOf(obj)
	if err != nil {
		return "", err
	}

	rawName, ok := obj[FieldName]
	if !ok || rawName == nil {
		return "", apperr.MissingField(FieldName)
	}
	name, ok := rawName.(string)
	if !ok {
		name = fmt.Sprint(rawName)
	}

	verdict, _ := Verdict(status)
	return fmt.Sprintf(`Changed status of review for "%s". %s`, name, verdict), nil
}

// StatusOf returns the recognized review status of a record.
func StatusOf(rec any) (Status, error) {
	obj, ok := rec.(map[string]any)
	if !ok {
		return "", apperr.InvalidRecordType(rec)
	}
	raw, _ := obj[FieldStatus].(string)
	s := Status(raw)
	if !s.Known() {
		if raw == "" && obj[FieldStatus] != nil {
			raw = fmt.Sprint(obj[FieldStatus])
		}
		return "", apperr.UnknownStatus(raw)
	}
	return s, nil
}
