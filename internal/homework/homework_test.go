package homework

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewbot/internal/apperr"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestCheckResponseReturnsFirstElementUnchanged(t *testing.T) {
	payload := decode(t, `{
		"homeworks": [
			{"homework_name": "proj2", "status": "approved", "id": 7, "reviewer_comment": "ok"},
			{"homework_name": "proj1", "status": "rejected"}
		],
		"current_date": 1700000000
	}`)

	got, err := CheckResponse(payload)
	require.NoError(t, err)

	list := payload.(map[string]any)[FieldHomeworks].([]any)
	assert.Equal(t, list[0], got)
	assert.Equal(t, json.Number("7"), got.(map[string]any)["id"])
}

func TestCheckResponseShapeErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    error
	}{
		{"not an object", []any{}, apperr.ErrMalformedResponse},
		{"nil payload", nil, apperr.ErrMalformedResponse},
		{"missing homeworks", map[string]any{"current_date": 1}, apperr.ErrMissingField},
		{"homeworks not a list", map[string]any{"homeworks": "nope"}, apperr.ErrMalformedResponse},
		{"homeworks is an object", map[string]any{"homeworks": map[string]any{}}, apperr.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CheckResponse(tc.payload)
			require.ErrorIs(t, err, tc.want)
			_, err = CheckResponseStrict(tc.payload)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCheckResponseMissingFieldNamesField(t *testing.T) {
	_, err := CheckResponse(map[string]any{})
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, FieldHomeworks, e.Field)
}

func TestCheckResponseEmptyList(t *testing.T) {
	payload := map[string]any{"homeworks": []any{}}

	got, err := CheckResponse(payload)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = CheckResponseStrict(payload)
	require.ErrorIs(t, err, apperr.ErrEmptySubmissionList)
	assert.Nil(t, got)
}

func TestParseStatusRejectedScenario(t *testing.T) {
	payload := decode(t, `{"homeworks": [{"homework_name": "proj1", "status": "rejected"}]}`)
	rec, err := CheckResponse(payload)
	require.NoError(t, err)

	msg, err := ParseStatus(rec)
	require.NoError(t, err)
	assert.Equal(t, `Changed status of review for "proj1". Работа проверена: у ревьюера есть замечания.`, msg)
}

func TestParseStatusAllVerdicts(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusReviewing, StatusRejected} {
		verdict, ok := Verdict(s)
		require.True(t, ok)
		msg, err := ParseStatus(Record{FieldName: "hw", FieldStatus: string(s)})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(msg, verdict), msg)
	}
}

func TestParseStatusIsIdempotent(t *testing.T) {
	rec := Record{FieldName: "proj3", FieldStatus: "approved"}
	first, err := ParseStatus(rec)
	require.NoError(t, err)
	second, err := ParseStatus(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, Record{FieldName: "proj3", FieldStatus: "approved"}, rec)
}

func TestParseStatusErrors(t *testing.T) {
	cases := []struct {
		name string
		rec  any
		want error
	}{
		{"not an object", "proj1", apperr.ErrInvalidRecordType},
		{"list record", []any{1}, apperr.ErrInvalidRecordType},
		{"unknown status", Record{FieldName: "p", FieldStatus: "done"}, apperr.ErrUnknownStatus},
		{"missing status", Record{FieldName: "p"}, apperr.ErrUnknownStatus},
		{"non-string status", Record{FieldName: "p", FieldStatus: json.Number("1")}, apperr.ErrUnknownStatus},
		{"missing name", Record{FieldStatus: "approved"}, apperr.ErrMissingField},
		{"null name", Record{FieldName: nil, FieldStatus: "approved"}, apperr.ErrMissingField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseStatus(tc.rec)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, msg)
		})
	}
}

func TestStatusOfCarriesValue(t *testing.T) {
	_, err := StatusOf(Record{FieldStatus: "on_hold"})
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "on_hold", e.Value)

	s, err := StatusOf(Record{FieldStatus: "reviewing"})
	require.NoError(t, err)
	assert.Equal(t, StatusReviewing, s)
}

func TestCurrentDate(t *testing.T) {
	n, ok := CurrentDate(decode(t, `{"homeworks": [], "current_date": 1700000123}`))
	require.True(t, ok)
	assert.Equal(t, int64(1700000123), n)

	n, ok = CurrentDate(map[string]any{"current_date": float64(42)})
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = CurrentDate(map[string]any{"current_date": 4.5})
	assert.False(t, ok)
	_, ok = CurrentDate(map[string]any{"current_date": "yesterday"})
	assert.False(t, ok)
	_, ok = CurrentDate(map[string]any{})
	assert.False(t, ok)
	_, ok = CurrentDate([]any{})
	assert.False(t, ok)
}
