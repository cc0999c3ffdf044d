package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewbot/internal/apperr"
	logx "reviewbot/pkg/logx"
)

func TestGetAPIAnswerSendsAuthAndCursor(t *testing.T) {
	var gotAuth, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"proj1","status":"approved"}],"current_date":1700000500}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL + "/api/user_api/homework_statuses/", Token: "tok"}, logx.Nop())
	payload, err := c.GetAPIAnswer(context.Background(), 1700000000)
	require.NoError(t, err)

	assert.Equal(t, "OAuth tok", gotAuth)
	assert.Equal(t, "1700000000", gotFrom)

	obj, ok := payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1700000500"), obj["current_date"])
	list := obj["homeworks"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "proj1", list[0].(map[string]any)["homework_name"])
}

func TestGetAPIAnswerKeepsExistingQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ru", r.URL.Query().Get("lang"))
		assert.Equal(t, "5", r.URL.Query().Get("from_date"))
		_, _ = w.Write([]byte(`{"homeworks":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL + "?lang=ru"}, logx.Nop()).GetAPIAnswer(context.Background(), 5)
	require.NoError(t, err)
}

func TestGetAPIAnswerNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}, logx.Nop()).GetAPIAnswer(context.Background(), 0)
	require.ErrorIs(t, err, apperr.ErrUpstreamStatus)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusServiceUnavailable, e.Code)
}

func TestGetAPIAnswerMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"homeworks": [`))
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}, logx.Nop()).GetAPIAnswer(context.Background(), 0)
	require.ErrorIs(t, err, apperr.ErrUpstreamRequest)
}

func TestGetAPIAnswerTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Config{Endpoint: url}, logx.Nop()).GetAPIAnswer(context.Background(), 0)
	require.ErrorIs(t, err, apperr.ErrUpstreamRequest)
}

func TestGetAPIAnswerTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, logx.Nop())
	_, err := c.GetAPIAnswer(context.Background(), 0)
	require.ErrorIs(t, err, apperr.ErrUpstreamRequest)

	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
}
