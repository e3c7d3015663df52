package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	mu     sync.Mutex
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"order_placed", " session_error "}, "", quietLogger())

	require.NoError(t, n.Notify(context.Background(), "order_placed", "placed", ""))
	require.NoError(t, n.Notify(context.Background(), "order_cancelled", "cancelled", ""))
	require.NoError(t, n.Notify(context.Background(), "session_error", "boom", ""))
	require.NoError(t, n.NotifyAll(context.Background(), "always", ""))

	assert.Equal(t, []string{"placed", "boom", "always"}, s.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, "prod", quietLogger())
	require.NoError(t, n.Notify(context.Background(), "anything", "hello", ""))
	assert.Equal(t, []string{"[prod] hello"}, s.titles)
	assert.True(t, n.Enabled())
	assert.False(t, NewNotifier(nil, nil, "", quietLogger()).Enabled())
}

func TestNotifyCollectsSenderErrors(t *testing.T) {
	good := &recordingSender{name: "good"}
	bad := &recordingSender{name: "bad", err: errors.New("503")}
	n := NewNotifier([]Sender{bad, good}, nil, "", quietLogger())

	err := n.Notify(context.Background(), "order_placed", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: 503")
	assert.Len(t, good.titles, 1)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "BUY 5.00 @ 0.40", "will_it_rain?"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*BUY 5.00 @ 0.40*\nwill\\_it\\_rain?", got["text"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDiscordSenderTruncates(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "t", strings.Repeat("x", 3000)))
	assert.Len(t, []rune(got["content"]), discordContentLimit)
	assert.Equal(t, "polytrade", got["username"])
}
