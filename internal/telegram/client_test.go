package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI answers getMe and sendMessage like the Bot API. sendMessage
// fails for the first failures calls.
type fakeBotAPI struct {
	mu       sync.Mutex
	failures int
	sent     []map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"elecwatch","username":"elecwatch_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
			return
		}
		f.sent = append(f.sent, map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		})
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1767225600,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeBotAPI, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	c, err := NewClientWithEndpoint("123:abc", "42", retries, time.Millisecond,
		server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)
	return c
}

var testUnit = models.Unit{ID: "a", Name: "Room 101"}

func TestSend(t *testing.T) {
	fake := &fakeBotAPI{}
	c := newTestClient(t, fake, 3)

	err := c.Send(context.Background(), testUnit, notify.Message{
		Title: "Electricity alert: Room 101",
		Lines: []string{"Low balance: 5.00 kWh left (threshold 10.00 kWh)"},
	})
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0]["chat_id"])
	assert.Equal(t, "MarkdownV2", fake.sent[0]["parse_mode"])
	assert.Contains(t, fake.sent[0]["text"], "5\\.00 kWh left \\(threshold 10\\.00 kWh\\)")
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	fake := &fakeBotAPI{failures: 2}
	c := newTestClient(t, fake, 3)

	require.NoError(t, c.Send(context.Background(), testUnit, notify.Message{Title: "t"}))
	assert.Len(t, fake.sent, 1)
}

func TestSend_GivesUp(t *testing.T) {
	fake := &fakeBotAPI{failures: 5}
	c := newTestClient(t, fake, 2)

	err := c.Send(context.Background(), testUnit, notify.Message{Title: "t"})
	assert.Error(t, err)
	assert.Empty(t, fake.sent)
}

func TestNewClient_InvalidChatID(t *testing.T) {
	_, err := NewClientWithEndpoint("123:abc", "not-a-number", 1, time.Millisecond, "http://127.0.0.1:1/bot%s/%s", http.DefaultClient)
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(testUnit, notify.Message{
		Title: "Alert: A-1 (north)",
		Lines: []string{"about 9.5 h left", "rate 1.5 kWh/h!"},
	})

	assert.Contains(t, msg, "*Alert: A\\-1 \\(north\\)*")
	assert.Contains(t, msg, "about 9\\.5 h left\n")
	assert.Contains(t, msg, "rate 1\\.5 kWh/h\\!")

	// Title falls back to the unit name.
	assert.Contains(t, formatMessage(testUnit, notify.Message{}), "*Room 101*")
}
