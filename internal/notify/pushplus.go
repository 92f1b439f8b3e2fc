package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
)

// DefaultPushPlusEndpoint is the public PushPlus send API.
const DefaultPushPlusEndpoint = "https://www.pushplus.plus/send"

// ErrNoTokens is returned for a unit without any non-empty push token.
var ErrNoTokens = errors.New("unit has no push tokens")

// PushPlus posts alerts to every push token configured on the unit.
type PushPlus struct {
	endpoint string
	client   *http.Client
}

// NewPushPlus creates a PushPlus notifier. An empty endpoint selects the
// public API.
func NewPushPlus(endpoint string, timeout time.Duration) *PushPlus {
	if endpoint == "" {
		endpoint = DefaultPushPlusEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushPlus{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *PushPlus) Name() string { return "pushplus" }

// Send posts msg once per non-empty token. Failures for individual tokens are
// joined into the returned error; remaining tokens are still tried.
func (p *PushPlus) Send(ctx context.Context, unit models.Unit, msg Message) error {
	var errs []error
	sent := 0
	for _, token := range unit.PushTokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		sent++
		if err := p.post(ctx, token, msg); err != nil {
			errs = append(errs, fmt.Errorf("token %s: %w", maskToken(token), err))
		}
	}
	if sent == 0 {
		return ErrNoTokens
	}
	return errors.Join(errs...)
}

type pushPlusPayload struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (p *PushPlus) post(ctx context.Context, token string, msg Message) error {
	body, err := json.Marshal(pushPlusPayload{
		Token:    token,
		Title:    msg.Title,
		Content:  msg.Body,
		Template: "markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal pushplus payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pushplus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushplus message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushplus returned status %d", resp.StatusCode)
	}

	// PushPlus reports token and quota problems in the body with HTTP 200.
	var reply pushPlusResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &reply); err == nil && reply.Code != http.StatusOK {
		return fmt.Errorf("pushplus returned code %d: %s", reply.Code, reply.Msg)
	}
	return nil
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
