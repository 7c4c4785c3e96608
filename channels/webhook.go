package channels

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/prospect/horosafe"
)

// WebhookConfig configures a generic inbound HTTP webhook.
type WebhookConfig struct {
	// Secret enables HMAC-SHA256 verification. Inbound requests must carry
	// an X-Signature-256 header with the hex HMAC of the body, optionally
	// prefixed "sha256=". Outbound callbacks are signed the same way.
	Secret string `json:"secret,omitempty" yaml:"secret"`

	// MaxBodyBytes limits the request body size. Default 1MB.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes"`

	// Buffer is the number of inbound messages queued before requests are
	// refused with 503. Default 256.
	Buffer int `json:"buffer,omitempty" yaml:"buffer"`

	// Client posts outbound replies. Default: 10s timeout client.
	Client *http.Client `json:"-" yaml:"-"`

	// URLValidator checks callback URLs. Default horosafe.ValidateURL.
	URLValidator func(string) error `json:"-" yaml:"-"`
}

func (c *WebhookConfig) defaults() {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
}

// Webhook is a Channel fed by HTTP POSTs. Mount it on a router; each
// accepted request becomes one inbound Message. Replies are POSTed as JSON
// to the message's callback_url metadata, or dropped when there is none.
type Webhook struct {
	name   string
	config WebhookConfig

	inbound chan Message
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
	status ChannelStatus
}

// NewWebhook creates a webhook channel named name.
func NewWebhook(name string, cfg WebhookConfig) *Webhook {
	cfg.defaults()
	return &Webhook{
		name:    name,
		config:  cfg,
		inbound: make(chan Message, cfg.Buffer),
		closeCh: make(chan struct{}),
		status:  ChannelStatus{Connected: true, Platform: "webhook"},
	}
}

// verifyHMAC checks the X-Signature-256 header against the body.
// Returns true if verification passes or no secret is configured.
func (c *Webhook) verifyHMAC(body []byte, signature string) bool {
	if c.config.Secret == "" {
		return true
	}
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sign(c.config.Secret, body), decoded)
}

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// ServeHTTP accepts one inbound message per POST and answers 202.
func (c *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := horosafe.LimitedReadAll(r.Body, c.config.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, horosafe.ErrResponseTooLarge) {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}

	if !c.verifyHMAC(body, r.Header.Get("X-Signature-256")) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if msg.SenderID == "" {
		http.Error(w, "sender_id is required", http.StatusBadRequest)
		return
	}

	msg.ChannelName = c.name
	msg.Platform = "webhook"
	msg.Direction = Inbound
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	select {
	case <-c.closeCh:
		http.Error(w, "channel closed", http.StatusServiceUnavailable)
		return
	default:
	}

	select {
	case c.inbound <- msg:
		c.mu.Lock()
		c.status.LastMessage = msg.Timestamp
		c.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, "buffer full", http.StatusServiceUnavailable)
	}
}

func (c *Webhook) Listen(ctx context.Context) <-chan Message {
	ch := make(chan Message)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closeCh:
				return
			case msg := <-c.inbound:
				select {
				case ch <- msg:
				case <-ctx.Done():
					return
				case <-c.closeCh:
					return
				}
			}
		}
	}()
	return ch
}

func (c *Webhook) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return &ErrSendFailed{Channel: c.name, Platform: "webhook", Cause: ErrChannelClosed}
	}

	callbackURL := msg.Metadata["callback_url"]
	if callbackURL == "" {
		return nil
	}
	if err := c.config.URLValidator(callbackURL); err != nil {
		return &ErrSendFailed{Channel: c.name, Platform: "webhook",
			Cause: fmt.Errorf("callback url: %w", err)}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return &ErrSendFailed{Channel: c.name, Platform: "webhook",
			Cause: fmt.Errorf("marshal response: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return &ErrSendFailed{Channel: c.name, Platform: "webhook",
			Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(sign(c.config.Secret, body)))
	}

	resp, err := c.config.Client.Do(req)
	if err != nil {
		c.setError(err)
		return &ErrSendFailed{Channel: c.name, Platform: "webhook",
			Cause: fmt.Errorf("callback POST: %w", err)}
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("callback returned %d", resp.StatusCode)
		c.setError(err)
		return &ErrSendFailed{Channel: c.name, Platform: "webhook", Cause: err}
	}

	c.mu.Lock()
	c.status.LastMessage = time.Now().UTC()
	c.status.Error = ""
	c.mu.Unlock()
	return nil
}

func (c *Webhook) setError(err error) {
	c.mu.Lock()
	c.status.Error = err.Error()
	c.mu.Unlock()
}

func (c *Webhook) Status() ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Webhook) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.status.Connected = false
	return nil
}
