// Package webhook publishes session events to operator-configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
)

const signatureHeader = "X-Taskforge-Signature"

// Endpoint is one webhook subscriber.
type Endpoint struct {
	Name   string `mapstructure:"name" yaml:"name"`
	URL    string `mapstructure:"url" yaml:"url"`
	Secret string `mapstructure:"secret" yaml:"secret"`
	// Events restricts delivery to these event types. Empty means all.
	Events      []string      `mapstructure:"events" yaml:"events"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

func (ep Endpoint) accepts(eventType string) bool {
	if len(ep.Events) == 0 {
		return true
	}
	for _, e := range ep.Events {
		if e == eventType || e == events.Wildcard {
			return true
		}
	}
	return false
}

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	EventType string            `json:"event_type"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      *events.BaseEvent `json:"data"`
}

// Notifier delivers events to endpoints in the background. Deliveries that
// exhaust their attempts go to the dead letter store.
type Notifier struct {
	endpoints  []Endpoint
	client     *http.Client
	deadLetter *DeadLetterStore
	logger     *slog.Logger
	inflight   sync.WaitGroup
}

func NewNotifier(endpoints []Endpoint, deadLetter *DeadLetterStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Handle fans the event out to every matching endpoint. It never fails the
// operation that raised the event.
func (n *Notifier) Handle(ctx context.Context, event events.DomainEvent) error {
	env := event.Envelope()
	body, err := json.Marshal(Payload{
		EventType: env.Type,
		SessionID: env.SessionID,
		Timestamp: env.Timestamp,
		Data:      env,
	})
	if err != nil {
		n.logger.Warn("encode webhook payload", "event_type", env.Type, "error", err)
		return nil
	}

	// deliveries outlive the operation that raised the event
	deliverCtx := context.WithoutCancel(ctx)
	for _, ep := range n.endpoints {
		if !ep.accepts(env.Type) {
			continue
		}
		n.inflight.Add(1)
		go func(ep Endpoint) {
			defer n.inflight.Done()
			n.deliver(deliverCtx, ep, env.Type, body)
		}(ep)
	}
	return nil
}

func (n *Notifier) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:       "WebhookNotifier",
		Handler:    n.Handle,
		EventTypes: []string{events.Wildcard},
	}
}

// Wait blocks until every started delivery has finished or been dead-lettered.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ep Endpoint, eventType string, body []byte) {
	attempts := ep.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := ep.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	r := retry.New[int](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (int, error) {
		return n.send(ctx, ep, body)
	})
	if err == nil {
		return
	}

	n.logger.Warn("webhook delivery failed", "webhook", ep.Name, "event_type", eventType, "error", err)
	if n.deadLetter == nil {
		return
	}
	dl := DeadLetter{
		Timestamp:   time.Now().UTC(),
		WebhookName: ep.Name,
		URL:         ep.URL,
		EventType:   eventType,
		Payload:     string(body),
		Error:       err.Error(),
		Attempts:    attempts,
	}
	if err := n.deadLetter.Append(dl); err != nil {
		n.logger.Error("dead letter append failed", "webhook", ep.Name, "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, ep Endpoint, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Taskforge-Webhook/1.0")
	if ep.Secret != "" {
		req.Header.Set(signatureHeader, Sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the HMAC-SHA256 signature receivers use to authenticate a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
