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

	"github.com/google/uuid"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-JPEGForensics-Signature"

// Event types.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

var defaultBackoff = []time.Duration{
	30 * time.Second,
	5 * time.Minute,
	30 * time.Minute,
}

type Event struct {
	EventType string      `json:"event_type"`
	EventID   string      `json:"event_id"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier posts signed analysis events to a single configured URL. A nil
// Notifier or one without a URL drops every event.
type Notifier struct {
	URL     string
	Secret  string
	Client  *http.Client
	Backoff []time.Duration

	wg sync.WaitGroup
}

func New(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		URL:     url,
		Secret:  secret,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Backoff: defaultBackoff,
	}
}

// Notify delivers the event in the background, retrying failed deliveries on
// the backoff schedule until it is exhausted or ctx ends.
func (n *Notifier) Notify(ctx context.Context, eventType string, data interface{}) {
	if n == nil || n.URL == "" {
		return
	}
	event := Event{
		EventType: eventType,
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("webhook marshal", "error", err)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(ctx, event, payload)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

func (n *Notifier) deliver(ctx context.Context, event Event, payload []byte) {
	for attempt := 1; ; attempt++ {
		status, err := n.post(ctx, payload)
		if err == nil {
			slog.Info("webhook delivered", "url", n.URL, "event", event.EventType, "status", status)
			return
		}
		if attempt > len(n.Backoff) {
			slog.Warn("webhook exhausted", "url", n.URL, "event", event.EventType, "attempts", attempt, "error", err)
			return
		}
		wait := n.Backoff[attempt-1]
		slog.Warn("webhook failed, will retry", "url", n.URL, "event", event.EventType,
			"attempt", attempt, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Sign returns the signature header value for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (n *Notifier) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(n.Secret, payload))

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 500))

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
