// Package push delivers one notification to one subscriber with bounded,
// backed-off retries. Failures are classified once, at the send boundary:
// 404/410 means the subscription is gone and must be dropped, everything
// else (including errors without a status code) is transient.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
)

// SendError is the typed failure produced by send functions. StatusCode is
// zero when the transport produced no HTTP status at all.
type SendError struct {
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push send: status %d", e.StatusCode)
	}
	return fmt.Sprintf("push send: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP-ish status from err, 0 if none.
func StatusCode(err error) int {
	var se *SendError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// SendFunc performs one delivery attempt against a subscriber endpoint.
type SendFunc func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error

// SleepFunc blocks between attempts. Tests substitute a recorder.
type SleepFunc func(ctx context.Context, d time.Duration)

// Options tunes one send call. Zero values fall back to the defaults; Send
// is required unless a default HTTP sender is acceptable.
type Options struct {
	MaxRetries int           // retries after the first attempt, default 2
	BaseDelay  time.Duration // first inter-attempt delay, default 250ms
	Send       SendFunc
	Sleep      SleepFunc
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 2
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 250 * time.Millisecond
	}
	if o.Send == nil {
		o.Send = HTTPSender(nil)
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}
	return o
}

// Result describes one delivery attempt series. It is returned, never
// persisted; the caller decides what to do with a dropped subscription or
// an exhausted budget.
type Result struct {
	Delivered              bool
	ShouldDropSubscription bool
	StatusCode             int
	Err                    error
	Attempts               int
	Retries                int
}

// Envelope is the fixed payload shape serialized once per send call.
type Envelope struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Priority   string   `json:"priority"`
	Source     string   `json:"source"`
	Timestamp  string   `json:"timestamp"`
	DeadlineID string   `json:"deadlineId,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// SendNotification attempts delivery of n to sub up to MaxRetries+1 times
// with exponential backoff between attempts. A 404/410 returns immediately
// with ShouldDropSubscription set; retrying a dead subscription is wasted
// work regardless of remaining budget. It never returns an error to the
// caller: every outcome is folded into the Result.
func SendNotification(ctx context.Context, sub *domain.PushSubscription, n *domain.Notification, opts Options) Result {
	opts = opts.withDefaults()

	// The content never changes between attempts.
	payload, err := json.Marshal(Envelope{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		Priority:   string(n.Priority),
		Source:     n.Source,
		Timestamp:  n.Timestamp.UTC().Format(time.RFC3339),
		DeadlineID: n.DeadlineID,
		Actions:    n.Actions,
		URL:        n.URL,
	})
	if err != nil {
		return Result{Err: fmt.Errorf("serialize payload: %w", err)}
	}

	maxAttempts := opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := opts.Send(ctx, sub, payload)
		if err == nil {
			return Result{
				Delivered: true,
				Attempts:  attempt,
				Retries:   attempt - 1,
			}
		}
		lastErr = err

		if code := StatusCode(err); code == http.StatusNotFound || code == http.StatusGone {
			return Result{
				ShouldDropSubscription: true,
				StatusCode:             code,
				Err:                    err,
				Attempts:               attempt,
				Retries:                attempt - 1,
			}
		}

		if attempt < maxAttempts {
			opts.Sleep(ctx, opts.BaseDelay*(1<<(attempt-1)))
		}
	}

	return Result{
		StatusCode: StatusCode(lastErr),
		Err:        lastErr,
		Attempts:   maxAttempts,
		Retries:    opts.MaxRetries,
	}
}

// HTTPSender returns a SendFunc that POSTs the payload to the subscription
// endpoint. The status-code classification happens here, once, so callers
// never sniff transport errors themselves. A nil client uses a 10s-timeout
// default.
func HTTPSender(client *http.Client) SendFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return &SendError{Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return &SendError{Err: err}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &SendError{StatusCode: resp.StatusCode}
		}
		return nil
	}
}
