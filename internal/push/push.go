// Package push delivers encrypted Web Push messages to one endpoint and
// classifies transport failures so the caller can self-heal dead
// endpoints and retry transient ones.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"

	"famplan/internal/model"
	logx "famplan/pkg/logx"
)

// Outcome classifies one send attempt.
type Outcome int

const (
	// OutcomeDelivered means the push service accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeGone means the endpoint no longer exists (HTTP 404/410);
	// the subscription should be removed and never retried.
	OutcomeGone
	// OutcomeTransient covers every other failure; safe to retry on the
	// next sweep since nothing was recorded.
	OutcomeTransient
	// OutcomeUnconfigured means the VAPID key pair is missing; no network
	// I/O was attempted.
	OutcomeUnconfigured
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeGone:
		return "gone"
	case OutcomeTransient:
		return "transient"
	case OutcomeUnconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

var ErrUnconfigured = errors.New("push: VAPID keys not configured")

// Config carries the application-level Web Push credentials.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string // mailto: or https: contact for the push service
	TTLSeconds      int
	RatePerSec      int
}

// Payload is the notification body sent to the service worker.
type Payload struct {
	Title   string    `json:"title"`
	Body    string    `json:"body,omitempty"`
	Tag     string    `json:"tag,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	StartAt time.Time `json:"start_at,omitempty"`
}

// Transport sends Web Push messages. Configuration is explicit and
// process-scoped: construct once, pass it to whoever sends.
type Transport struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTransport(cfg Config, log logx.Logger) *Transport {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 300
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Transport{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log.With(logx.String("comp", "push")),
	}
}

// Configured reports whether the transport has a usable VAPID key pair.
func (t *Transport) Configured() bool {
	return strings.TrimSpace(t.cfg.VAPIDPublicKey) != "" &&
		strings.TrimSpace(t.cfg.VAPIDPrivateKey) != ""
}

// VAPIDPublicKey exposes the application public key so clients can
// subscribe with it.
func (t *Transport) VAPIDPublicKey() string { return t.cfg.VAPIDPublicKey }

// Send pushes one payload to one subscription.
//
// The returned Outcome is authoritative; err carries detail for logging.
// On OutcomeGone the caller owns the cleanup (deleting the subscription).
func (t *Transport) Send(ctx context.Context, sub model.Subscription, p Payload) (Outcome, error) {
	if !t.Configured() {
		return OutcomeUnconfigured, ErrUnconfigured
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return OutcomeTransient, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return OutcomeTransient, fmt.Errorf("push: marshaling payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.cfg.Subject,
		TTL:             t.cfg.TTLSeconds,
		VAPIDPublicKey:  t.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: t.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		return OutcomeTransient, fmt.Errorf("push: send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return classifyStatus(resp.StatusCode)
}

// classifyStatus maps a push-service HTTP status to an Outcome.
func classifyStatus(code int) (Outcome, error) {
	switch {
	case code >= 200 && code < 300:
		return OutcomeDelivered, nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return OutcomeGone, fmt.Errorf("push: endpoint gone (status %d)", code)
	default:
		return OutcomeTransient, fmt.Errorf("push: unexpected status %d", code)
	}
}
