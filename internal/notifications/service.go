package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/session"
	"rollcall/internal/submit"
)

const userAgent = "rollcall/0.1.0"

// Event enumerates notification kinds.
type Event string

const (
	EventScanMarked   Event = "scan_marked"
	EventScanRejected Event = "scan_rejected"
	EventScanFailed   Event = "scan_failed"
	EventTest         Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		marked:   cfg.Notifications.Marked,
		rejected: cfg.Notifications.Rejected,
		window:   time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		sent:     make(map[string]time.Time),
		now:      time.Now,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	marked   bool
	rejected bool
	window   time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	if n.duplicate(event, payload) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	student := payloadString(payload, "student")
	text := payloadString(payload, "message")
	switch event {
	case EventScanMarked:
		if !n.marked {
			return message{}, false
		}
		return message{
			title: "Rollcall - Marked",
			body:  fmt.Sprintf("✅ %s: %s", fallback(student, "unknown student"), fallback(text, "Marked")),
			tags:  []string{"rollcall", "scan", "marked"},
		}, true
	case EventScanRejected:
		if !n.rejected {
			return message{}, false
		}
		return message{
			title: "Rollcall - Scan Rejected",
			body:  fmt.Sprintf("⚠️ Scan rejected: %s", fallback(text, submit.DefaultRejectMessage)),
			tags:  []string{"rollcall", "scan", "rejected"},
		}, true
	case EventScanFailed:
		if !n.rejected {
			return message{}, false
		}
		return message{
			title:    "Rollcall - Endpoint Unreachable",
			body:     fmt.Sprintf("❌ %s", fallback(payloadString(payload, "error"), submit.NetworkErrorMessage)),
			tags:     []string{"rollcall", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Rollcall - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"rollcall", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

// duplicate reports whether the same event and payload went out inside the
// dedup window, recording the send otherwise.
func (n *ntfyService) duplicate(event Event, payload Payload) bool {
	if n.window <= 0 || event == EventTest {
		return false
	}
	key := string(event) + "\x00" + payloadString(payload, "payload")
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, at := range n.sent {
		if now.Sub(at) >= n.window {
			delete(n.sent, k)
		}
	}
	if _, seen := n.sent[key]; seen {
		return true
	}
	n.sent[key] = now
	return false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Observer forwards completed scans to svc. Publish failures are logged.
func Observer(svc Service, logger *slog.Logger) session.Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	return session.ObserverFunc(func(ctx context.Context, scan session.Scan) {
		event, payload, ok := eventFor(scan)
		if !ok {
			return
		}
		if err := svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "notification failed", "notification_failed",
				logging.Error(err),
				logging.String("event", string(event)),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	})
}

func eventFor(scan session.Scan) (Event, Payload, bool) {
	out := scan.Outcome
	payload := Payload{
		"payload": scan.Payload,
		"student": out.Student,
		"message": out.Message,
	}
	switch out.Kind {
	case submit.KindMarked:
		return EventScanMarked, payload, true
	case submit.KindRejected:
		return EventScanRejected, payload, true
	case submit.KindTransportFailure:
		if out.Err != nil {
			payload["error"] = out.Err.Error()
		}
		return EventScanFailed, payload, true
	default:
		return "", nil, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
