package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bhasha/internal/config"
)

const userAgent = "Bhasha-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyContributionPublished(ctx context.Context, title, languageName string) error
	NotifyDeviceChanged(ctx context.Context, device string, present bool) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sendPublished: cfg.Notifications.Published,
		sendErrors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendPublished bool
	sendErrors    bool
}

func (n *ntfyService) NotifyContributionPublished(ctx context.Context, title, languageName string) error {
	if !n.sendPublished {
		return nil
	}
	title = strings.TrimSpace(title)
	languageName = strings.TrimSpace(languageName)
	if languageName == "" {
		languageName = "unknown"
	}
	data := payload{
		title:   "Bhasha - Contribution Published",
		message: fmt.Sprintf("New contribution: %s (%s)", title, languageName),
		tags:    []string{"bhasha", "contribution", "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeviceChanged(ctx context.Context, device string, present bool) error {
	state := "connected"
	priority := ""
	if !present {
		state = "disconnected"
		priority = "high"
	}
	data := payload{
		title:    "Bhasha - Capture Device",
		message:  fmt.Sprintf("Capture device %s: %s", state, strings.TrimSpace(device)),
		tags:     []string{"bhasha", "device", state},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Bhasha - Error",
		message:  builder.String(),
		tags:     []string{"bhasha", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bhasha - Test",
		message:  "Notification system test",
		tags:     []string{"bhasha", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyContributionPublished(context.Context, string, string) error { return nil }
func (noopService) NotifyDeviceChanged(context.Context, string, bool) error           { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
