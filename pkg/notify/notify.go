// Package notify sends a run summary to external channels when the agent loop stops.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// run statuses reported in Result.Status.
const (
	StatusSuccess     = "success"     // the run used up its iteration budget
	StatusFailure     = "failure"     // the run hit the consecutive failure threshold
	StatusInterrupted = "interrupted" // the run was stopped by the user, never notified
)

// Params holds the notification settings, filled by the config package.
type Params struct {
	Channels      []string
	OnError       bool
	OnComplete    bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Result is the summary of a finished run.
type Result struct {
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	Project    string `json:"project"`
	Branch     string `json:"branch,omitempty"`
	Phase      string `json:"phase"`
	Duration   string `json:"duration"`
	Iterations int    `json:"iterations"`
	Sessions   int    `json:"sessions"`
	Failures   int    `json:"failures"`
	Passing    int    `json:"passing"`
	Total      int    `json:"total"`
	Error      string `json:"error,omitempty"`
}

// Service delivers run summaries through the configured channels.
type Service struct {
	channels   []channel
	custom     *customChannel
	onError    bool
	onComplete bool
	timeout    time.Duration
	hostname   string
	log        logger
}

type logger interface {
	Print(format string, args ...any)
}

// New creates a Service from params. it returns nil, nil when no channels are configured;
// Send is nil-safe so callers don't need to check.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service means notifications are off
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	svc := &Service{
		onError:    p.OnError,
		onComplete: p.OnComplete,
		timeout:    10 * time.Second,
		hostname:   hostname,
		log:        log,
	}
	if p.TimeoutMs > 0 {
		svc.timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}

	for _, name := range p.Channels {
		if err := svc.addChannel(strings.ToLower(strings.TrimSpace(name)), p); err != nil {
			return nil, err
		}
	}
	if len(svc.channels) == 0 && svc.custom == nil {
		log.Print("[WARN] no notification channel could be initialized")
	}
	return svc, nil
}

func (s *Service) addChannel(name string, p Params) error {
	switch name {
	case "telegram":
		if p.TelegramToken == "" || p.TelegramChat == "" {
			return errors.New("telegram channel: notify_telegram_token and notify_telegram_chat are required")
		}
		c, err := telegramChannelMaker(p)
		if err != nil {
			// the telegram client checks the token against the API on creation, skip it when offline
			s.log.Print("[WARN] telegram channel disabled: %s", strings.ReplaceAll(err.Error(), p.TelegramToken, "[REDACTED]"))
			return nil
		}
		s.channels = append(s.channels, c)
	case "email":
		c, err := makeEmailChannel(p)
		if err != nil {
			return fmt.Errorf("email channel: %w", err)
		}
		s.channels = append(s.channels, c)
	case "slack":
		c, err := makeSlackChannel(p)
		if err != nil {
			return fmt.Errorf("slack channel: %w", err)
		}
		s.channels = append(s.channels, c)
	case "webhook":
		cs, err := makeWebhookChannels(p)
		if err != nil {
			return fmt.Errorf("webhook channel: %w", err)
		}
		s.channels = append(s.channels, cs...)
	case "custom":
		if p.CustomScript == "" {
			return errors.New("custom channel: notify_custom_script is required")
		}
		s.custom = &customChannel{script: p.CustomScript}
	default:
		return fmt.Errorf("unknown notification channel %q", name)
	}
	return nil
}

// Send delivers r to every channel. failures are logged, never returned.
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil || !s.wants(r.Status) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := s.formatMessage(r)
	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(ctx, ch.dest, text); err != nil {
			s.log.Print("[WARN] notification via %s failed: %v", ch.notifier, err)
		}
	}
	if s.custom != nil {
		if err := s.custom.send(ctx, r); err != nil {
			s.log.Print("[WARN] custom notification failed: %v", err)
		}
	}
}

func (s *Service) wants(st string) bool {
	switch st {
	case StatusSuccess:
		return s.onComplete
	case StatusFailure:
		return s.onError
	default:
		return false
	}
}

// formatMessage renders r as plain text, one field per line.
func (s *Service) formatMessage(r Result) string {
	var b strings.Builder
	verb := "finished"
	if r.Status == StatusFailure {
		verb = "stopped"
	}
	fmt.Fprintf(&b, "aidd-c %s on %s\n\n", verb, s.hostname)

	line := func(key, val string) {
		if val != "" {
			fmt.Fprintf(&b, "%-10s %s\n", key+":", val)
		}
	}
	line("project", r.Project)
	line("branch", r.Branch)
	line("reason", r.Reason)
	line("phase", r.Phase)
	line("duration", r.Duration)
	fmt.Fprintf(&b, "%-10s %d iterations, %d sessions, %d failed\n", "sessions:", r.Iterations, r.Sessions, r.Failures)
	if r.Total > 0 {
		fmt.Fprintf(&b, "%-10s %d/%d passing\n", "features:", r.Passing, r.Total)
	}
	line("error", r.Error)
	return b.String()
}
