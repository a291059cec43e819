// Package alert is the best-effort administrator notification boundary.
// Delivery failure is reported through Result, never through an error:
// alerting must not become a new point of failure for the subsystem it
// monitors.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"reportvault/internal/compliance"
	"reportvault/internal/platform/config"
)

// Result reports the outcome of an emission. Callers log it; they never
// branch their business logic on it.
type Result struct {
	Delivered bool
	Message   string
}

// Sender delivers a composed message. It mirrors the collaborator contract
// (subject, body) -> (success, message).
type Sender func(subject, body string) (bool, string)

type Dispatcher struct {
	send   Sender
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher wraps a Sender. A nil sender is allowed and downgrades every
// emission to a logged no-op, matching unconfigured SMTP.
func NewDispatcher(send Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		send: send,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Emit composes and sends an alert. It never returns an error and never
// panics; any delivery failure is captured in the Result and logged locally.
func (d *Dispatcher) Emit(ctx context.Context, subject, body string, severity compliance.Severity, details map[string]string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Delivered: false, Message: fmt.Sprintf("alert sender panicked: %v", r)}
			d.logger.ErrorContext(ctx, "alert sender panicked", "subject", subject, "panic", r)
		}
	}()

	full := d.composeBody(body, severity, details)
	decorated := fmt.Sprintf("[%s] %s", severity, subject)

	if d.send == nil {
		d.logger.WarnContext(ctx, "alert channel not configured, alert dropped",
			"subject", decorated, "severity", string(severity))
		return Result{Delivered: false, Message: "alert channel not configured"}
	}

	ok, msg := d.send(decorated, full)
	if !ok {
		d.logger.ErrorContext(ctx, "alert delivery failed",
			"subject", decorated, "reason", msg)
		return Result{Delivered: false, Message: msg}
	}

	d.logger.InfoContext(ctx, "alert delivered", "subject", decorated)
	return Result{Delivered: true, Message: msg}
}

func (d *Dispatcher) composeBody(body string, severity compliance.Severity, details map[string]string) string {
	var b strings.Builder
	b.WriteString("REPORTVAULT ALERT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Severity: %s\n", severity)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", d.now().UTC().Format(time.RFC3339))
	b.WriteString(body)
	b.WriteString("\n")

	if len(details) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, details[k])
		}
	}
	return b.String()
}

// NewSMTPSender builds a Sender over net/smtp from config. Returns nil when
// no host is configured, which NewDispatcher treats as a logged no-op
// channel.
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" || len(cfg.AdminEmails) == 0 {
		return nil
	}

	return func(subject, body string) (bool, string) {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

		var msg strings.Builder
		fmt.Fprintf(&msg, "From: %s\r\n", cfg.From)
		fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(cfg.AdminEmails, ", "))
		fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
		msg.WriteString("\r\n")
		msg.WriteString(body)

		var auth smtp.Auth
		if cfg.User != "" {
			auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		}

		if err := smtp.SendMail(addr, auth, cfg.From, cfg.AdminEmails, []byte(msg.String())); err != nil {
			return false, err.Error()
		}
		return true, fmt.Sprintf("sent to %d administrators", len(cfg.AdminEmails))
	}
}
