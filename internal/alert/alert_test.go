package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reportvault/internal/compliance"
	"reportvault/internal/platform/config"
)

func TestDispatcher_Emit(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers through the sender", func(t *testing.T) {
		var gotSubject, gotBody string
		d := NewDispatcher(func(subject, body string) (bool, string) {
			gotSubject, gotBody = subject, body
			return true, "ok"
		}, WithClock(func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }))

		res := d.Emit(ctx, "Disk Failing", "archive volume degraded", compliance.SeverityCritical,
			map[string]string{"report_id": "RPT-1"})

		assert.True(t, res.Delivered)
		assert.Equal(t, "[CRITICAL] Disk Failing", gotSubject)
		assert.Contains(t, gotBody, "archive volume degraded")
		assert.Contains(t, gotBody, "report_id: RPT-1")
		assert.Contains(t, gotBody, "2026-01-15T00:00:00Z")
	})

	t.Run("delivery failure is captured, not raised", func(t *testing.T) {
		d := NewDispatcher(func(subject, body string) (bool, string) {
			return false, "smtp refused"
		})

		res := d.Emit(ctx, "x", "y", compliance.SeverityWarning, nil)
		assert.False(t, res.Delivered)
		assert.Equal(t, "smtp refused", res.Message)
	})

	t.Run("sender panic is swallowed", func(t *testing.T) {
		d := NewDispatcher(func(subject, body string) (bool, string) {
			panic("boom")
		})

		res := d.Emit(ctx, "x", "y", compliance.SeverityCritical, nil)
		assert.False(t, res.Delivered)
		assert.Contains(t, res.Message, "boom")
	})

	t.Run("nil sender is a logged no-op", func(t *testing.T) {
		d := NewDispatcher(nil)

		res := d.Emit(ctx, "x", "y", compliance.SeverityInfo, nil)
		assert.False(t, res.Delivered)
		assert.Equal(t, "alert channel not configured", res.Message)
	})
}

func TestNewSMTPSender_Unconfigured(t *testing.T) {
	assert.Nil(t, NewSMTPSender(config.SMTPConfig{}))
	assert.Nil(t, NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com"}),
		"no recipients means no channel")
}
