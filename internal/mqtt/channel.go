package mqtt

import (
	"context"

	"github.com/sweeney/source-watcher/internal/logic"
)

// AlertChannel adapts a Publisher to the notify.Channel interface.
type AlertChannel struct {
	pub Publisher
}

// NewAlertChannel wraps pub.
func NewAlertChannel(pub Publisher) *AlertChannel {
	return &AlertChannel{pub: pub}
}

// Name returns "mqtt".
func (c *AlertChannel) Name() string { return "mqtt" }

// Notify publishes the alert on TopicAlerts.
func (c *AlertChannel) Notify(ctx context.Context, alert logic.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.pub.PublishAlert(alert)
}
