package announce

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"
)

// Sender is one social channel.
type Sender interface {
	// Send publishes text.
	Send(ctx context.Context, text string) error
	// Name identifies the channel in logs, e.g. "x" or "telegram".
	Name() string
}

// LogSender only logs. It backs dry runs and setups without credentials.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, text string) error {
	logx.WithContext(ctx).Infof("announce (log only): %s", text)
	return nil
}

// Name implements Sender.
func (LogSender) Name() string { return "log" }
