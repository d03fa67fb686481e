// Package announce composes and publishes trade announcements.
package announce

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/ratelimit"
)

// Announcer fans text out to its senders and never posts the same text twice
// in a row.
type Announcer struct {
	senders []Sender
	policy  *ratelimit.Policy

	mu   sync.Mutex
	last string
}

// NewAnnouncer builds an Announcer. With no senders it logs instead.
func NewAnnouncer(senders []Sender, policy *ratelimit.Policy) *Announcer {
	if len(senders) == 0 {
		senders = []Sender{LogSender{}}
	}
	return &Announcer{senders: senders, policy: policy}
}

// Announce publishes text. posted is false when text repeats the last
// published text or every sender failed. The dedup slot is only updated when
// at least one sender succeeded, so a failed post can be retried verbatim.
func (a *Announcer) Announce(ctx context.Context, text string) (posted bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if text == a.last {
		logx.WithContext(ctx).Infof("announce: identical to last post, skipping")
		return false, nil
	}

	if err := a.policy.Wait(ctx); err != nil {
		return false, err
	}

	var errs []string
	for _, s := range a.senders {
		if sendErr := s.Send(ctx, text); sendErr != nil {
			logx.WithContext(ctx).Errorf("announce: sender %s failed: %v", s.Name(), sendErr)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), sendErr))
			continue
		}
		posted = true
	}
	if posted {
		a.last = text
	}
	if len(errs) > 0 {
		return posted, fmt.Errorf("announce: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return posted, nil
}

// Senders returns the configured channel names.
func (a *Announcer) Senders() []string {
	names := make([]string, 0, len(a.senders))
	for _, s := range a.senders {
		names = append(names, s.Name())
	}
	return names
}
