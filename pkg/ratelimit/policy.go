package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Config describes how politely a client talks to one upstream.
type Config struct {
	// RequestsPerSecond caps the sustained request rate. Zero disables the bucket.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// DelayRaw is a fixed pause applied before every request.
	DelayRaw string        `yaml:"delay"`
	Delay    time.Duration `yaml:"-"`
}

// Policy paces outbound calls. A nil *Policy never waits.
type Policy struct {
	limiter *rate.Limiter
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a Policy from cfg. DelayRaw must already be parsed into Delay.
func New(cfg Config) *Policy {
	p := &Policy{delay: cfg.Delay, sleep: sleepCtx}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Fixed returns a policy that only applies a fixed delay.
func Fixed(delay time.Duration) *Policy {
	return &Policy{delay: delay, sleep: sleepCtx}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Policy) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.delay > 0 {
		if err := p.sleep(ctx, p.delay); err != nil {
			return err
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}
	}
	return nil
}

// Delay reports the fixed delay applied before each call.
func (p *Policy) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
