package announce

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"stoic-trader/pkg/llm"
	"stoic-trader/pkg/ratelimit"
)

// Service composes and publishes trade announcements. Failures are logged and
// never propagate to trading.
type Service struct {
	composer  *Composer
	announcer *Announcer
}

// NewService wires a Composer and Announcer.
func NewService(composer *Composer, announcer *Announcer) *Service {
	return &Service{composer: composer, announcer: announcer}
}

// Build constructs a Service from cfg. client may be nil.
func Build(cfg *Config, client llm.ChatClient) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("announce: config is nil")
	}
	var buy, sell *llm.PromptTemplate
	if cfg.Compose.UseLLM && client != nil {
		var err error
		if buy, err = loadPrompt("buy", cfg.Compose.BuyPrompt); err != nil {
			return nil, err
		}
		if sell, err = loadPrompt("sell", cfg.Compose.SellPrompt); err != nil {
			return nil, err
		}
	} else {
		client = nil
	}
	composer, err := NewComposer(cfg.ComposerConfig(), client, buy, sell)
	if err != nil {
		return nil, err
	}
	return NewService(composer, NewAnnouncer(cfg.Senders(), ratelimit.New(cfg.Rate))), nil
}

func loadPrompt(kind, path string) (*llm.PromptTemplate, error) {
	if path == "" {
		return nil, fmt.Errorf("announce config: compose.%s_prompt is required when use_llm is set", kind)
	}
	tpl, err := llm.NewPromptTemplate(path, nil)
	if err != nil {
		return nil, fmt.Errorf("announce: load %s prompt: %w", kind, err)
	}
	return tpl, nil
}

// AnnounceBuy composes and posts a purchase.
func (s *Service) AnnounceBuy(ctx context.Context, ev BuyEvent) {
	s.post(ctx, s.composer.ComposeBuy(ctx, ev))
}

// AnnounceSell composes and posts a sale.
func (s *Service) AnnounceSell(ctx context.Context, ev SellEvent) {
	s.post(ctx, s.composer.ComposeSell(ctx, ev))
}

func (s *Service) post(ctx context.Context, text string) {
	if _, err := s.announcer.Announce(ctx, text); err != nil {
		logx.WithContext(ctx).Errorf("announce: %v", err)
	}
}
