package market

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Endpoint strategies.
const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round_robin"
)

// Endpoint is one trending list source.
type Endpoint struct {
	Name  string
	Path  string
	Query url.Values
}

// URL renders the endpoint against base.
func (e Endpoint) URL(base string) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(e.Path, "/")
	if len(e.Query) == 0 {
		return u
	}
	return u + "?" + e.Query.Encode()
}

// DefaultEndpoints returns the four trending lists the bot rotates over.
func DefaultEndpoints(limit int) []Endpoint {
	if limit <= 0 {
		limit = 20
	}
	trending := func(name, sortBy string) Endpoint {
		return Endpoint{
			Name: name,
			Path: "defi/token_trending",
			Query: url.Values{
				"sort_by":   {sortBy},
				"sort_type": {"asc"},
				"offset":    {"0"},
				"limit":     {strconv.Itoa(limit)},
			},
		}
	}
	return []Endpoint{
		trending("trending_rank", "rank"),
		trending("trending_volume", "volume24hUSD"),
		trending("trending_liquidity", "liquidity"),
		{
			Name: "new_listing",
			Path: "defi/v2/tokens/new_listing",
			Query: url.Values{
				"limit":                 {strconv.Itoa(limit)},
				"meme_platform_enabled": {"true"},
			},
		},
	}
}

// Selector picks the endpoint for each trending fetch.
type Selector struct {
	endpoints []Endpoint
	strategy  string

	mu   sync.Mutex
	next int
	rnd  *rand.Rand
}

// NewSelector builds a Selector. strategy is random, round_robin, or the name
// of one endpoint to always use.
func NewSelector(endpoints []Endpoint, strategy string, rnd *rand.Rand) (*Selector, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("market: no endpoints")
	}
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	if strategy == "" {
		strategy = StrategyRandom
	}
	if strategy != StrategyRandom && strategy != StrategyRoundRobin {
		if _, ok := findEndpoint(endpoints, strategy); !ok {
			return nil, fmt.Errorf("market: unknown endpoint strategy %q", strategy)
		}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Selector{endpoints: endpoints, strategy: strategy, rnd: rnd}, nil
}

// Next returns the endpoint to query.
func (s *Selector) Next() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.strategy {
	case StrategyRandom:
		return s.endpoints[s.rnd.Intn(len(s.endpoints))]
	case StrategyRoundRobin:
		ep := s.endpoints[s.next%len(s.endpoints)]
		s.next++
		return ep
	default:
		ep, _ := findEndpoint(s.endpoints, s.strategy)
		return ep
	}
}

func findEndpoint(endpoints []Endpoint, name string) (Endpoint, bool) {
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Name, name) {
			return ep, true
		}
	}
	return Endpoint{}, false
}
