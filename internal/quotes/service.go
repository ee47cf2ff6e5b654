package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
)

type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type RateSource interface {
	Rate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

// Service caches lookups from both providers and collapses concurrent
// requests for the same key into one call.
type Service struct {
	prices  PriceSource
	rates   RateSource
	cache   cache.Cache[decimal.Decimal]
	group   singleflight.Group
	limiter *Limiter
}

func NewService(prices PriceSource, rates RateSource, size int, ttl time.Duration) *Service {
	return &Service{
		prices: prices,
		rates:  rates,
		cache:  cache.NewLRUCache[decimal.Decimal](size, ttl),
	}
}

// WithLimiter caps provider requests. Cache hits are not counted.
func (s *Service) WithLimiter(l *Limiter) *Service {
	s.limiter = l
	return s
}

func (s *Service) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	code, ok := normalize(supportedStocks, symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, symbol)
	}
	return s.lookup(ctx, "stock", "stock:"+code, func() (decimal.Decimal, error) {
		return s.prices.LatestPrice(ctx, code)
	})
}

func (s *Service) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	b, ok := normalize(supportedCurrencies, base)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, base)
	}
	t, ok := normalize(supportedCurrencies, target)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, target)
	}
	return s.lookup(ctx, "fx", "fx:"+b+"/"+t, func() (decimal.Decimal, error) {
		return s.rates.Rate(ctx, b, t)
	})
}

// RateResult is one target of a Rates call. Err is set when that lookup
// failed; the others are unaffected.
type RateResult struct {
	Target string
	Rate   decimal.Decimal
	Err    error
}

// Rates looks up base against every target concurrently and returns results
// in target order.
func (s *Service) Rates(ctx context.Context, base string, targets []string) []RateResult {
	results := make([]RateResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, target := range targets {
		g.Go(func() error {
			rate, err := s.Rate(gctx, base, target)
			results[i] = RateResult{Target: strings.ToUpper(strings.TrimSpace(target)), Rate: rate, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) lookup(ctx context.Context, provider, key string, fetch func() (decimal.Decimal, error)) (decimal.Decimal, error) {
	if v, ok := s.cache.Get(key); ok {
		slog.DebugContext(ctx, "Quote cache hit", "key", key)
		return v, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if s.limiter != nil && !s.limiter.Allow(provider) {
			return decimal.Zero, fmt.Errorf("%w: %s request limit reached, try again in a minute", ErrUnavailable, provider)
		}
		v, err := fetch()
		if err != nil {
			return decimal.Zero, err
		}
		s.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Quote lookup failed", "key", key, "error", err)
		return decimal.Zero, err
	}
	slog.DebugContext(ctx, "Quote fetched", "key", key, "shared", shared)
	return v.(decimal.Decimal), nil
}
