package collector

import (
	"context"
	"fmt"

	"RatioScope/internal/calculator"
	"RatioScope/internal/model"
)

// Plan is a sized provider request for one interval.
type Plan struct {
	Granularity model.Granularity
	Limit       int
	GroupSize   int
}

// PlanRequest sizes a primary-provider request for the lookback and interval.
// Max lookback asks for the cap directly; otherwise the scaled size is capped.
func PlanRequest(lb model.Lookback, iv model.Interval) Plan {
	g, group := iv.Base()
	plan := Plan{Granularity: g, Limit: MaxPrimaryBars, GroupSize: group}
	if lb.Max {
		return plan
	}

	days := lb.Days
	if days < 1 {
		days = 1
	}
	var scaled int
	switch iv {
	case model.Interval1H, model.Interval4H:
		scaled = days * 24
	case model.Interval1W:
		scaled = (days + 6) / 7 * 7
	default:
		scaled = days
	}
	if scaled < plan.Limit {
		plan.Limit = scaled
	}
	return plan
}

// Source routes asset requests to the provider each asset is bound to.
type Source struct {
	Primary   BarFetcher
	Secondary QuoteFetcher
}

// NewSource creates a source over a primary and a secondary fetcher.
func NewSource(primary BarFetcher, secondary QuoteFetcher) *Source {
	return &Source{Primary: primary, Secondary: secondary}
}

// FetchBars returns bars for the asset already aggregated to the interval.
func (s *Source) FetchBars(ctx context.Context, asset model.AssetRef, lb model.Lookback, iv model.Interval) ([]model.Bar, error) {
	plan := PlanRequest(lb, iv)
	raw, err := s.FetchRawBars(ctx, asset, plan)
	if err != nil {
		return nil, err
	}
	return calculator.Aggregate(raw, plan.GroupSize), nil
}

// FetchRawBars returns un-aggregated bars at the plan's granularity.
// Secondary assets are synthesized from quotes covering the same span.
func (s *Source) FetchRawBars(ctx context.Context, asset model.AssetRef, plan Plan) ([]model.Bar, error) {
	switch asset.Provider {
	case model.ProviderCryptoCompare:
		if s.Primary == nil {
			return nil, fmt.Errorf("no primary fetcher configured for %s", asset)
		}
		return s.Primary.FetchBars(ctx, asset.Symbol, plan.Granularity, plan.Limit)
	case model.ProviderCoinGecko:
		if s.Secondary == nil {
			return nil, fmt.Errorf("no secondary fetcher configured for %s", asset)
		}
		days := plan.Limit
		if plan.Granularity == model.GranularityHour {
			days = (plan.Limit + 23) / 24
		}
		quotes, err := s.Secondary.FetchQuotes(ctx, asset.Symbol, model.Days(days).Clamp(MaxSecondaryDays))
		if err != nil {
			return nil, err
		}
		return model.BarsFromQuotes(quotes), nil
	}
	return nil, fmt.Errorf("unknown provider %q for %s", asset.Provider, asset.Symbol)
}

// FetchQuotes returns close-only quotes for the asset.
// Primary assets are fetched as daily bars and projected to quotes.
func (s *Source) FetchQuotes(ctx context.Context, asset model.AssetRef, lb model.Lookback) ([]model.Quote, error) {
	switch asset.Provider {
	case model.ProviderCoinGecko:
		if s.Secondary == nil {
			return nil, fmt.Errorf("no secondary fetcher configured for %s", asset)
		}
		return s.Secondary.FetchQuotes(ctx, asset.Symbol, lb.Clamp(MaxSecondaryDays))
	case model.ProviderCryptoCompare:
		if s.Primary == nil {
			return nil, fmt.Errorf("no primary fetcher configured for %s", asset)
		}
		bars, err := s.Primary.FetchBars(ctx, asset.Symbol, model.GranularityDay, lb.Clamp(MaxPrimaryBars))
		if err != nil {
			return nil, err
		}
		return model.QuotesFromBars(bars), nil
	}
	return nil, fmt.Errorf("unknown provider %q for %s", asset.Provider, asset.Symbol)
}
