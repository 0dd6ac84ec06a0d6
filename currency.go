/*
Copyright 2024 Mintaro Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mintaro

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mintaro-app/mintaro/config"
	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/internal/cache"
)

// ErrRateUnavailable is returned by an ExchangeRateOracle when no rate exists
// for the requested pair and date. Callers must treat it as "cannot
// normalize", never as "rate is 1".
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ExchangeRateOracle is the external source of exchange rates. Rate
// acquisition itself is outside this core.
type ExchangeRateOracle interface {
	GetRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// CurrencyConverter normalizes amounts across currencies for comparison.
// Rates are memoized per (pair, day) and transient oracle failures are
// retried with bounded exponential backoff.
type CurrencyConverter struct {
	oracle   ExchangeRateOracle
	cache    cache.Cache
	matching config.MatchingConfig
}

func NewCurrencyConverter(oracle ExchangeRateOracle, rateCache cache.Cache, matching config.MatchingConfig) *CurrencyConverter {
	return &CurrencyConverter{
		oracle:   oracle,
		cache:    rateCache,
		matching: matching,
	}
}

const rateCacheTTL = 24 * time.Hour

// GetExchangeRate returns the rate converting one unit of from into to as of
// the given date. Failure to obtain a rate surfaces as DEPENDENCY_UNAVAILABLE.
func (c *CurrencyConverter) GetExchangeRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if c.oracle == nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrDependencyUnavailable,
			fmt.Sprintf("no exchange-rate oracle configured, cannot convert %s to %s", from, to), nil)
	}

	key := fmt.Sprintf("rate:%s:%s:%s", from, to, asOf.Format("2006-01-02"))
	if c.cache != nil {
		var cached float64
		if err := c.cache.Get(ctx, key, &cached); err == nil && cached != 0 {
			return decimal.NewFromFloat(cached), nil
		}
	}

	var rate decimal.Decimal
	operation := func() error {
		var err error
		rate, err = c.oracle.GetRate(ctx, from, to, asOf)
		if errors.Is(err, ErrRateUnavailable) {
			// No point retrying a rate that does not exist.
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrDependencyUnavailable,
			fmt.Sprintf("exchange rate %s/%s as of %s could not be obtained", from, to, asOf.Format("2006-01-02")), err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, rate.InexactFloat64(), rateCacheTTL); err != nil {
			logrus.Warnf("failed to cache exchange rate %s: %v", key, err)
		}
	}

	return rate, nil
}

// ConvertAmount converts amount from one currency into another at the given
// rate, rounding only to the target currency's minor-unit precision.
func (c *CurrencyConverter) ConvertAmount(amount float64, from, to string, rate decimal.Decimal) float64 {
	if from == to {
		return amount
	}
	converted := decimal.NewFromFloat(amount).Mul(rate)
	return converted.Round(minorUnits(to)).InexactFloat64()
}

// IsWithinConversionTolerance reports whether a converted-amount percent
// difference falls inside the amount tolerance band. Exposed separately so
// batch pre-filtering can skip full scoring for obviously-mismatched pairs.
func (c *CurrencyConverter) IsWithinConversionTolerance(convertedDiffPercent float64) bool {
	return convertedDiffPercent < c.matching.AmountZeroCreditPercent
}

// minorUnits returns the ISO 4217 minor-unit exponent for a currency.
func minorUnits(currency string) int32 {
	switch currency {
	case "JPY", "KRW", "VND", "CLP", "ISK":
		return 0
	case "BHD", "KWD", "OMR", "TND":
		return 3
	default:
		return 2
	}
}
