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
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mintaro-app/mintaro/config"
	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

// Sub-scores degrade to this midpoint when a field cannot be compared at all
// (missing vendor, unobtainable exchange rate). A usable score always comes
// back; only malformed input is rejected.
const neutralSubScore = 50.0

// Currency sub-score levels: identical currencies, successfully converted, and
// not normalizable.
const (
	currencyScoreSame        = 100.0
	currencyScoreConverted   = 50.0
	currencyScoreUnavailable = 0.0
)

// MatchScorer combines field sub-scores into one weighted 0-100 confidence
// score for a (ledger, candidate) pair. Scoring independent pairs concurrently
// is safe: the scorer holds no mutable state and the converter memoizes
// through its own cache.
type MatchScorer struct {
	converter *CurrencyConverter
	matching  config.MatchingConfig
}

func NewMatchScorer(converter *CurrencyConverter, matching config.MatchingConfig) *MatchScorer {
	return &MatchScorer{
		converter: converter,
		matching:  matching,
	}
}

// PercentDifference returns how far apart two magnitudes are, as a percent of
// the larger one. Zero when both are zero.
func PercentDifference(a, b float64) float64 {
	absA, absB := math.Abs(a), math.Abs(b)
	larger := math.Max(absA, absB)
	if larger == 0 {
		return 0
	}
	return (larger - math.Min(absA, absB)) / larger * 100
}

// DaysDifference returns the absolute difference between two dates in whole
// calendar days, ignoring time of day.
func DaysDifference(a, b time.Time) int {
	dayA := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	dayB := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(dayA.Sub(dayB).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// CompareAmounts maps a percent difference onto a 0-100 sub-score: full credit
// inside the tight band, zero credit past the wide band, linear in between.
func (s *MatchScorer) CompareAmounts(a, b float64) float64 {
	return s.amountScoreFromDiff(PercentDifference(a, b))
}

func (s *MatchScorer) amountScoreFromDiff(diffPercent float64) float64 {
	full, zero := s.matching.AmountFullCreditPercent, s.matching.AmountZeroCreditPercent
	switch {
	case diffPercent <= full:
		return 100
	case diffPercent >= zero:
		return 0
	default:
		return (zero - diffPercent) / (zero - full) * 100
	}
}

// CompareDates maps a day difference onto a 0-100 sub-score, decaying linearly
// to zero at the configured window.
func (s *MatchScorer) CompareDates(a, b time.Time) float64 {
	days := DaysDifference(a, b)
	window := s.matching.DateWindowDays
	if days >= window {
		return 0
	}
	return (1 - float64(days)/float64(window)) * 100
}

// CompareVendors scores two vendor names after normalization. A missing name
// on either side degrades to the neutral midpoint rather than erroring.
func (s *MatchScorer) CompareVendors(a, b string) float64 {
	normA, normB := NormalizeVendor(a), NormalizeVendor(b)
	if normA == "" || normB == "" {
		return neutralSubScore
	}
	return CalculateSimilarity(normA, normB)
}

// CalculateMatchScore scores one (ledger, candidate) pair. Deterministic given
// its inputs and the active tolerance configuration; the only external call is
// the exchange-rate lookup for cross-currency pairs.
//
// When the rate cannot be obtained the pair is not rejected: the amount
// sub-score degrades to the neutral midpoint and the currency sub-score drops
// to zero, which caps the pair at medium confidence but keeps it visible for
// manual review.
func (s *MatchScorer) CalculateMatchScore(ctx context.Context, ledger *model.LedgerTransaction, candidate *model.CandidateTransaction) (*model.MatchResult, error) {
	if err := ledger.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "invalid ledger transaction", err.Error())
	}
	if err := candidate.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "invalid candidate transaction", err.Error())
	}

	amountScore, currencyScore := s.scoreAmount(ctx, ledger, candidate)
	dateScore := s.CompareDates(ledger.OccurredAt, candidate.OccurredAt)
	vendorScore := s.CompareVendors(ledger.Vendor, candidate.Vendor)

	total := amountScore*s.matching.AmountWeight +
		dateScore*s.matching.DateWeight +
		vendorScore*s.matching.VendorWeight +
		currencyScore*s.matching.CurrencyWeight
	total = math.Min(100, math.Max(0, total))

	return &model.MatchResult{
		LedgerTransactionID: ledger.TransactionID,
		CandidateID:         candidate.CandidateID,
		Score:               total,
		Confidence:          model.ConfidenceFromScore(total),
		Breakdown: map[string]float64{
			model.BreakdownAmount:   amountScore,
			model.BreakdownDate:     dateScore,
			model.BreakdownVendor:   vendorScore,
			model.BreakdownCurrency: currencyScore,
		},
	}, nil
}

// scoreAmount compares amounts in the ledger transaction's currency,
// converting the candidate first when the currencies differ.
func (s *MatchScorer) scoreAmount(ctx context.Context, ledger *model.LedgerTransaction, candidate *model.CandidateTransaction) (amountScore, currencyScore float64) {
	if ledger.Currency == candidate.Currency {
		return s.CompareAmounts(ledger.Amount, candidate.Amount), currencyScoreSame
	}

	if s.converter == nil {
		return neutralSubScore, currencyScoreUnavailable
	}

	rate, err := s.converter.GetExchangeRate(ctx, candidate.Currency, ledger.Currency, candidate.OccurredAt)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"from": candidate.Currency,
			"to":   ledger.Currency,
		}).Warn("exchange rate unavailable, degrading amount sub-score")
		return neutralSubScore, currencyScoreUnavailable
	}

	converted := s.converter.ConvertAmount(candidate.Amount, candidate.Currency, ledger.Currency, rate)
	return s.CompareAmounts(ledger.Amount, converted), currencyScoreConverted
}
