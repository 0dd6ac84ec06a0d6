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
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mintaro-app/mintaro/config"
	"github.com/mintaro-app/mintaro/database/mocks"
	"github.com/mintaro-app/mintaro/model"
)

func newTestService() *Mintaro {
	matching := config.DefaultMatchingConfig()
	return &Mintaro{
		scorer:   NewMatchScorer(nil, matching),
		matching: matching,
	}
}

func ledgerTxn(id, vendor string, amount float64, date time.Time) *model.LedgerTransaction {
	return &model.LedgerTransaction{
		TransactionID: id,
		UserID:        "user_1",
		Amount:        amount,
		Currency:      "USD",
		OccurredAt:    date,
		Vendor:        vendor,
		Direction:     model.DirectionExpense,
	}
}

func candidateTxn(id, vendor string, amount float64, date time.Time) *model.CandidateTransaction {
	return &model.CandidateTransaction{
		CandidateID: id,
		Amount:      amount,
		Currency:    "USD",
		OccurredAt:  date,
		Vendor:      vendor,
		Direction:   model.DirectionExpense,
	}
}

func TestFindBestFieldMatches(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_amount", "WALMART", 50.00, base.AddDate(0, 0, -3)),
		ledgerTxn("txn_date", "TARGET", 200.00, base),
		ledgerTxn("txn_vendor", "AMAZON", 500.00, base.AddDate(0, 0, -3)),
	}
	source := candidateTxn("cand_1", "AMAZON MARKETPLACE", 50.00, base)

	best, score := service.FindBestAmountMatch(source, pool)
	require.NotNil(t, best)
	assert.Equal(t, "txn_amount", best.TransactionID)
	assert.Equal(t, 100.0, score)

	best, score = service.FindBestDateMatch(source, pool)
	require.NotNil(t, best)
	assert.Equal(t, "txn_date", best.TransactionID)
	assert.Equal(t, 100.0, score)

	best, score = service.FindBestVendorMatch(source, pool)
	require.NotNil(t, best)
	assert.Equal(t, "txn_vendor", best.TransactionID)
	assert.GreaterOrEqual(t, score, containmentScore)
}

func TestFindBestFieldMatchesEmptyPool(t *testing.T) {
	service := newTestService()
	source := candidateTxn("cand_1", "AMAZON", 50.00, time.Now())

	best, score := service.FindBestAmountMatch(source, nil)
	assert.Nil(t, best)
	assert.Equal(t, 0.0, score)
}

func TestRankMatchesDescendingOrder(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_far", "WALMART", 120.00, base.AddDate(0, 0, -3)),
		ledgerTxn("txn_exact", "AMAZON", 50.00, base),
		ledgerTxn("txn_close", "AMAZON", 51.00, base.AddDate(0, 0, -1)),
	}
	source := candidateTxn("cand_1", "AMAZON", 50.00, base)

	set, err := service.RankMatches(context.Background(), source, pool)
	require.NoError(t, err)
	require.Len(t, set.Matches, 3)

	assert.Equal(t, "txn_exact", set.Matches[0].LedgerTransactionID)
	for i := 1; i < len(set.Matches); i++ {
		assert.GreaterOrEqual(t, set.Matches[i-1].Score, set.Matches[i].Score)
	}
	best := set.Best()
	require.NotNil(t, best)
	assert.Equal(t, "txn_exact", best.LedgerTransactionID)
}

func TestFindBestMatchTieBreaksOnDate(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	// identical amount and vendor, only the date distance differs
	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_two_days", "AMAZON", 50.00, base.AddDate(0, 0, -2)),
		ledgerTxn("txn_same_day", "AMAZON", 50.00, base),
	}
	source := candidateTxn("cand_1", "AMAZON", 50.00, base)

	best, err := service.FindBestMatch(context.Background(), source, pool)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "txn_same_day", best.LedgerTransactionID)
}

func TestRankMatchesBatchAtMostOneClaim(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	// both candidates want txn_1; the better-scoring one must get it even
	// though the weaker candidate comes first in the slice
	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_1", "AMAZON", 50.00, base),
	}
	sources := []*model.CandidateTransaction{
		candidateTxn("cand_weak", "AMAZON", 52.00, base.AddDate(0, 0, -2)),
		candidateTxn("cand_strong", "AMAZON", 50.00, base),
	}

	sets, summary, err := service.RankMatchesBatch(context.Background(), sources, pool)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	assert.Empty(t, sets[0].Matches, "weaker candidate must not steal the claimed transaction")
	require.NotNil(t, sets[1].Best())
	assert.Equal(t, "txn_1", sets[1].Best().LedgerTransactionID)

	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
}

func TestRankMatchesBatchDisjointClaims(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_coffee", "STARBUCKS", 6.50, base),
		ledgerTxn("txn_books", "AMAZON", 42.00, base.AddDate(0, 0, 1)),
	}
	sources := []*model.CandidateTransaction{
		candidateTxn("cand_books", "AMAZON", 42.00, base.AddDate(0, 0, 1)),
		candidateTxn("cand_coffee", "STARBUCKS", 6.50, base),
	}

	sets, summary, err := service.RankMatchesBatch(context.Background(), sources, pool)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)

	require.NotNil(t, sets[0].Best())
	assert.Equal(t, "txn_books", sets[0].Best().LedgerTransactionID)
	require.NotNil(t, sets[1].Best())
	assert.Equal(t, "txn_coffee", sets[1].Best().LedgerTransactionID)
}

func TestRankMatchesBatchClaimFloor(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	// different vendor, amount far outside tolerance, date outside window
	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_1", "WALMART", 500.00, base.AddDate(0, 0, -20)),
	}
	sources := []*model.CandidateTransaction{
		candidateTxn("cand_1", "STARBUCKS", 6.50, base),
	}

	sets, summary, err := service.RankMatchesBatch(context.Background(), sources, pool)
	require.NoError(t, err)
	assert.Empty(t, sets[0].Matches, "a pair below the claim floor must not claim")
	assert.Equal(t, 1, summary.Unmatched)
}

func TestRankMatchesBatchRejectsInvalidInput(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	sources := []*model.CandidateTransaction{
		candidateTxn("cand_1", "AMAZON", -50.00, base),
	}
	_, _, err := service.RankMatchesBatch(context.Background(), sources, nil)
	require.Error(t, err)
}

func TestCanAutoApprove(t *testing.T) {
	high := &model.MatchResult{Score: 95, Confidence: model.ConfidenceHigh}
	medium := &model.MatchResult{Score: 70, Confidence: model.ConfidenceMedium}

	assert.True(t, CanAutoApprove(high, nil, 5))
	assert.True(t, CanAutoApprove(high, []float64{60, 80}, 5))
	assert.False(t, CanAutoApprove(high, []float64{93}, 5), "near-tied rival blocks auto-approval")
	assert.False(t, CanAutoApprove(medium, nil, 5), "medium confidence never auto-approves")
	assert.False(t, CanAutoApprove(nil, nil, 5))
}

func TestRankMatchesAutoApprovableRequiresMargin(t *testing.T) {
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	// two near-identical ledger entries: ambiguity must block auto-approval
	pool := []*model.LedgerTransaction{
		ledgerTxn("txn_a", "AMAZON", 50.00, base),
		ledgerTxn("txn_b", "AMAZON", 50.25, base),
	}
	source := candidateTxn("cand_1", "AMAZON", 50.00, base)

	set, err := service.RankMatches(context.Background(), source, pool)
	require.NoError(t, err)
	require.NotNil(t, set.Best())
	assert.False(t, set.AutoApprovable)

	// with the rival gone, the same match auto-approves
	set, err = service.RankMatches(context.Background(), source, pool[:1])
	require.NoError(t, err)
	assert.True(t, set.AutoApprovable)
}

func TestRankMatchesBatchBulkClaimsAreUnique(t *testing.T) {
	gofakeit.Seed(42)
	service := newTestService()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	var pool []*model.LedgerTransaction
	var sources []*model.CandidateTransaction
	for i := 0; i < 40; i++ {
		vendor := gofakeit.Company()
		amount := gofakeit.Price(5, 500)
		date := base.AddDate(0, 0, gofakeit.Number(0, 20))
		pool = append(pool, ledgerTxn(fmt.Sprintf("txn_%d", i), vendor, amount, date))
		// candidates mirror the ledger with small perturbations
		sources = append(sources, candidateTxn(fmt.Sprintf("cand_%d", i), vendor, amount, date.AddDate(0, 0, gofakeit.Number(0, 1))))
	}

	sets, summary, err := service.RankMatchesBatch(context.Background(), sources, pool)
	require.NoError(t, err)
	assert.Equal(t, 40, summary.Sources)
	assert.Equal(t, summary.Sources, summary.Matched+summary.Unmatched)

	claimed := make(map[string]string)
	for _, set := range sets {
		best := set.Best()
		if best == nil {
			continue
		}
		owner, taken := claimed[best.LedgerTransactionID]
		assert.False(t, taken, "transaction %s claimed by both %s and %s", best.LedgerTransactionID, owner, set.CandidateID)
		claimed[best.LedgerTransactionID] = set.CandidateID
	}
}

func TestRecordConfirmedMatch(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	mockDS.On("RecordMatchReference", mock.Anything, "user_1", "txn_1", "evidence_1").Return(nil)

	require.NoError(t, service.RecordConfirmedMatch(context.Background(), "user_1", "txn_1", "evidence_1", false))
	mockDS.AssertExpectations(t)
}

func TestRecordConfirmedMatchDryRun(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	require.NoError(t, service.RecordConfirmedMatch(context.Background(), "user_1", "txn_1", "evidence_1", true))
	mockDS.AssertNotCalled(t, "RecordMatchReference")
}
