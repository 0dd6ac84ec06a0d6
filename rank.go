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
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

// scoredPair is one (source, pool-member) scoring outcome, carrying the
// tie-break fields alongside the result.
type scoredPair struct {
	sourceIdx int
	poolIdx   int
	result    model.MatchResult
	daysDiff  int
}

// FindBestAmountMatch returns the pool member whose amount is closest to the
// source's, with its amount sub-score. Diagnostics only; it ignores currency.
func (m *Mintaro) FindBestAmountMatch(source *model.CandidateTransaction, pool []*model.LedgerTransaction) (*model.LedgerTransaction, float64) {
	var best *model.LedgerTransaction
	bestScore := -1.0
	for _, txn := range pool {
		score := m.scorer.CompareAmounts(txn.Amount, source.Amount)
		if score > bestScore {
			best, bestScore = txn, score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

// FindBestDateMatch returns the pool member whose date is nearest the
// source's, with its date sub-score.
func (m *Mintaro) FindBestDateMatch(source *model.CandidateTransaction, pool []*model.LedgerTransaction) (*model.LedgerTransaction, float64) {
	var best *model.LedgerTransaction
	bestScore := -1.0
	for _, txn := range pool {
		score := m.scorer.CompareDates(txn.OccurredAt, source.OccurredAt)
		if score > bestScore {
			best, bestScore = txn, score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

// FindBestVendorMatch returns the pool member whose vendor name is most
// similar to the source's, with its vendor sub-score.
func (m *Mintaro) FindBestVendorMatch(source *model.CandidateTransaction, pool []*model.LedgerTransaction) (*model.LedgerTransaction, float64) {
	var best *model.LedgerTransaction
	bestScore := -1.0
	for _, txn := range pool {
		score := m.scorer.CompareVendors(txn.Vendor, source.Vendor)
		if score > bestScore {
			best, bestScore = txn, score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

// FindBestMatch scores the source against every pool member and returns the
// single highest-scoring result. Ties prefer the smaller date difference, then
// the higher vendor sub-score. Returns nil on an empty pool.
func (m *Mintaro) FindBestMatch(ctx context.Context, source *model.CandidateTransaction, pool []*model.LedgerTransaction) (*model.MatchResult, error) {
	set, err := m.RankMatches(ctx, source, pool)
	if err != nil {
		return nil, err
	}
	return set.Best(), nil
}

// RankMatches scores the source against every pool member and returns the full
// descending-score list, for presenting alternatives to a reviewer.
func (m *Mintaro) RankMatches(ctx context.Context, source *model.CandidateTransaction, pool []*model.LedgerTransaction) (*model.RankedMatchSet, error) {
	pairs := make([]scoredPair, 0, len(pool))
	for i, txn := range pool {
		result, err := m.scorer.CalculateMatchScore(ctx, txn, source)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, scoredPair{
			sourceIdx: 0,
			poolIdx:   i,
			result:    *result,
			daysDiff:  DaysDifference(txn.OccurredAt, source.OccurredAt),
		})
	}
	sortPairs(pairs)

	set := &model.RankedMatchSet{CandidateID: source.CandidateID}
	for _, p := range pairs {
		set.Matches = append(set.Matches, p.result)
	}
	if best := set.Best(); best != nil {
		rivals := make([]float64, 0, len(set.Matches)-1)
		for _, match := range set.Matches[1:] {
			rivals = append(rivals, match.Score)
		}
		set.AutoApprovable = CanAutoApprove(best, rivals, m.matching.AutoApproveMargin)
	}
	return set, nil
}

// RankMatchesBatch scores every (source, pool-member) pair and assigns matches
// greedily in descending global score order, so that a ledger transaction is
// claimed by the candidate that matches it best, never merely first. A claimed
// transaction leaves the pool for every other source; sources that claim
// nothing come back with an empty set.
func (m *Mintaro) RankMatchesBatch(ctx context.Context, sources []*model.CandidateTransaction, pool []*model.LedgerTransaction) ([]model.RankedMatchSet, model.BatchMatchSummary, error) {
	ctx, span := otel.Tracer("mintaro.reconciliation").Start(ctx, "RankMatchesBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.sources", len(sources)),
		attribute.Int("batch.pool", len(pool)),
	)

	summary := model.BatchMatchSummary{Sources: len(sources)}

	for _, source := range sources {
		if err := source.Validate(); err != nil {
			return nil, summary, apierror.NewAPIError(apierror.ErrValidation, "invalid candidate transaction", err.Error())
		}
	}
	for _, txn := range pool {
		if err := txn.Validate(); err != nil {
			return nil, summary, apierror.NewAPIError(apierror.ErrValidation, "invalid ledger transaction", err.Error())
		}
	}

	pairs, err := m.scoreAllPairs(ctx, sources, pool)
	if err != nil {
		return nil, summary, err
	}
	sortPairs(pairs)

	// Greedy assignment walks the globally-sorted list sequentially; the claim
	// set is single-threaded on purpose.
	claimedPool := make(map[int]int, len(pool))      // poolIdx -> sourceIdx
	claimedSource := make(map[int]int, len(sources)) // sourceIdx -> poolIdx
	for _, p := range pairs {
		if p.result.Score < m.matching.ClaimFloor {
			break
		}
		if _, taken := claimedPool[p.poolIdx]; taken {
			continue
		}
		if _, assigned := claimedSource[p.sourceIdx]; assigned {
			continue
		}
		claimedPool[p.poolIdx] = p.sourceIdx
		claimedSource[p.sourceIdx] = p.poolIdx
	}

	sets := make([]model.RankedMatchSet, len(sources))
	for i, source := range sources {
		sets[i] = model.RankedMatchSet{CandidateID: source.CandidateID}
	}
	for _, p := range pairs {
		owner, claimed := claimedPool[p.poolIdx]
		if claimed && owner != p.sourceIdx {
			continue // claimed by a different source, out of this one's pool
		}
		if _, assigned := claimedSource[p.sourceIdx]; !assigned {
			continue // unmatched sources exit with an empty set
		}
		sets[p.sourceIdx].Matches = append(sets[p.sourceIdx].Matches, p.result)
	}

	for i := range sets {
		best := sets[i].Best()
		if best == nil {
			summary.Unmatched++
			continue
		}
		summary.Matched++
		sets[i].AutoApprovable = CanAutoApprove(best, rivalScores(pairs, claimedSource[i], i), m.matching.AutoApproveMargin)
	}

	logrus.WithFields(logrus.Fields{
		"sources":   summary.Sources,
		"matched":   summary.Matched,
		"unmatched": summary.Unmatched,
	}).Info("batch ranking complete")

	return sets, summary, nil
}

// scoreAllPairs fans the cross product out over a bounded worker pool. The
// bound also caps concurrent exchange-rate lookups.
func (m *Mintaro) scoreAllPairs(ctx context.Context, sources []*model.CandidateTransaction, pool []*model.LedgerTransaction) ([]scoredPair, error) {
	type job struct {
		sourceIdx int
		poolIdx   int
	}

	jobs := make(chan job, len(sources)*len(pool))
	results := make(chan scoredPair, len(sources)*len(pool))
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	workers := m.matching.BatchWorkers
	if workers <= 0 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				txn, source := pool[j.poolIdx], sources[j.sourceIdx]
				result, err := m.scorer.CalculateMatchScore(ctx, txn, source)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
				results <- scoredPair{
					sourceIdx: j.sourceIdx,
					poolIdx:   j.poolIdx,
					result:    *result,
					daysDiff:  DaysDifference(txn.OccurredAt, source.OccurredAt),
				}
			}
		}()
	}

	for s := range sources {
		for p := range pool {
			jobs <- job{sourceIdx: s, poolIdx: p}
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	pairs := make([]scoredPair, 0, len(sources)*len(pool))
	for p := range results {
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// sortPairs orders by descending score, breaking ties on the smaller date
// difference, then the higher vendor sub-score.
func sortPairs(pairs []scoredPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].result.Score != pairs[j].result.Score {
			return pairs[i].result.Score > pairs[j].result.Score
		}
		if pairs[i].daysDiff != pairs[j].daysDiff {
			return pairs[i].daysDiff < pairs[j].daysDiff
		}
		return pairs[i].result.Breakdown[model.BreakdownVendor] > pairs[j].result.Breakdown[model.BreakdownVendor]
	})
}

// rivalScores collects the scores other sources put on the given pool member.
func rivalScores(pairs []scoredPair, poolIdx, sourceIdx int) []float64 {
	var rivals []float64
	for _, p := range pairs {
		if p.poolIdx == poolIdx && p.sourceIdx != sourceIdx {
			rivals = append(rivals, p.result.Score)
		}
	}
	return rivals
}

// CanAutoApprove reports whether a best match may be posted without review:
// the confidence tier must be high and no competing score may sit within the
// margin. Ambiguity is a result, not an error.
func CanAutoApprove(best *model.MatchResult, competingScores []float64, margin float64) bool {
	if best == nil || best.Confidence != model.ConfidenceHigh {
		return false
	}
	for _, score := range competingScores {
		if math.Abs(best.Score-score) < margin {
			return false
		}
	}
	return true
}

// RecordConfirmedMatch persists the evidence back-reference for a confirmed
// match. With dryRun set, the decision is logged and nothing is written.
func (m *Mintaro) RecordConfirmedMatch(ctx context.Context, userID, transactionID, evidenceID string, dryRun bool) error {
	if dryRun {
		logrus.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"evidence_id":    evidenceID,
		}).Info("dry run, skipping match write")
		return nil
	}
	return m.datasource.RecordMatchReference(ctx, userID, transactionID, evidenceID)
}
