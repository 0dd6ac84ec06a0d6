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

package model

// ConfidenceLevel is the coarse bucket derived from a numeric match score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Confidence tier thresholds. A score at or above HighConfidenceThreshold is
// high, at or above MediumConfidenceThreshold is medium, anything below is low.
const (
	HighConfidenceThreshold   = 90.0
	MediumConfidenceThreshold = 55.0
)

// Sub-score keys in a MatchResult breakdown.
const (
	BreakdownAmount   = "amount"
	BreakdownDate     = "date"
	BreakdownVendor   = "vendor"
	BreakdownCurrency = "currency"
)

// ConfidenceFromScore maps a 0-100 match score onto a confidence level.
func ConfidenceFromScore(score float64) ConfidenceLevel {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceHigh
	case score >= MediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchResult is the outcome of scoring one (ledger, candidate) pair.
// It is ephemeral: computed on demand and never persisted verbatim.
type MatchResult struct {
	LedgerTransactionID string             `json:"ledger_transaction_id"`
	CandidateID         string             `json:"candidate_id"`
	Score               float64            `json:"score"`
	Confidence          ConfidenceLevel    `json:"confidence"`
	Breakdown           map[string]float64 `json:"breakdown"`
}

// RankedMatchSet holds, for one candidate, the match results ordered by
// descending score, plus whether the best match clears the auto-approval gate.
type RankedMatchSet struct {
	CandidateID    string        `json:"candidate_id"`
	Matches        []MatchResult `json:"matches"`
	AutoApprovable bool          `json:"auto_approvable"`
}

// Best returns the highest-scoring match in the set, or nil when the set is
// empty (the candidate went unmatched).
func (r *RankedMatchSet) Best() *MatchResult {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// BatchMatchSummary reports the totals of one batch ranking run.
type BatchMatchSummary struct {
	Sources   int `json:"sources"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}
