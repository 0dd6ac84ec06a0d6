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

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Direction indicates whether a transaction moves money out of or into the
// user's accounts.
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// LedgerTransaction is an existing, already-recorded financial event owned by
// the ledger store. It is immutable once matched, except for EvidenceID which
// records a back-reference to the evidence that confirmed it.
type LedgerTransaction struct {
	ID            int64     `json:"-"`
	TransactionID string    `json:"id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
	Vendor        string    `json:"vendor"`
	Description   string    `json:"description"`
	Direction     Direction `json:"direction"`
	EvidenceID    string    `json:"evidence_id,omitempty"`
}

// Provenance tags a candidate with where it came from, so a reviewer can trace
// any extracted transaction back to the source document and line.
type Provenance struct {
	DocumentID string `json:"document_id"`
	Line       int    `json:"line"`
	Offset     int    `json:"offset,omitempty"`
}

// CandidateTransaction is an unconfirmed transaction extracted from a
// statement document or email, awaiting reconciliation against the ledger.
// Candidates are consumed, never mutated, by the match scorer.
type CandidateTransaction struct {
	CandidateID string     `json:"candidate_id"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	OccurredAt  time.Time  `json:"occurred_at"`
	Vendor      string     `json:"vendor"`
	Description string     `json:"description"`
	Direction   Direction  `json:"direction"`
	Provenance  Provenance `json:"provenance"`
	RawText     string     `json:"raw_text,omitempty"`
}

func (t *LedgerTransaction) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

func (c *CandidateTransaction) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// positiveFiniteAmount rejects zero, negative, NaN and infinite amounts before
// any scoring work is done.
func positiveFiniteAmount(value interface{}) error {
	amount, ok := value.(float64)
	if !ok {
		return errors.New("amount must be a number")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.New("amount must be a finite number")
	}
	if amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

// Validate checks that a ledger transaction is well formed enough to score.
func (t *LedgerTransaction) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.TransactionID, validation.Required),
		validation.Field(&t.Amount, validation.By(positiveFiniteAmount)),
		validation.Field(&t.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&t.OccurredAt, validation.Required),
		validation.Field(&t.Direction, validation.In(DirectionExpense, DirectionIncome)),
	)
}

// Validate checks that a candidate is well formed enough to score.
func (c *CandidateTransaction) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Amount, validation.By(positiveFiniteAmount)),
		validation.Field(&c.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&c.OccurredAt, validation.Required),
		validation.Field(&c.Direction, validation.In(DirectionExpense, DirectionIncome)),
	)
}
