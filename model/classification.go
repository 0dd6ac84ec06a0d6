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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EvidenceStatus is the workflow state of one piece of inbound email evidence.
// Evidence moves Ingested -> Classified -> one of the terminal states consumed
// by the matching pipeline or surfaced to a reviewer.
type EvidenceStatus string

const (
	StatusIngested          EvidenceStatus = "ingested"
	StatusClassified        EvidenceStatus = "classified"
	StatusAwaitingStatement EvidenceStatus = "awaiting_statement"
	StatusReadyToImport     EvidenceStatus = "ready_to_import"
	StatusPendingReview     EvidenceStatus = "pending_review"
	StatusSkipped           EvidenceStatus = "skipped"
)

// Classification is the coarse category assigned to email evidence.
type Classification string

const (
	ClassificationReceipt           Classification = "receipt"
	ClassificationBankTransfer      Classification = "bank_transfer"
	ClassificationOrderConfirmation Classification = "order_confirmation"
	ClassificationStatementNotice   Classification = "statement_notice"
	ClassificationUnknown           Classification = "unknown"
)

// PaymentContext is the payment-instrument hint detected in evidence.
type PaymentContext string

const (
	PaymentContextEWallet      PaymentContext = "e_wallet"
	PaymentContextCreditCard   PaymentContext = "credit_card"
	PaymentContextBankTransfer PaymentContext = "bank_transfer"
	PaymentContextUnknown      PaymentContext = "unknown"
)

// EmailEvidence is one inbound email awaiting classification.
type EmailEvidence struct {
	EvidenceID string         `json:"evidence_id"`
	UserID     string         `json:"user_id"`
	Sender     string         `json:"sender"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body"`
	Currency   string         `json:"currency,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
	Status     EvidenceStatus `json:"status"`
}

// ClassificationRule assigns a workflow status to evidence whose attributes
// pass all of the rule's filters. A nil filter slice matches anything. Rules
// are evaluated in ascending priority order; the first enabled rule whose
// filters all match wins.
type ClassificationRule struct {
	ID              string           `json:"id"`
	ParserKeys      []string         `json:"parser_keys,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	PaymentContexts []PaymentContext `json:"payment_contexts,omitempty"`
	Currencies      []string         `json:"currencies,omitempty"`
	Status          EvidenceStatus   `json:"status"`
	Priority        int              `json:"priority"`
	Enabled         bool             `json:"enabled"`
}

func (r *ClassificationRule) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// Validate checks a rule before it is admitted to the live rule set.
func (r *ClassificationRule) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Status, validation.Required, validation.In(
			StatusAwaitingStatement, StatusReadyToImport, StatusPendingReview, StatusSkipped,
		)),
		validation.Field(&r.Priority, validation.Min(0)),
	)
}

// ClassificationDecision is the full outcome of classifying one email:
// the detected parser key (empty when unrecognized), coarse classification,
// payment context, the currency carried over from the evidence (empty when
// the evidence has none), the status assigned by the rule set, and a 0-100
// confidence in the classification itself.
type ClassificationDecision struct {
	ParserKey      string         `json:"parser_key,omitempty"`
	Classification Classification `json:"classification"`
	PaymentContext PaymentContext `json:"payment_context"`
	Currency       string         `json:"currency,omitempty"`
	Status         EvidenceStatus `json:"status"`
	Confidence     float64        `json:"confidence"`
}
