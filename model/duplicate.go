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

import "time"

// DuplicateType distinguishes the two kinds of duplicate a statement upload
// can collide with.
type DuplicateType string

const (
	// DuplicateTypeFileHash means a byte-identical document was previously
	// ingested. Ingestion must be blocked.
	DuplicateTypeFileHash DuplicateType = "file_hash"
	// DuplicateTypePeriodOverlap means a different document already covers an
	// overlapping billing period for the same payment method. Ingestion may
	// proceed, but the user is warned.
	DuplicateTypePeriodOverlap DuplicateType = "period_overlap"
)

// StatementDocument is the stored metadata of a previously ingested upload,
// as read back from the document store.
type StatementDocument struct {
	ID              int64      `json:"-"`
	DocumentID      string     `json:"document_id"`
	UserID          string     `json:"user_id"`
	FileHash        string     `json:"file_hash"`
	Filename        string     `json:"filename"`
	PaymentMethodID string     `json:"payment_method_id,omitempty"`
	PeriodStart     *time.Time `json:"period_start,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
}

// DuplicateMatch describes one collision with an already-ingested document.
type DuplicateMatch struct {
	Type        DuplicateType `json:"type"`
	DocumentID  string        `json:"document_id"`
	Filename    string        `json:"filename"`
	PeriodStart *time.Time    `json:"period_start,omitempty"`
	PeriodEnd   *time.Time    `json:"period_end,omitempty"`
}

// DuplicateCheckResult is the decision gate computed once per upload attempt.
// It is never persisted as its own entity.
type DuplicateCheckResult struct {
	HasDuplicate bool             `json:"has_duplicate"`
	Duplicates   []DuplicateMatch `json:"duplicates"`
	CanProceed   bool             `json:"can_proceed"`
}
