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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

// DuplicateCheckOptions scopes an upload-time duplicate check. PaymentMethodID
// and the period bounds are optional; when any of them is absent the
// period-overlap lookup is skipped and only the hash is checked.
type DuplicateCheckOptions struct {
	UserID          string
	FileHash        string
	PaymentMethodID string
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
}

// CalculateFileHash returns the hex SHA-256 digest of the uploaded document's
// bytes. Filename and metadata play no part, so byte-identical re-uploads are
// caught even under a different name.
func CalculateFileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CheckForDuplicates decides whether an upload collides with already-ingested
// documents. A hash hit blocks ingestion outright; a period overlap on the
// same payment method only warns, since a corrected statement may legitimately
// restate a period.
func (m *Mintaro) CheckForDuplicates(ctx context.Context, opts DuplicateCheckOptions) (*model.DuplicateCheckResult, error) {
	if opts.UserID == "" || opts.FileHash == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "user id and file hash are required", nil)
	}

	result := &model.DuplicateCheckResult{CanProceed: true}

	hashMatches, err := m.datasource.GetDocumentsByHash(ctx, opts.UserID, opts.FileHash)
	if err != nil {
		return nil, err
	}
	for _, doc := range hashMatches {
		result.Duplicates = append(result.Duplicates, model.DuplicateMatch{
			Type:        model.DuplicateTypeFileHash,
			DocumentID:  doc.DocumentID,
			Filename:    doc.Filename,
			PeriodStart: doc.PeriodStart,
			PeriodEnd:   doc.PeriodEnd,
		})
	}
	if len(hashMatches) > 0 {
		result.HasDuplicate = true
		result.CanProceed = false
	}

	if opts.PaymentMethodID != "" && opts.PeriodStart != nil && opts.PeriodEnd != nil {
		overlapping, err := m.datasource.GetDocumentsOverlappingPeriod(ctx, opts.UserID, opts.PaymentMethodID, *opts.PeriodStart, *opts.PeriodEnd)
		if err != nil {
			return nil, err
		}
		for _, doc := range overlapping {
			if doc.FileHash == opts.FileHash {
				continue // already reported as an exact hash match
			}
			result.HasDuplicate = true
			result.Duplicates = append(result.Duplicates, model.DuplicateMatch{
				Type:        model.DuplicateTypePeriodOverlap,
				DocumentID:  doc.DocumentID,
				Filename:    doc.Filename,
				PeriodStart: doc.PeriodStart,
				PeriodEnd:   doc.PeriodEnd,
			})
		}
	}

	if result.HasDuplicate {
		logrus.WithFields(logrus.Fields{
			"duplicates":  len(result.Duplicates),
			"can_proceed": result.CanProceed,
		}).Info("duplicate check found collisions")
	}

	return result, nil
}

// GetDuplicateMessage renders a duplicate-check result for the user, or nil
// when there is nothing to say. An exact-content duplicate always takes
// priority over period-overlap messaging.
func GetDuplicateMessage(result *model.DuplicateCheckResult) *string {
	if result == nil || !result.HasDuplicate {
		return nil
	}

	var hashDup, overlapDup *model.DuplicateMatch
	for i := range result.Duplicates {
		dup := &result.Duplicates[i]
		switch dup.Type {
		case model.DuplicateTypeFileHash:
			if hashDup == nil {
				hashDup = dup
			}
		case model.DuplicateTypePeriodOverlap:
			if overlapDup == nil {
				overlapDup = dup
			}
		}
	}

	if hashDup != nil {
		return ptr.String(fmt.Sprintf("This document was already uploaded as %q. Identical statements cannot be imported twice.", hashDup.Filename))
	}
	if overlapDup != nil {
		if overlapDup.PeriodStart != nil && overlapDup.PeriodEnd != nil {
			return ptr.String(fmt.Sprintf("A statement for this payment method already covers %s to %s (%q). Importing may create duplicate transactions.",
				overlapDup.PeriodStart.Format("2006-01-02"), overlapDup.PeriodEnd.Format("2006-01-02"), overlapDup.Filename))
		}
		return ptr.String(fmt.Sprintf("A statement for this payment method already covers an overlapping period (%q). Importing may create duplicate transactions.", overlapDup.Filename))
	}
	return nil
}

// RegisterStatementDocument stores the metadata of a fresh upload after the
// duplicate gate passed, so future checks can see it.
func (m *Mintaro) RegisterStatementDocument(ctx context.Context, doc *model.StatementDocument) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	if doc.DocumentID == "" {
		doc.DocumentID = model.GenerateUUIDWithSuffix("doc")
	}
	return m.datasource.RecordStatementDocument(ctx, doc)
}
