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

package database

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mintaro-app/mintaro/model"
)

// GetDocumentsByHash returns the user's previously ingested documents whose
// content hash equals fileHash.
func (d Datasource) GetDocumentsByHash(ctx context.Context, userID, fileHash string) ([]*model.StatementDocument, error) {
	ctx, span := otel.Tracer("Documents").Start(ctx, "Fetching documents by hash")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, document_id, user_id, file_hash, filename,
			COALESCE(payment_method_id, ''), period_start, period_end, uploaded_at
		FROM mintaro.statement_documents
		WHERE user_id = $1 AND file_hash = $2
	`, userID, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// GetDocumentsOverlappingPeriod returns the user's documents for the given
// payment method whose stored billing period intersects [periodStart,
// periodEnd]. Two closed intervals intersect when each starts before the
// other ends.
func (d Datasource) GetDocumentsOverlappingPeriod(ctx context.Context, userID, paymentMethodID string, periodStart, periodEnd time.Time) ([]*model.StatementDocument, error) {
	ctx, span := otel.Tracer("Documents").Start(ctx, "Fetching documents overlapping period")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, document_id, user_id, file_hash, filename,
			COALESCE(payment_method_id, ''), period_start, period_end, uploaded_at
		FROM mintaro.statement_documents
		WHERE user_id = $1 AND payment_method_id = $2
			AND period_start IS NOT NULL AND period_end IS NOT NULL
			AND period_start <= $4 AND period_end >= $3
	`, userID, paymentMethodID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// RecordStatementDocument stores the metadata of a newly ingested upload.
func (d Datasource) RecordStatementDocument(ctx context.Context, doc *model.StatementDocument) error {
	ctx, span := otel.Tracer("Documents").Start(ctx, "Recording statement document")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO mintaro.statement_documents(
			document_id, user_id, file_hash, filename,
			payment_method_id, period_start, period_end, uploaded_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, doc.DocumentID, doc.UserID, doc.FileHash, doc.Filename,
		doc.PaymentMethodID, doc.PeriodStart, doc.PeriodEnd, doc.UploadedAt)

	return err
}

func scanDocuments(rows *sql.Rows) ([]*model.StatementDocument, error) {
	var docs []*model.StatementDocument
	for rows.Next() {
		doc := &model.StatementDocument{}
		err := rows.Scan(
			&doc.ID, &doc.DocumentID, &doc.UserID, &doc.FileHash, &doc.Filename,
			&doc.PaymentMethodID, &doc.PeriodStart, &doc.PeriodEnd, &doc.UploadedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
