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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintaro-app/mintaro/model"
)

func newTestDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Datasource{Conn: db}, mock
}

func TestGetDocumentsByHash(t *testing.T) {
	ds, mock := newTestDatasource(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "user_id", "file_hash", "filename",
		"payment_method_id", "period_start", "period_end", "uploaded_at",
	}).AddRow(int64(1), "doc_1", "user_1", "abc123", "january.pdf", "pm_1", nil, nil, now)

	mock.ExpectQuery(`SELECT .+ FROM mintaro\.statement_documents\s+WHERE user_id = \$1 AND file_hash = \$2`).
		WithArgs("user_1", "abc123").
		WillReturnRows(rows)

	docs, err := ds.GetDocumentsByHash(context.Background(), "user_1", "abc123")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc_1", docs[0].DocumentID)
	assert.Equal(t, "january.pdf", docs[0].Filename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentsOverlappingPeriod(t *testing.T) {
	ds, mock := newTestDatasource(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	docStart := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	docEnd := time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "user_id", "file_hash", "filename",
		"payment_method_id", "period_start", "period_end", "uploaded_at",
	}).AddRow(int64(2), "doc_2", "user_1", "def456", "overlap.pdf", "pm_1", docStart, docEnd, time.Now())

	mock.ExpectQuery(`SELECT .+ FROM mintaro\.statement_documents\s+WHERE user_id = \$1 AND payment_method_id = \$2`).
		WithArgs("user_1", "pm_1", start, end).
		WillReturnRows(rows)

	docs, err := ds.GetDocumentsOverlappingPeriod(context.Background(), "user_1", "pm_1", start, end)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc_2", docs[0].DocumentID)
	require.NotNil(t, docs[0].PeriodStart)
	assert.Equal(t, docStart, *docs[0].PeriodStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStatementDocument(t *testing.T) {
	ds, mock := newTestDatasource(t)

	doc := &model.StatementDocument{
		DocumentID: "doc_3",
		UserID:     "user_1",
		FileHash:   "ffa1",
		Filename:   "feb.pdf",
		UploadedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO mintaro\.statement_documents`).
		WithArgs(doc.DocumentID, doc.UserID, doc.FileHash, doc.Filename,
			doc.PaymentMethodID, doc.PeriodStart, doc.PeriodEnd, doc.UploadedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, ds.RecordStatementDocument(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}
