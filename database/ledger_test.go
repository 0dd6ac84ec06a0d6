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

	"github.com/mintaro-app/mintaro/internal/apierror"
)

func TestGetLedgerTransactions(t *testing.T) {
	ds, mock := newTestDatasource(t)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	occurred := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "transaction_id", "user_id", "amount", "currency",
		"occurred_at", "vendor", "description", "direction", "evidence_id",
	}).AddRow(int64(1), "txn_1", "user_1", 50.0, "USD", occurred, "AMAZON", "order", "expense", "")

	mock.ExpectQuery(`SELECT .+ FROM mintaro\.transactions\s+WHERE user_id = \$1 AND occurred_at BETWEEN \$2 AND \$3`).
		WithArgs("user_1", from, to).
		WillReturnRows(rows)

	txns, err := ds.GetLedgerTransactions(context.Background(), "user_1", from, to)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "txn_1", txns[0].TransactionID)
	assert.Equal(t, 50.0, txns[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMatchReference(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectExec(`UPDATE mintaro\.transactions\s+SET evidence_id = \$1`).
		WithArgs("evidence_9", "user_1", "txn_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ds.RecordMatchReference(context.Background(), "user_1", "txn_1", "evidence_9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMatchReferenceUnknownTransaction(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectExec(`UPDATE mintaro\.transactions\s+SET evidence_id = \$1`).
		WithArgs("evidence_9", "user_1", "txn_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ds.RecordMatchReference(context.Background(), "user_1", "txn_missing", "evidence_9")
	require.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
