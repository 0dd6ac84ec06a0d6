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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

// GetLedgerTransactions retrieves the user's ledger transactions within the
// given date range, ordered by occurrence date.
func (d Datasource) GetLedgerTransactions(ctx context.Context, userID string, from, to time.Time) ([]*model.LedgerTransaction, error) {
	ctx, span := otel.Tracer("Ledger").Start(ctx, "Fetching ledger transactions from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, transaction_id, user_id, amount, currency, occurred_at,
			vendor, description, direction, COALESCE(evidence_id, '')
		FROM mintaro.transactions
		WHERE user_id = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*model.LedgerTransaction
	for rows.Next() {
		txn := &model.LedgerTransaction{}
		err := rows.Scan(
			&txn.ID, &txn.TransactionID, &txn.UserID, &txn.Amount, &txn.Currency,
			&txn.OccurredAt, &txn.Vendor, &txn.Description, &txn.Direction, &txn.EvidenceID,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// RecordMatchReference writes the confirming evidence ID onto a matched
// ledger transaction. Scoped to the owning user.
func (d Datasource) RecordMatchReference(ctx context.Context, userID, transactionID, evidenceID string) error {
	ctx, span := otel.Tracer("Ledger").Start(ctx, "Recording match reference")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE mintaro.transactions
		SET evidence_id = $1
		WHERE user_id = $2 AND transaction_id = $3
	`, evidenceID, userID, transactionID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("transaction %s not found for user", transactionID), sql.ErrNoRows)
	}

	return nil
}
