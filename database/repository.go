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
	"time"

	"github.com/mintaro-app/mintaro/model"
)

// IDataSource defines the interface for data source operations, grouping the
// ledger-store and document-store contracts the reconciliation core consumes.
// Every query is scoped to one user; no cross-user data is ever returned.
type IDataSource interface {
	ledger
	documents
}

type ledger interface {
	// GetLedgerTransactions returns the user's ledger transactions inside the
	// given date range, for use as a matching pool.
	GetLedgerTransactions(ctx context.Context, userID string, from, to time.Time) ([]*model.LedgerTransaction, error)
	// RecordMatchReference writes the evidence back-reference onto a matched
	// ledger transaction. The only write access the core has to the ledger.
	RecordMatchReference(ctx context.Context, userID, transactionID, evidenceID string) error
}

type documents interface {
	// GetDocumentsByHash returns the user's previously ingested documents
	// with the given content hash.
	GetDocumentsByHash(ctx context.Context, userID, fileHash string) ([]*model.StatementDocument, error)
	// GetDocumentsOverlappingPeriod returns the user's documents for the
	// given payment method whose stored billing period intersects
	// [periodStart, periodEnd].
	GetDocumentsOverlappingPeriod(ctx context.Context, userID, paymentMethodID string, periodStart, periodEnd time.Time) ([]*model.StatementDocument, error)
	// RecordStatementDocument stores the metadata of a newly ingested upload.
	RecordStatementDocument(ctx context.Context, doc *model.StatementDocument) error
}
