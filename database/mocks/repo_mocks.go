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

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mintaro-app/mintaro/model"
)

// MockDataSource is a testify mock of database.IDataSource.
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) GetLedgerTransactions(ctx context.Context, userID string, from, to time.Time) ([]*model.LedgerTransaction, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerTransaction), args.Error(1)
}

func (m *MockDataSource) RecordMatchReference(ctx context.Context, userID, transactionID, evidenceID string) error {
	args := m.Called(ctx, userID, transactionID, evidenceID)
	return args.Error(0)
}

func (m *MockDataSource) GetDocumentsByHash(ctx context.Context, userID, fileHash string) ([]*model.StatementDocument, error) {
	args := m.Called(ctx, userID, fileHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatementDocument), args.Error(1)
}

func (m *MockDataSource) GetDocumentsOverlappingPeriod(ctx context.Context, userID, paymentMethodID string, periodStart, periodEnd time.Time) ([]*model.StatementDocument, error) {
	args := m.Called(ctx, userID, paymentMethodID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.StatementDocument), args.Error(1)
}

func (m *MockDataSource) RecordStatementDocument(ctx context.Context, doc *model.StatementDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}
