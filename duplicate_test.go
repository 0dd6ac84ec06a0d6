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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mintaro-app/mintaro/database/mocks"
	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

func TestCalculateFileHash(t *testing.T) {
	hash := CalculateFileHash([]byte("statement content"))

	assert.Len(t, hash, 64, "sha-256 hex digest")
	assert.Equal(t, hash, CalculateFileHash([]byte("statement content")), "deterministic")
	assert.NotEqual(t, hash, CalculateFileHash([]byte("other content")))

	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		CalculateFileHash(nil), "empty input hashes to the well-known empty digest")
}

func TestCheckForDuplicatesClean(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	mockDS.On("GetDocumentsByHash", mock.Anything, "user_1", "hash_1").
		Return([]*model.StatementDocument{}, nil)

	result, err := service.CheckForDuplicates(context.Background(), DuplicateCheckOptions{
		UserID:   "user_1",
		FileHash: "hash_1",
	})
	require.NoError(t, err)
	assert.False(t, result.HasDuplicate)
	assert.True(t, result.CanProceed)
	assert.Empty(t, result.Duplicates)
	assert.Nil(t, GetDuplicateMessage(result))
	mockDS.AssertNotCalled(t, "GetDocumentsOverlappingPeriod")
}

func TestCheckForDuplicatesHashHitBlocks(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	mockDS.On("GetDocumentsByHash", mock.Anything, "user_1", "hash_1").
		Return([]*model.StatementDocument{
			{DocumentID: "doc_1", FileHash: "hash_1", Filename: "january.pdf"},
		}, nil)

	result, err := service.CheckForDuplicates(context.Background(), DuplicateCheckOptions{
		UserID:   "user_1",
		FileHash: "hash_1",
	})
	require.NoError(t, err)
	assert.True(t, result.HasDuplicate)
	assert.False(t, result.CanProceed, "identical content must never be re-ingested")
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, model.DuplicateTypeFileHash, result.Duplicates[0].Type)

	msg := GetDuplicateMessage(result)
	require.NotNil(t, msg)
	assert.Contains(t, *msg, "january.pdf")
}

func TestCheckForDuplicatesPeriodOverlapWarns(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	docStart := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	docEnd := time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)

	mockDS.On("GetDocumentsByHash", mock.Anything, "user_1", "hash_new").
		Return([]*model.StatementDocument{}, nil)
	mockDS.On("GetDocumentsOverlappingPeriod", mock.Anything, "user_1", "pm_1", start, end).
		Return([]*model.StatementDocument{
			{DocumentID: "doc_2", FileHash: "hash_old", Filename: "overlap.pdf", PeriodStart: &docStart, PeriodEnd: &docEnd},
		}, nil)

	result, err := service.CheckForDuplicates(context.Background(), DuplicateCheckOptions{
		UserID:          "user_1",
		FileHash:        "hash_new",
		PaymentMethodID: "pm_1",
		PeriodStart:     &start,
		PeriodEnd:       &end,
	})
	require.NoError(t, err)
	assert.True(t, result.HasDuplicate)
	assert.True(t, result.CanProceed, "overlap warns but does not block")
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, model.DuplicateTypePeriodOverlap, result.Duplicates[0].Type)

	msg := GetDuplicateMessage(result)
	require.NotNil(t, msg)
	assert.Contains(t, *msg, "overlap.pdf")
	assert.Contains(t, *msg, "2024-01-20")
}

func TestCheckForDuplicatesHashSelfExcludedFromOverlap(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	sameDoc := &model.StatementDocument{
		DocumentID: "doc_1", FileHash: "hash_1", Filename: "january.pdf",
		PeriodStart: &start, PeriodEnd: &end,
	}
	mockDS.On("GetDocumentsByHash", mock.Anything, "user_1", "hash_1").
		Return([]*model.StatementDocument{sameDoc}, nil)
	mockDS.On("GetDocumentsOverlappingPeriod", mock.Anything, "user_1", "pm_1", start, end).
		Return([]*model.StatementDocument{sameDoc}, nil)

	result, err := service.CheckForDuplicates(context.Background(), DuplicateCheckOptions{
		UserID:          "user_1",
		FileHash:        "hash_1",
		PaymentMethodID: "pm_1",
		PeriodStart:     &start,
		PeriodEnd:       &end,
	})
	require.NoError(t, err)
	require.Len(t, result.Duplicates, 1, "the hash match must not be double-reported as an overlap")
	assert.Equal(t, model.DuplicateTypeFileHash, result.Duplicates[0].Type)
	assert.False(t, result.CanProceed)
}

func TestGetDuplicateMessageHashTakesPriority(t *testing.T) {
	result := &model.DuplicateCheckResult{
		HasDuplicate: true,
		Duplicates: []model.DuplicateMatch{
			{Type: model.DuplicateTypePeriodOverlap, DocumentID: "doc_2", Filename: "overlap.pdf"},
			{Type: model.DuplicateTypeFileHash, DocumentID: "doc_1", Filename: "exact.pdf"},
		},
	}

	msg := GetDuplicateMessage(result)
	require.NotNil(t, msg)
	assert.Contains(t, *msg, "exact.pdf")
	assert.False(t, strings.Contains(*msg, "overlap.pdf"))
}

func TestCheckForDuplicatesValidation(t *testing.T) {
	service := newTestService()

	_, err := service.CheckForDuplicates(context.Background(), DuplicateCheckOptions{UserID: "user_1"})
	require.Error(t, err)
	assert.Equal(t, apierror.ErrValidation, apierror.CodeOf(err))
}

func TestRegisterStatementDocumentDefaults(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	service := newTestService()
	service.datasource = mockDS

	mockDS.On("RecordStatementDocument", mock.Anything, mock.MatchedBy(func(doc *model.StatementDocument) bool {
		return doc.DocumentID != "" && !doc.UploadedAt.IsZero()
	})).Return(nil)

	doc := &model.StatementDocument{UserID: "user_1", FileHash: "hash_1", Filename: "jan.pdf"}
	require.NoError(t, service.RegisterStatementDocument(context.Background(), doc))
	mockDS.AssertExpectations(t)
}
