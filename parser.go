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
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/internal/pdftext"
	"github.com/mintaro-app/mintaro/model"
)

var pdfMagic = []byte("%PDF-")

// StatementParser is the contract a bank-specific parser implements. How a
// bank's text is actually parsed is the parser's business; the registry only
// does detection, dispatch and failure reporting.
type StatementParser interface {
	// Key is the stable identifier the parser registers under.
	Key() string
	// DisplayName is the human-readable bank or product name.
	DisplayName() string
	// DefaultCurrency is applied to extracted candidates that carry none.
	DefaultCurrency() string
	// Detect reports whether the extracted text looks like this parser's
	// statement format.
	Detect(text string) bool
	// Parse extracts candidate transactions from the statement text.
	Parse(text string) ([]*model.CandidateTransaction, error)
}

// ParserRegistry holds the registered bank parsers. Registration normally
// happens at startup but is safe at any time.
type ParserRegistry struct {
	mu      sync.RWMutex
	parsers map[string]StatementParser
	order   []string
}

func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]StatementParser)}
}

// Register adds a parser under its key. Registering the same key twice is a
// conflict, not a silent overwrite.
func (r *ParserRegistry) Register(parser StatementParser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := parser.Key()
	if _, exists := r.parsers[key]; exists {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("parser %q is already registered", key), nil)
	}
	r.parsers[key] = parser
	r.order = append(r.order, key)
	return nil
}

// Get returns the parser registered under key.
func (r *ParserRegistry) Get(key string) (StatementParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parser, ok := r.parsers[key]
	return parser, ok
}

// Keys returns the registered parser keys in registration order.
func (r *ParserRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// Detect runs every registered parser's Detect in registration order and
// returns the first that claims the text.
func (r *ParserRegistry) Detect(text string) (StatementParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		if parser := r.parsers[key]; parser.Detect(text) {
			return parser, true
		}
	}
	return nil, false
}

// DetectStatementParser identifies which registered parser can handle the
// extracted statement text. A NOT_FOUND error names the problem when none can.
func (m *Mintaro) DetectStatementParser(text string) (StatementParser, error) {
	parser, ok := m.registry.Detect(text)
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "could not detect statement type", nil)
	}
	return parser, nil
}

// ProcessPDFOptions tunes one ProcessPDF call. The zero value auto-detects the
// parser, matches against the ledger and omits raw text.
type ProcessPDFOptions struct {
	// Parser forces a specific parser key instead of auto-detection.
	Parser string
	// SkipMatching stops after extraction, leaving ranking to the caller.
	SkipMatching bool
	// IncludeRawText attaches the extracted text to the result for audit.
	IncludeRawText bool
	// MaxPages overrides the configured extraction page bound.
	MaxPages int
	// UserID scopes the ledger pool for matching. Required unless
	// SkipMatching is set.
	UserID string
	// DocumentID tags extracted candidates with their source document.
	DocumentID string
}

// PDFProcessResult is the outcome of one statement upload run end to end.
type PDFProcessResult struct {
	ParserKey  string                        `json:"parser_key"`
	BankName   string                        `json:"bank_name"`
	Candidates []*model.CandidateTransaction `json:"candidates"`
	PageCount  int                           `json:"page_count"`
	RawText    string                        `json:"raw_text,omitempty"`
	Matches    []model.RankedMatchSet        `json:"matches,omitempty"`
	Summary    *model.BatchMatchSummary      `json:"summary,omitempty"`
}

// ProcessPDF runs one uploaded statement through the pipeline: magic-number
// validation, bounded text extraction, parser dispatch, candidate extraction
// and, unless skipped, batch ranking against the user's ledger.
func (m *Mintaro) ProcessPDF(ctx context.Context, data []byte, opts ProcessPDFOptions) (*PDFProcessResult, error) {
	ctx, span := otel.Tracer("mintaro.pipeline").Start(ctx, "ProcessPDF")
	defer span.End()

	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "uploaded file is not a PDF", nil)
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = m.pipeline.MaxPDFPages
	}

	extract := m.extractText
	if extract == nil {
		extract = pdftext.Extract
	}
	text, pageCount, err := extract(data, maxPages)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrDependencyUnavailable, "text extraction failed", err.Error())
	}
	span.SetAttributes(attribute.Int("pdf.pages", pageCount))

	var parser StatementParser
	if opts.Parser != "" {
		requested, ok := m.registry.Get(opts.Parser)
		if !ok {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("unknown parser %q", opts.Parser), nil)
		}
		if !requested.Detect(text) {
			return nil, apierror.NewAPIError(apierror.ErrValidation,
				fmt.Sprintf("parser %q cannot parse this document", opts.Parser), nil)
		}
		parser = requested
	} else {
		parser, err = m.DetectStatementParser(text)
		if err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("pdf.parser", parser.Key()))

	candidates, err := parser.Parse(text)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrDependencyUnavailable,
			fmt.Sprintf("parser %q failed to extract transactions", parser.Key()), err.Error())
	}
	for _, candidate := range candidates {
		if candidate.CandidateID == "" {
			candidate.CandidateID = model.GenerateUUIDWithSuffix("cand")
		}
		if candidate.Currency == "" {
			candidate.Currency = parser.DefaultCurrency()
		}
		if opts.DocumentID != "" {
			candidate.Provenance.DocumentID = opts.DocumentID
		}
	}

	result := &PDFProcessResult{
		ParserKey:  parser.Key(),
		BankName:   parser.DisplayName(),
		Candidates: candidates,
		PageCount:  pageCount,
	}
	if opts.IncludeRawText {
		result.RawText = text
	}

	logrus.WithFields(logrus.Fields{
		"parser":     parser.Key(),
		"candidates": len(candidates),
		"pages":      pageCount,
	}).Info("statement processed")

	if opts.SkipMatching || len(candidates) == 0 {
		return result, nil
	}
	if opts.UserID == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "user id is required for matching", nil)
	}

	pool, err := m.ledgerPoolFor(ctx, opts.UserID, candidates)
	if err != nil {
		return nil, err
	}
	sets, summary, err := m.RankMatchesBatch(ctx, candidates, pool)
	if err != nil {
		return nil, err
	}
	result.Matches = sets
	result.Summary = &summary
	return result, nil
}

// ledgerPoolFor loads the user's ledger transactions spanning the candidates'
// date range, padded by the date window so edge candidates still see their
// neighbors.
func (m *Mintaro) ledgerPoolFor(ctx context.Context, userID string, candidates []*model.CandidateTransaction) ([]*model.LedgerTransaction, error) {
	from, to := candidates[0].OccurredAt, candidates[0].OccurredAt
	for _, candidate := range candidates[1:] {
		if candidate.OccurredAt.Before(from) {
			from = candidate.OccurredAt
		}
		if candidate.OccurredAt.After(to) {
			to = candidate.OccurredAt
		}
	}
	padding := time.Duration(m.matching.DateWindowDays) * 24 * time.Hour
	return m.datasource.GetLedgerTransactions(ctx, userID, from.Add(-padding), to.Add(padding))
}
