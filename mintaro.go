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
	"github.com/mintaro-app/mintaro/config"
	"github.com/mintaro-app/mintaro/database"
	"github.com/mintaro-app/mintaro/internal/cache"
	"github.com/mintaro-app/mintaro/internal/pdftext"
)

// Mintaro is the reconciliation service: it scores statement and email
// evidence against the ledger, guards uploads against duplicates, dispatches
// statement PDFs to bank parsers and classifies inbound email evidence.
type Mintaro struct {
	datasource database.IDataSource
	cache      cache.Cache
	converter  *CurrencyConverter
	scorer     *MatchScorer
	registry   *ParserRegistry
	rules      *RuleSet
	matching   config.MatchingConfig
	pipeline   config.PipelineConfig

	// extractText defaults to pdftext.Extract; swappable for tests.
	extractText func(data []byte, maxPages int) (string, int, error)
}

// NewMintaro initializes the service from the loaded configuration. The
// exchange-rate oracle is external; passing nil disables cross-currency
// normalization (cross-currency pairs then degrade to medium confidence).
func NewMintaro(db database.IDataSource, oracle ExchangeRateOracle) (*Mintaro, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	rateCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	converter := NewCurrencyConverter(oracle, rateCache, configuration.Matching)
	return &Mintaro{
		datasource:  db,
		cache:       rateCache,
		converter:   converter,
		scorer:      NewMatchScorer(converter, configuration.Matching),
		registry:    NewParserRegistry(),
		rules:       NewRuleSet(),
		matching:    configuration.Matching,
		pipeline:    configuration.Pipeline,
		extractText: pdftext.Extract,
	}, nil
}

// Registry exposes the parser registry so bank-specific parsers can be plugged
// in at startup.
func (m *Mintaro) Registry() *ParserRegistry {
	return m.registry
}

// Rules exposes the classification rule set for runtime rule management.
func (m *Mintaro) Rules() *RuleSet {
	return m.rules
}
