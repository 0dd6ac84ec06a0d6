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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"MINTARO_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"MINTARO_REDIS_DNS"`
}

// MatchingConfig carries the tolerance bands, weights and thresholds of the
// match scorer and ranker. The shipped defaults are conservative; deployments
// tune them per user base rather than per request.
type MatchingConfig struct {
	// AmountFullCreditPercent is the percent difference at or below which the
	// amount sub-score is a full 100.
	AmountFullCreditPercent float64 `json:"amount_full_credit_percent" envconfig:"MINTARO_MATCHING_AMOUNT_FULL_CREDIT_PERCENT"`
	// AmountZeroCreditPercent is the percent difference at or above which the
	// amount sub-score is 0. Between the two bounds the score decays linearly.
	AmountZeroCreditPercent float64 `json:"amount_zero_credit_percent" envconfig:"MINTARO_MATCHING_AMOUNT_ZERO_CREDIT_PERCENT"`
	// DateWindowDays is the day difference at which the date sub-score reaches
	// 0, tolerating posting-date vs transaction-date skew.
	DateWindowDays int `json:"date_window_days" envconfig:"MINTARO_MATCHING_DATE_WINDOW_DAYS"`

	AmountWeight   float64 `json:"amount_weight" envconfig:"MINTARO_MATCHING_AMOUNT_WEIGHT"`
	DateWeight     float64 `json:"date_weight" envconfig:"MINTARO_MATCHING_DATE_WEIGHT"`
	VendorWeight   float64 `json:"vendor_weight" envconfig:"MINTARO_MATCHING_VENDOR_WEIGHT"`
	CurrencyWeight float64 `json:"currency_weight" envconfig:"MINTARO_MATCHING_CURRENCY_WEIGHT"`

	// AutoApproveMargin is how many points clear of the nearest rival the best
	// match must be before auto-approval is allowed.
	AutoApproveMargin float64 `json:"auto_approve_margin" envconfig:"MINTARO_MATCHING_AUTO_APPROVE_MARGIN"`
	// ClaimFloor is the minimum score a pair needs before it may claim a
	// ledger transaction during batch ranking.
	ClaimFloor float64 `json:"claim_floor" envconfig:"MINTARO_MATCHING_CLAIM_FLOOR"`
	// BatchWorkers bounds the scoring fan-out, and with it the number of
	// concurrent exchange-rate lookups.
	BatchWorkers int `json:"batch_workers" envconfig:"MINTARO_MATCHING_BATCH_WORKERS"`
}

// PipelineConfig bounds the document pipeline on adversarial input.
type PipelineConfig struct {
	MaxPDFPages int `json:"max_pdf_pages" envconfig:"MINTARO_PIPELINE_MAX_PDF_PAGES"`
}

type Configuration struct {
	ProjectName string           `json:"project_name" envconfig:"MINTARO_PROJECT_NAME"`
	DataSource  DataSourceConfig `json:"data_source"`
	Redis       RedisConfig      `json:"redis"`
	Matching    MatchingConfig   `json:"matching"`
	Pipeline    PipelineConfig   `json:"pipeline"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("mintaro", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called mintaro.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Mintaro"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	cnf.Matching.applyDefaults()

	if cnf.Pipeline.MaxPDFPages <= 0 {
		cnf.Pipeline.MaxPDFPages = 50
	}

	if err := cnf.Matching.validate(); err != nil {
		return err
	}

	return nil
}

// DefaultMatchingConfig returns the shipped matching defaults. Used directly
// by tests and by callers that run the scorer without a config file.
func DefaultMatchingConfig() MatchingConfig {
	m := MatchingConfig{}
	m.applyDefaults()
	return m
}

func (m *MatchingConfig) applyDefaults() {
	if m.AmountFullCreditPercent <= 0 {
		m.AmountFullCreditPercent = 1.0
	}
	if m.AmountZeroCreditPercent <= 0 {
		m.AmountZeroCreditPercent = 10.0
	}
	if m.DateWindowDays <= 0 {
		m.DateWindowDays = 4
	}
	if m.AmountWeight <= 0 {
		m.AmountWeight = 0.40
	}
	if m.DateWeight <= 0 {
		m.DateWeight = 0.25
	}
	if m.VendorWeight <= 0 {
		m.VendorWeight = 0.30
	}
	if m.CurrencyWeight <= 0 {
		m.CurrencyWeight = 0.05
	}
	if m.AutoApproveMargin <= 0 {
		m.AutoApproveMargin = 5.0
	}
	if m.ClaimFloor <= 0 {
		m.ClaimFloor = 55.0
	}
	if m.BatchWorkers <= 0 {
		m.BatchWorkers = 4
	}
}

func (m *MatchingConfig) validate() error {
	if m.AmountZeroCreditPercent <= m.AmountFullCreditPercent {
		return errors.New("amount zero-credit percent must be greater than the full-credit percent")
	}
	totalWeight := m.AmountWeight + m.DateWeight + m.VendorWeight + m.CurrencyWeight
	if totalWeight <= 0.99 || totalWeight >= 1.01 {
		log.Printf("Warning: matching weights sum to %.2f, scores will not span the full 0-100 range", totalWeight)
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Matching.applyDefaults()
	if mockConfig.Pipeline.MaxPDFPages <= 0 {
		mockConfig.Pipeline.MaxPDFPages = 50
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
