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
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mintaro-app/mintaro/internal/apierror"
	"github.com/mintaro-app/mintaro/model"
)

// Classification confidence levels: a recognized sender scores high, a generic
// keyword hit scores low.
const (
	knownSenderConfidence    = 90.0
	genericKeywordConfidence = 60.0
)

// senderHeuristic recognizes a known sender domain and maps it to a parser key
// and coarse classification.
type senderHeuristic struct {
	domain         string
	parserKey      string
	classification model.Classification
	defaultContext model.PaymentContext
}

// senderHeuristics is checked before any generic keyword matching. Order
// matters only for overlapping domains, which there are none of.
var senderHeuristics = []senderHeuristic{
	{domain: "kasikornbank.com", parserKey: "kasikorn", classification: model.ClassificationStatementNotice, defaultContext: model.PaymentContextBankTransfer},
	{domain: "chase.com", parserKey: "chase", classification: model.ClassificationStatementNotice, defaultContext: model.PaymentContextCreditCard},
	{domain: "amazon.com", parserKey: "amazon", classification: model.ClassificationOrderConfirmation, defaultContext: model.PaymentContextCreditCard},
	{domain: "grab.com", parserKey: "grab", classification: model.ClassificationReceipt, defaultContext: model.PaymentContextEWallet},
	{domain: "truemoney.com", parserKey: "truemoney", classification: model.ClassificationReceipt, defaultContext: model.PaymentContextEWallet},
}

// keywordHeuristics back up the sender table with generic subject/body
// keywords at lower confidence.
var keywordHeuristics = []struct {
	keyword        string
	classification model.Classification
}{
	{"receipt", model.ClassificationReceipt},
	{"transfer", model.ClassificationBankTransfer},
	{"order confirmation", model.ClassificationOrderConfirmation},
	{"your order", model.ClassificationOrderConfirmation},
	{"statement", model.ClassificationStatementNotice},
	{"invoice", model.ClassificationReceipt},
}

// paymentContextPatterns detect payment-instrument hints in the evidence body.
// Checked in order; the first hit wins.
var paymentContextPatterns = []struct {
	pattern *regexp.Regexp
	context model.PaymentContext
}{
	{regexp.MustCompile(`(?i)\b(e-?wallet|truemoney|grabpay|paypal balance)\b`), model.PaymentContextEWallet},
	{regexp.MustCompile(`(?i)\b(credit card|visa|mastercard|amex|card ending|ending in \d{4})\b`), model.PaymentContextCreditCard},
	{regexp.MustCompile(`(?i)\b(bank transfer|wire transfer|direct debit|account transfer|promptpay)\b`), model.PaymentContextBankTransfer},
}

// RuleSet is the live, mutable list of classification rules. It is owned by
// the service and shared across goroutines; all access goes through the lock.
type RuleSet struct {
	mu    sync.RWMutex
	rules []model.ClassificationRule
}

// defaultClassificationRules is the built-in rule set restored by Reset.
// Priority ascends: the statement-notice gate outranks the e-wallet fast path,
// which outranks the generic receipt rule.
func defaultClassificationRules() []model.ClassificationRule {
	return []model.ClassificationRule{
		{
			ID:              "default-statement-notice",
			Classifications: []model.Classification{model.ClassificationStatementNotice},
			Status:          model.StatusAwaitingStatement,
			Priority:        10,
			Enabled:         true,
		},
		{
			ID:              "default-ewallet-receipt",
			Classifications: []model.Classification{model.ClassificationReceipt},
			PaymentContexts: []model.PaymentContext{model.PaymentContextEWallet},
			Status:          model.StatusReadyToImport,
			Priority:        20,
			Enabled:         true,
		},
		{
			ID:              "default-card-evidence",
			Classifications: []model.Classification{model.ClassificationReceipt, model.ClassificationOrderConfirmation},
			PaymentContexts: []model.PaymentContext{model.PaymentContextCreditCard},
			Status:          model.StatusAwaitingStatement,
			Priority:        30,
			Enabled:         true,
		},
		{
			ID:              "default-bank-transfer",
			Classifications: []model.Classification{model.ClassificationBankTransfer},
			Status:          model.StatusReadyToImport,
			Priority:        40,
			Enabled:         true,
		},
		{
			ID:              "default-unknown-skip",
			Classifications: []model.Classification{model.ClassificationUnknown},
			PaymentContexts: []model.PaymentContext{model.PaymentContextUnknown},
			Status:          model.StatusPendingReview,
			Priority:        90,
			Enabled:         true,
		},
	}
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: defaultClassificationRules()}
}

// Add admits a rule to the live set after validation. Rule IDs are unique.
func (rs *RuleSet) Add(rule model.ClassificationRule) error {
	if err := rule.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrValidation, "invalid classification rule", err.Error())
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, existing := range rs.rules {
		if existing.ID == rule.ID {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("rule %q already exists", rule.ID), nil)
		}
	}
	rs.rules = append(rs.rules, rule)
	return nil
}

// Remove deletes a rule by id.
func (rs *RuleSet) Remove(id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i, rule := range rs.rules {
		if rule.ID == id {
			rs.rules = append(rs.rules[:i], rs.rules[i+1:]...)
			return nil
		}
	}
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("rule %q not found", id), nil)
}

// SetEnabled toggles a rule without removing it.
func (rs *RuleSet) SetEnabled(id string, enabled bool) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i := range rs.rules {
		if rs.rules[i].ID == id {
			rs.rules[i].Enabled = enabled
			return nil
		}
	}
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("rule %q not found", id), nil)
}

// Reset restores the built-in default set exactly, discarding all runtime
// additions and edits.
func (rs *RuleSet) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = defaultClassificationRules()
}

// Rules returns a copy of the live rules sorted by ascending priority.
func (rs *RuleSet) Rules() []model.ClassificationRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	rules := make([]model.ClassificationRule, len(rs.rules))
	copy(rules, rs.rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules
}

// StatusFromRules evaluates the rule list in ascending priority order against
// a decision. The first enabled rule whose filters all match wins; when no
// rule matches, the built-in fallback sends the evidence to review. This never
// fails: leaving evidence unclassified is worse than a conservative default.
func (rs *RuleSet) StatusFromRules(decision *model.ClassificationDecision) model.EvidenceStatus {
	for _, rule := range rs.Rules() {
		if !rule.Enabled {
			continue
		}
		if ruleMatches(&rule, decision) {
			return rule.Status
		}
	}
	return model.StatusPendingReview
}

// ruleMatches checks every filter on the rule; a nil filter slice is a
// wildcard.
func ruleMatches(rule *model.ClassificationRule, decision *model.ClassificationDecision) bool {
	if rule.ParserKeys != nil && !containsString(rule.ParserKeys, decision.ParserKey) {
		return false
	}
	if rule.Classifications != nil && !containsClassification(rule.Classifications, decision.Classification) {
		return false
	}
	if rule.PaymentContexts != nil && !containsContext(rule.PaymentContexts, decision.PaymentContext) {
		return false
	}
	if rule.Currencies != nil && !containsString(rule.Currencies, decision.Currency) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsClassification(haystack []model.Classification, needle model.Classification) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

func containsContext(haystack []model.PaymentContext, needle model.PaymentContext) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

// senderAddress reduces a raw From header to its lowercased address part.
// Display forms like "Chase <alerts@chase.com>" carry the domain inside the
// angle brackets, so the header is parsed before any suffix check.
func senderAddress(sender string) string {
	if addr, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(sender))
}

// ClassifyEmail determines the parser key, coarse classification and
// confidence for one email: known-sender heuristics first, generic keyword
// heuristics as the lower-confidence fallback. The evidence currency, when
// present, is carried onto the decision for rule evaluation.
func (m *Mintaro) ClassifyEmail(evidence *model.EmailEvidence) *model.ClassificationDecision {
	decision := m.classifyEmail(evidence)
	decision.Currency = evidence.Currency
	return decision
}

func (m *Mintaro) classifyEmail(evidence *model.EmailEvidence) *model.ClassificationDecision {
	sender := senderAddress(evidence.Sender)
	for _, h := range senderHeuristics {
		if strings.HasSuffix(sender, "@"+h.domain) || strings.HasSuffix(sender, "."+h.domain) {
			return &model.ClassificationDecision{
				ParserKey:      h.parserKey,
				Classification: h.classification,
				Confidence:     knownSenderConfidence,
			}
		}
	}

	haystack := strings.ToLower(evidence.Subject + " " + evidence.Body)
	for _, h := range keywordHeuristics {
		if strings.Contains(haystack, h.keyword) {
			return &model.ClassificationDecision{
				Classification: h.classification,
				Confidence:     genericKeywordConfidence,
			}
		}
	}

	return &model.ClassificationDecision{
		Classification: model.ClassificationUnknown,
		Confidence:     0,
	}
}

// DetectPaymentContext searches the evidence body for payment-instrument
// hints. When nothing matches, the parser key's documented default applies,
// then unknown.
func (m *Mintaro) DetectPaymentContext(parserKey string, evidence *model.EmailEvidence) model.PaymentContext {
	haystack := evidence.Subject + " " + evidence.Body
	for _, p := range paymentContextPatterns {
		if p.pattern.MatchString(haystack) {
			return p.context
		}
	}
	for _, h := range senderHeuristics {
		if h.parserKey == parserKey {
			return h.defaultContext
		}
	}
	return model.PaymentContextUnknown
}

// ClassifyEmailWithContext runs the full classification pipeline for one
// email: sender/keyword classification, payment-context detection and rule
// evaluation. It always returns a decision with a terminal status.
func (m *Mintaro) ClassifyEmailWithContext(evidence *model.EmailEvidence) *model.ClassificationDecision {
	decision := m.ClassifyEmail(evidence)
	decision.PaymentContext = m.DetectPaymentContext(decision.ParserKey, evidence)
	decision.Status = m.rules.StatusFromRules(decision)

	logrus.WithFields(logrus.Fields{
		"evidence_id":    evidence.EvidenceID,
		"parser_key":     decision.ParserKey,
		"classification": decision.Classification,
		"status":         decision.Status,
	}).Debug("email classified")

	return decision
}
