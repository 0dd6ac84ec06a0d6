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
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// containmentScore is awarded when one vendor name strictly contains the
// other. Edit distance alone punishes pairs like "AMAZON.COM*AMZN" vs
// "AMAZON" far too hard.
const containmentScore = 95.0

// processorTokens is payment-processor boilerplate that appears in statement
// vendor strings but carries no identity: processor prefixes, card noise and
// URL fragments.
var processorTokens = map[string]struct{}{
	"paypal":   {},
	"pp":       {},
	"sq":       {},
	"sp":       {},
	"pos":      {},
	"tst":      {},
	"payment":  {},
	"purchase": {},
	"card":     {},
	"debit":    {},
	"credit":   {},
	"intl":     {},
	"www":      {},
	"com":      {},
	"inc":      {},
	"llc":      {},
	"ltd":      {},
}

// NormalizeVendor canonicalizes a free-text merchant name for comparison:
// lowercase, punctuation and trademark/asterisk suffixes collapsed to spaces,
// processor boilerplate tokens dropped. Normalizing an already-normalized
// name is a no-op.
func NormalizeVendor(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := processorTokens[f]; drop {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

// CalculateSimilarity scores how alike two strings are on a 0-100 scale.
// Exact match is 100, strict containment scores near-100, otherwise the
// Levenshtein distance is normalized by the longer string. Symmetric.
func CalculateSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}

	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	maxLength := max(len([]rune(a)), len([]rune(b)))

	similarity := (1 - float64(distance)/float64(maxLength)) * 100
	if similarity < 0 {
		return 0
	}
	return similarity
}

// VendorSimilarity normalizes both vendor names and scores them.
func VendorSimilarity(a, b string) float64 {
	return CalculateSimilarity(NormalizeVendor(a), NormalizeVendor(b))
}
