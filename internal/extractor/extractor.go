// Package extractor finds cryptocurrency address candidates in free text and
// checks them against per-coin structural rules.
package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/address-discovery/internal/types"
)

// SnippetLength is the maximum number of characters kept as extraction context
const SnippetLength = 300

// Candidate is a substring that looks like an address of Coin
type Candidate struct {
	Address string         `json:"address"`
	Coin    types.CoinType `json:"coin"`
}

type pattern struct {
	coin types.CoinType
	re   *regexp.Regexp
}

// Scan order matters: results are grouped per pattern in this order.
var patterns = []pattern{
	{types.CoinEthereum, regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)},
	{types.CoinBitcoin, regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`)},
	{types.CoinBech32, regexp.MustCompile(`(?i)\bbc1[a-z0-9]{39,59}\b`)},
	{types.CoinLitecoin, regexp.MustCompile(`\b[LM3][a-km-zA-HJ-NP-Z1-9]{26,33}\b`)},
	{types.CoinDoge, regexp.MustCompile(`\bD[5-9A-HJ-NP-Ua-km-z][1-9A-Za-z]{24,33}\b`)},
	{types.CoinMonero, regexp.MustCompile(`\b4[0-9AB][1-9A-Za-z]{93}\b`)},
}

// FindCandidates returns every non-overlapping match of every coin pattern.
// Patterns are scanned independently, so one substring may be reported under
// more than one coin (a 3... address matches both bitcoin and litecoin).
func FindCandidates(text string) []Candidate {
	candidates := make([]Candidate, 0)
	if text == "" {
		return candidates
	}

	for _, p := range patterns {
		for _, m := range p.re.FindAllString(text, -1) {
			candidates = append(candidates, Candidate{Address: m, Coin: p.coin})
		}
	}
	return candidates
}

// Canonicalize lowercases hex and bech32 addresses, whose case carries no
// meaning. Base58 formats are case sensitive and returned unchanged.
func Canonicalize(address string) string {
	lower := strings.ToLower(address)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "bc1") {
		return lower
	}
	return address
}

// Snippet returns the first SnippetLength characters of text.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= SnippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:SnippetLength])
}

// CandidateSource produces candidates for a block of text
type CandidateSource interface {
	Candidates(text string) []Candidate
}

// RegexSource is the production CandidateSource backed by FindCandidates
type RegexSource struct{}

// Candidates implements CandidateSource
func (RegexSource) Candidates(text string) []Candidate {
	return FindCandidates(text)
}
