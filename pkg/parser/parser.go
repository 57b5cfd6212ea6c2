// Package parser turns a natural-language request into a structured intent
// with keyword rules. It is the offline fallback of the solver backend parser.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/prover"
)

// RuleConfidence is the confidence reported by keyword parsing.
const RuleConfidence = 0.6

var (
	// ErrEmptyText is returned for blank requests.
	ErrEmptyText = errors.New("empty intent text")
	// ErrInvalidUser is returned when the user address is not 0x-prefixed.
	ErrInvalidUser = errors.New("invalid user address")
)

type rule struct {
	value    string
	keywords []string
}

// Rules are evaluated in order; the first match wins.
var actionRules = []rule{
	{"borrow", []string{"borrow", "loan"}},
	{"swap", []string{"swap", "trade", "exchange"}},
	{"bridge", []string{"bridge", "transfer"}},
	{"liquidity_provision", []string{"liquidity", "lp"}},
	{"yield_farm", []string{"yield", "farm", "lend", "apy"}},
}

var strategyRules = []rule{
	{"highest_apy", []string{"highest apy", "maximum return", "best yield"}},
	{"lowest_gas", []string{"lowest gas", "lowest fees", "cheapest"}},
	{"balanced", []string{"balanced"}},
}

var protocolRules = []rule{
	{"morpho", []string{"morpho"}},
	{"aave", []string{"aave"}},
	{"compound", []string{"compound"}},
	{"uniswap", []string{"uniswap", "uni"}},
	{"balancer", []string{"balancer"}},
}

var chainRules = []rule{
	{"Optimism", []string{"optimism", "op"}},
	{"Arbitrum", []string{"arbitrum", "arb"}},
	{"Base", []string{"base"}},
	{"Polygon", []string{"polygon", "matic"}},
	{"Ethereum", []string{"ethereum", "eth mainnet", "mainnet"}},
}

var tokens = []string{"usdc", "usdt", "dai", "weth", "eth", "wbtc", "btc"}

var durationRules = []struct {
	days     int
	keywords []string
}{
	{30, []string{"1 month", "one month", "30 days"}},
	{180, []string{"6 months", "6 month", "six months"}},
	{365, []string{"1 year", "one year", "12 months", "year"}},
}

var (
	numberPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(%|[a-z]+)?`)
	gasPattern    = regexp.MustCompile(`(\d+)\s*%?\s*gas`)
)

// Numbers followed by these units are not amounts.
var nonAmountUnits = map[string]bool{
	"%": true, "d": true, "day": true, "days": true, "week": true, "weeks": true,
	"month": true, "months": true, "year": true, "years": true, "gas": true,
}

const (
	defaultAction   = "supply"
	defaultStrategy = "balanced"
	defaultProtocol = "morpho"
	defaultChain    = "Optimism"
	defaultToken    = "USDC"
	defaultAmount   = "100"
	defaultDuration = 90
	defaultMaxGas   = 15.0
	// gasBaseUSD converts a percentage gas tolerance to dollars.
	gasBaseUSD = 500.0
)

// Result is the structured reading of one request.
type Result struct {
	Action       string         `json:"action"`
	Strategy     string         `json:"strategy"`
	Amount       string         `json:"amount"`
	Token        string         `json:"token"`
	Protocol     string         `json:"protocol"`
	Chains       []string       `json:"chains"`
	DurationDays int            `json:"duration_days"`
	GasTolerance string         `json:"gas_tolerance,omitempty"`
	MaxGasUSD    float64        `json:"max_gas_usd"`
	Assets       []domain.Asset `json:"assets"`
	Confidence   float64        `json:"confidence"`
	Text         string         `json:"text"`
}

// Parse reads text with keyword rules. It never fails on unrecognised text;
// every field falls back to a default.
func Parse(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	lower := strings.ToLower(text)

	r := &Result{
		Action:       first(lower, actionRules, defaultAction),
		Strategy:     first(lower, strategyRules, defaultStrategy),
		Protocol:     first(lower, protocolRules, defaultProtocol),
		Token:        defaultToken,
		Amount:       defaultAmount,
		DurationDays: defaultDuration,
		MaxGasUSD:    defaultMaxGas,
		Confidence:   RuleConfidence,
		Text:         text,
	}

	for _, t := range tokens {
		if containsWord(lower, t) {
			r.Token = strings.ToUpper(t)
			break
		}
	}
	r.Chains = chains(lower)
	if len(r.Chains) == 0 {
		r.Chains = []string{defaultChain}
	}
	for _, d := range durationRules {
		if matchAny(lower, d.keywords) {
			r.DurationDays = d.days
			break
		}
	}
	if m := gasPattern.FindStringSubmatch(lower); m != nil {
		pct, _ := strconv.Atoi(m[1])
		r.GasTolerance = m[1] + "%"
		r.MaxGasUSD = gasBaseUSD * float64(pct) / 100
	}

	amount := extractAmount(lower)
	switch {
	case amount != "":
		r.Amount = amount
		r.Assets = []domain.Asset{{Chain: r.Chains[0], Token: r.Token, Amount: r.Amount}}
	case strings.Contains(lower, "stablecoin") || strings.Contains(lower, "all my"):
		// Whole-portfolio requests use the demo wallet.
		r.Assets = DemoPortfolio()
		r.Amount = "500"
	default:
		r.Assets = []domain.Asset{{Chain: r.Chains[0], Token: r.Token, Amount: r.Amount}}
	}
	return r, nil
}

// DemoPortfolio is the wallet the demo pipeline moves: stablecoins on two chains.
func DemoPortfolio() []domain.Asset {
	return []domain.Asset{
		{Chain: "Arbitrum", Token: "USDC", Amount: "250"},
		{Chain: "Polygon", Token: "USDT", Amount: "250"},
	}
}

// ParsedIntent returns the lifecycle form of r.
func (r *Result) ParsedIntent() domain.ParsedIntent {
	return domain.ParsedIntent{
		Goal:   r.Action,
		Assets: append([]domain.Asset(nil), r.Assets...),
		Constraints: domain.Constraints{
			Duration:        fmt.Sprintf("%dd", r.DurationDays),
			MaxGasTolerance: r.GasTolerance,
		},
	}
}

// Intent builds the SetIntent input for user. The identifier and the
// commitment are the keccak commitment of the public parameters; the payload
// is an opaque placeholder.
func (r *Result) Intent(user string, now time.Time) (domain.Intent, error) {
	if !strings.HasPrefix(user, "0x") {
		return domain.Intent{}, fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	commitment := prover.Commit(r.Action, r.Amount, r.DurationDays, r.MaxGasUSD, user, now.Unix())
	return domain.Intent{
		IntentID:         commitment,
		Commitment:       commitment,
		EncryptedPayload: prover.Commit("payload", commitment, r.Text),
		OriginalText:     r.Text,
		ParsedIntent:     r.ParsedIntent(),
	}, nil
}

func first(text string, rules []rule, fallback string) string {
	for _, r := range rules {
		if matchAny(text, r.keywords) {
			return r.value
		}
	}
	return fallback
}

// chains returns the mentioned chains in order of first mention.
func chains(text string) []string {
	type hit struct {
		chain string
		at    int
	}
	var hits []hit
	for _, c := range chainRules {
		at := -1
		for _, kw := range c.keywords {
			if i := indexWord(text, kw); i >= 0 && (at < 0 || i < at) {
				at = i
			}
		}
		if at >= 0 {
			hits = append(hits, hit{c.value, at})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.at - b.at })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.chain
	}
	return out
}

func matchAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(text, kw) {
			return true
		}
	}
	return false
}

func containsWord(text, kw string) bool {
	return indexWord(text, kw) >= 0
}

// indexWord finds kw only at word boundaries, so "op" does not match "stop".
// A trailing plural s is accepted.
func indexWord(text, kw string) int {
	for from := 0; ; {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(kw)
		if end < len(text) && text[end] == 's' {
			end++
		}
		if boundary(text, start-1) && boundary(text, end) {
			return start
		}
		from = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
}

// extractAmount returns the first number that is not a duration or a percentage.
func extractAmount(text string) string {
	for _, m := range numberPattern.FindAllStringSubmatch(text, -1) {
		if !nonAmountUnits[m[2]] {
			return m[1]
		}
	}
	return ""
}

// MaxGasUSD converts a gas tolerance such as "3%" to dollars. Tolerances that
// are not a percentage yield the default budget.
func MaxGasUSD(tolerance string) float64 {
	pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(tolerance), "%"), 64)
	if err != nil || !strings.HasSuffix(strings.TrimSpace(tolerance), "%") {
		return defaultMaxGas
	}
	return gasBaseUSD * pct / 100
}
