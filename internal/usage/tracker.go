// Package usage accumulates token counts reported by the generation API and
// converts them into an estimated dollar cost.
package usage

import "time"

// PriceTable holds per-million-token rates in USD.
type PriceTable struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheWrite float64 `json:"cache_write"`
	CacheRead  float64 `json:"cache_read"`
}

// DefaultPrices is the Claude Sonnet price table.
var DefaultPrices = PriceTable{
	Input:      3.00,
	Output:     15.00,
	CacheWrite: 3.75,
	CacheRead:  0.30,
}

// Ledger is the running usage total for one session. Mutated only after a
// confirmed successful API response; failed calls contribute nothing.
type Ledger struct {
	CallsMade        int64   `json:"calls_made"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	CacheWriteTokens int64   `json:"cache_write_tokens"`
	CacheReadTokens  int64   `json:"cache_read_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// Summary is a ledger plus derived session-rate figures.
type Summary struct {
	Ledger
	SessionDuration time.Duration `json:"session_duration"`
	CallsPerHour    float64       `json:"calls_per_hour"`
}

// Tracker owns a Ledger and the price table used to extend it. Like the
// limiter, it is per-session state serialized by the session lock.
type Tracker struct {
	prices  PriceTable
	ledger  Ledger
	started time.Time
}

// NewTracker creates a Tracker priced by the given table, started at now.
func NewTracker(prices PriceTable, now time.Time) *Tracker {
	if prices == (PriceTable{}) {
		prices = DefaultPrices
	}
	return &Tracker{prices: prices, started: now}
}

// Record adds one successful call's token counts to the ledger. Missing cache
// counts are passed as zero by callers.
func (t *Tracker) Record(input, output, cacheWrite, cacheRead int64) {
	t.ledger.CallsMade++
	t.ledger.InputTokens += input
	t.ledger.OutputTokens += output
	t.ledger.CacheWriteTokens += cacheWrite
	t.ledger.CacheReadTokens += cacheRead
	t.ledger.EstimatedCost += Cost(t.prices, input, output, cacheWrite, cacheRead)
}

// Cost computes the dollar cost of a single call under the given table.
func Cost(p PriceTable, input, output, cacheWrite, cacheRead int64) float64 {
	return (float64(input)*p.Input +
		float64(output)*p.Output +
		float64(cacheWrite)*p.CacheWrite +
		float64(cacheRead)*p.CacheRead) / 1e6
}

// Ledger returns a copy of the current totals.
func (t *Tracker) Ledger() Ledger {
	return t.ledger
}

// Summary returns the totals plus the calls-per-hour rate for the session so
// far. A small epsilon keeps the rate finite right after session start.
func (t *Tracker) Summary(now time.Time) Summary {
	const epsilonHours = 1.0 / 3600 // one second

	elapsed := now.Sub(t.started)
	hours := elapsed.Hours()
	if hours < epsilonHours {
		hours = epsilonHours
	}
	return Summary{
		Ledger:          t.ledger,
		SessionDuration: elapsed,
		CallsPerHour:    float64(t.ledger.CallsMade) / hours,
	}
}

// Reset clears the ledger and restarts the session clock. The only way the
// totals ever decrease.
func (t *Tracker) Reset(now time.Time) {
	t.ledger = Ledger{}
	t.started = now
}
