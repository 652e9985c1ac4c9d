package usecase

import (
	"sort"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// DefaultMatchTolerance is the entry-time window inside which two
// positions from different accounts count as the same trade.
const DefaultMatchTolerance = time.Second

// PairKind tells which side(s) of a compared pair are populated.
type PairKind string

const (
	PairMatched      PairKind = "matched"
	PairAccountAOnly PairKind = "account1_only"
	PairAccountBOnly PairKind = "account2_only"
)

// Pair is one row of a cross-account comparison.
type Pair struct {
	Kind PairKind         `json:"kind"`
	A    *domain.Position `json:"account1,omitempty"`
	B    *domain.Position `json:"account2,omitempty"`
	// TimeDiffSec is |entryA - entryB| for matched pairs. Always
	// present: a simultaneous match legitimately reports zero.
	TimeDiffSec float64 `json:"time_diff_sec"`
}

// CompareSummary aggregates a comparison.
type CompareSummary struct {
	Matched      int     `json:"matched"`
	AccountAOnly int     `json:"account1_only"`
	AccountBOnly int     `json:"account2_only"`
	ProfitA      float64 `json:"profit_account1"`
	ProfitB      float64 `json:"profit_account2"`
}

// CompareResult is the full outcome of matching two accounts' closed
// positions for one strategy identifier and period.
type CompareResult struct {
	Pairs   []Pair         `json:"pairs"`
	Summary CompareSummary `json:"summary"`
}

// DealMatcher pairs economically-equivalent trades across two accounts
// by entry-time proximity.
//
// The pairing is greedy nearest-neighbor, not globally-optimal
// bipartite matching: walking account 1 in entry order, each position
// takes the unmatched account 2 candidate with the smallest absolute
// entry-time difference within tolerance (ties to the earliest
// candidate). Greedy is kept deliberately; an optimal matcher would
// change tie-break behavior on clustered timestamps.
type DealMatcher struct{}

func NewDealMatcher() *DealMatcher {
	return &DealMatcher{}
}

// Match pairs closed positions from accounts A and B. Both inputs may
// arrive unordered; output rows interleave chronologically by the
// account A entry time for matched pairs and the position's own entry
// time for unmatched ones.
func (m *DealMatcher) Match(a, b []domain.Position, tolerance time.Duration) *CompareResult {
	if tolerance < 0 {
		tolerance = 0
	}

	sortedA := sortByEntry(a)
	sortedB := sortByEntry(b)
	usedB := make([]bool, len(sortedB))

	result := &CompareResult{Pairs: []Pair{}}

	type row struct {
		pair Pair
		at   time.Time
	}
	var rows []row

	for i := range sortedA {
		pa := &sortedA[i]
		best := -1
		var bestDiff time.Duration
		for j := range sortedB {
			if usedB[j] {
				continue
			}
			diff := pa.EntryTime.Sub(sortedB[j].EntryTime)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				// Candidates are entry-sorted: once past the
				// tolerance on the late side, no later one fits.
				if sortedB[j].EntryTime.After(pa.EntryTime) {
					break
				}
				continue
			}
			if best == -1 || diff < bestDiff {
				best = j
				bestDiff = diff
			}
		}
		if best >= 0 {
			usedB[best] = true
			pb := &sortedB[best]
			rows = append(rows, row{
				pair: Pair{Kind: PairMatched, A: pa, B: pb, TimeDiffSec: bestDiff.Seconds()},
				at:   pa.EntryTime,
			})
			result.Summary.Matched++
		} else {
			rows = append(rows, row{
				pair: Pair{Kind: PairAccountAOnly, A: pa},
				at:   pa.EntryTime,
			})
			result.Summary.AccountAOnly++
		}
		result.Summary.ProfitA += pa.Profit
	}

	for j := range sortedB {
		result.Summary.ProfitB += sortedB[j].Profit
		if usedB[j] {
			continue
		}
		rows = append(rows, row{
			pair: Pair{Kind: PairAccountBOnly, B: &sortedB[j]},
			at:   sortedB[j].EntryTime,
		})
		result.Summary.AccountBOnly++
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	for _, r := range rows {
		result.Pairs = append(result.Pairs, r.pair)
	}
	return result
}

func sortByEntry(positions []domain.Position) []domain.Position {
	out := make([]domain.Position, len(positions))
	copy(out, positions)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].PositionID < out[j].PositionID
	})
	return out
}
