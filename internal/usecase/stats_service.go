package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// StrategyProfit is realized profit attributed to one magic.
type StrategyProfit struct {
	Magic  int64   `json:"magic"`
	Label  string  `json:"label"`
	Profit float64 `json:"profit"`
}

// GroupProfit is realized profit attributed to one magic group. A
// magic assigned to several groups contributes its full profit to each
// of them; group views are independent by design.
type GroupProfit struct {
	GroupID int64   `json:"group_id"`
	Name    string  `json:"name"`
	Profit  float64 `json:"profit"`
}

// Aggregates is the period rollup for one account.
type Aggregates struct {
	PeriodProfit  float64          `json:"period_profit"`
	PeriodPercent float64          `json:"period_percent"`
	ByStrategy    []StrategyProfit `json:"by_magic"`
	ByGroup       []GroupProfit    `json:"by_group"`
}

// AggregateFilter optionally narrows an aggregate to one magic or one
// group of magics.
type AggregateFilter struct {
	Magic   *int64
	GroupID *int64
}

// FloatingStrategy is per-magic floating profit from the live
// open-position snapshot.
type FloatingStrategy struct {
	MagicID  int64   `json:"magic"`
	Floating float64 `json:"floating"`
	Percent  float64 `json:"percent"`
}

// OpenSummary reports floating P/L of the current snapshot against the
// balance reference.
type OpenSummary struct {
	AccountID       string             `json:"account_id"`
	Balance         float64            `json:"balance"`
	FloatingTotal   float64            `json:"floating_total"`
	FloatingPercent float64            `json:"floating_percent"`
	ByStrategy      []FloatingStrategy `json:"by_magic"`
}

// StatsService is the read side: period rollups, position listings,
// floating summaries, and cross-account comparison. Pure reads over
// the stored position set, no reconciliation logic.
type StatsService struct {
	positions  domain.PositionRepository
	strategies domain.StrategyProvider
	accounts   domain.AccountStore
	matcher    *DealMatcher
}

func NewStatsService(positions domain.PositionRepository, strategies domain.StrategyProvider, accounts domain.AccountStore) *StatsService {
	return &StatsService{
		positions:  positions,
		strategies: strategies,
		accounts:   accounts,
		matcher:    NewDealMatcher(),
	}
}

// Aggregate rolls up realized profit of closed positions whose exit
// time falls in [from, to]. Open positions are excluded; floating P/L
// is OpenSummary's concern. A zero or unknown balance reference yields
// zero percent, never an error and never Inf/NaN.
func (s *StatsService) Aggregate(ctx context.Context, accountID string, from, to time.Time, filter AggregateFilter) (*Aggregates, error) {
	closed, err := s.positions.ClosedByExitWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read closed positions: %w", err)
	}

	groups, err := s.strategies.Groups(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("read group assignments: %w", err)
	}

	if filter.Magic != nil {
		closed = filterByMagic(closed, *filter.Magic)
	}
	if filter.GroupID != nil {
		closed = filterByGroup(closed, groups, *filter.GroupID)
	}

	agg := &Aggregates{ByStrategy: []StrategyProfit{}, ByGroup: []GroupProfit{}}
	profitByMagic := make(map[int64]float64)
	profitByGroup := make(map[int64]float64)

	for _, p := range closed {
		agg.PeriodProfit += p.Profit
		profitByMagic[p.Magic] += p.Profit
		for _, groupID := range groups[p.Magic] {
			profitByGroup[groupID] += p.Profit
		}
	}

	labels, err := s.strategies.Labels(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	for magic, profit := range profitByMagic {
		label := labels[magic]
		if label == "" {
			label = fmt.Sprintf("Magic %d", magic)
		}
		agg.ByStrategy = append(agg.ByStrategy, StrategyProfit{Magic: magic, Label: label, Profit: profit})
	}
	sort.Slice(agg.ByStrategy, func(i, j int) bool { return agg.ByStrategy[i].Magic < agg.ByStrategy[j].Magic })

	groupList, err := s.strategies.ListGroups(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	nameByID := make(map[int64]string, len(groupList))
	for _, g := range groupList {
		nameByID[g.ID] = g.Name
	}
	for groupID, profit := range profitByGroup {
		agg.ByGroup = append(agg.ByGroup, GroupProfit{GroupID: groupID, Name: nameByID[groupID], Profit: profit})
	}
	sort.Slice(agg.ByGroup, func(i, j int) bool { return agg.ByGroup[i].GroupID < agg.ByGroup[j].GroupID })

	agg.PeriodPercent = percentOf(agg.PeriodProfit, s.balanceRef(ctx, accountID, to))
	return agg, nil
}

// Positions lists closed positions exited in the window plus open
// derived positions entered in it, ordered by entry time.
func (s *StatsService) Positions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Position, error) {
	closed, err := s.positions.ClosedByExitWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read closed positions: %w", err)
	}
	open, err := s.positions.OpenByEntryWindow(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("read open positions: %w", err)
	}

	out := append(closed, open...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].PositionID < out[j].PositionID
	})
	return out, nil
}

// OpenSummary rolls up floating profit of the live snapshot per magic.
func (s *StatsService) OpenSummary(ctx context.Context, accountID string) (*OpenSummary, error) {
	open, err := s.accounts.OpenPositions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("read open snapshot: %w", err)
	}

	balance := s.balanceRef(ctx, accountID, time.Time{})
	summary := &OpenSummary{AccountID: accountID, Balance: balance, ByStrategy: []FloatingStrategy{}}

	byMagic := make(map[int64]float64)
	for _, p := range open {
		byMagic[p.Magic] += p.Profit
		summary.FloatingTotal += p.Profit
	}
	summary.FloatingPercent = percentOf(summary.FloatingTotal, balance)

	for magic, floating := range byMagic {
		summary.ByStrategy = append(summary.ByStrategy, FloatingStrategy{
			MagicID:  magic,
			Floating: floating,
			Percent:  percentOf(floating, balance),
		})
	}
	sort.Slice(summary.ByStrategy, func(i, j int) bool { return summary.ByStrategy[i].MagicID < summary.ByStrategy[j].MagicID })
	return summary, nil
}

// Compare matches two accounts' closed positions for one magic inside
// the window. Only closed positions participate; an open position has
// no complete economic shape to compare yet. A zero tolerance is a
// strict request: only exactly simultaneous entries match. Negative
// values fall back to the default.
func (s *StatsService) Compare(ctx context.Context, accountA, accountB string, magic int64, from, to time.Time, tolerance time.Duration) (*CompareResult, error) {
	if tolerance < 0 {
		tolerance = DefaultMatchTolerance
	}

	a, err := s.positions.ClosedByEntryWindow(ctx, accountA, magic, from, to)
	if err != nil {
		return nil, fmt.Errorf("read positions for %s: %w", accountA, err)
	}
	b, err := s.positions.ClosedByEntryWindow(ctx, accountB, magic, from, to)
	if err != nil {
		return nil, fmt.Errorf("read positions for %s: %w", accountB, err)
	}

	return s.matcher.Match(a, b, tolerance), nil
}

func (s *StatsService) balanceRef(ctx context.Context, accountID string, at time.Time) float64 {
	balance, ok, err := s.accounts.BalanceAt(ctx, accountID, at)
	if err != nil || !ok {
		return 0
	}
	return balance
}

func percentOf(value, balance float64) float64 {
	if balance == 0 {
		return 0
	}
	return value / balance * 100
}

func filterByMagic(positions []domain.Position, magic int64) []domain.Position {
	out := positions[:0]
	for _, p := range positions {
		if p.Magic == magic {
			out = append(out, p)
		}
	}
	return out
}

func filterByGroup(positions []domain.Position, groups map[int64][]int64, groupID int64) []domain.Position {
	out := positions[:0]
	for _, p := range positions {
		for _, id := range groups[p.Magic] {
			if id == groupID {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
