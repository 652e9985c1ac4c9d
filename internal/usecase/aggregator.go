package usecase

import (
	"sort"
	"strings"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// PositionAggregator derives logical positions from trade-kind fills.
// It is a pure transform: same fill multiset in, same position out, no
// clock and no randomness.
type PositionAggregator struct{}

func NewPositionAggregator() *PositionAggregator {
	return &PositionAggregator{}
}

// Build derives one position from the fills sharing its identifier.
// Positions with more than two fills (partial closes, adds) collapse
// to a single entry (first opening fill) and a single exit (last
// closing fill); profit sums over every fill regardless.
func (a *PositionAggregator) Build(positionID int64, fills []domain.Fill) (*domain.Position, error) {
	trades := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		if f.Kind == domain.KindTrade {
			trades = append(trades, f)
		}
	}
	if len(trades) == 0 {
		return nil, nil
	}

	sorted := make([]domain.Fill, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Time.Equal(sorted[j].Time) {
			return sorted[i].Time.Before(sorted[j].Time)
		}
		return sorted[i].Ticket < sorted[j].Ticket
	})

	if err := checkIntegrity(positionID, sorted); err != nil {
		return nil, err
	}

	var entries, exits []domain.Fill
	for _, f := range sorted {
		switch f.Side {
		case domain.EntryIn:
			entries = append(entries, f)
		case domain.EntryOut, domain.EntryOutBy:
			exits = append(exits, f)
		case domain.EntryInOut:
			entries = append(entries, f)
			exits = append(exits, f)
		}
	}

	entry := sorted[0]
	if len(entries) > 0 {
		entry = entries[0]
	}
	var exit *domain.Fill
	if len(exits) > 0 {
		last := exits[len(exits)-1]
		exit = &last
	}

	var profit float64
	magic := sorted[0].Magic
	for _, f := range sorted {
		profit += f.NetProfit()
		if magic == 0 && f.Magic != 0 {
			magic = f.Magic
		}
	}

	p := &domain.Position{
		AccountID:  entry.AccountID,
		PositionID: positionID,
		Magic:      magic,
		Symbol:     entry.Symbol,
		Direction:  entry.Direction,
		Volume:     entry.Volume,
		EntryTime:  entry.Time,
		EntryPrice: entry.Price,
		Profit:     profit,
		Comment:    resolveComment(sorted, entry, exit),
	}
	if exit != nil {
		t := exit.Time
		price := exit.Price
		p.ExitTime = &t
		p.ExitPrice = &price
		p.Closed = true
	}
	return p, nil
}

// BuildAll groups a fill multiset by position identifier and derives
// every position. Balance-kind fills are ignored.
func (a *PositionAggregator) BuildAll(fills []domain.Fill) (map[int64]*domain.Position, error) {
	byPosition := make(map[int64][]domain.Fill)
	for _, f := range fills {
		if f.Kind != domain.KindTrade {
			continue
		}
		byPosition[f.PositionID] = append(byPosition[f.PositionID], f)
	}

	out := make(map[int64]*domain.Position, len(byPosition))
	for id, group := range byPosition {
		p, err := a.Build(id, group)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out[id] = p
		}
	}
	return out, nil
}

// checkIntegrity enforces the grouping invariant: one position's fills
// must agree on symbol and strategy identifier (zero magic is an
// unset marker, not a conflict), and every opening fill must agree on
// direction. Closing fills legitimately report the opposite side.
func checkIntegrity(positionID int64, sorted []domain.Fill) error {
	symbol := ""
	var magic int64
	var openDir domain.Direction
	for _, f := range sorted {
		if f.Symbol != "" {
			if symbol == "" {
				symbol = f.Symbol
			} else if f.Symbol != symbol {
				return &domain.DataIntegrityError{
					PositionID: positionID,
					Tickets:    tickets(sorted),
					Reason:     "mixed symbols",
				}
			}
		}
		if f.Magic != 0 {
			if magic == 0 {
				magic = f.Magic
			} else if f.Magic != magic {
				return &domain.DataIntegrityError{
					PositionID: positionID,
					Tickets:    tickets(sorted),
					Reason:     "conflicting strategy identifiers",
				}
			}
		}
		if f.Side == domain.EntryIn && f.Direction != "" {
			if openDir == "" {
				openDir = f.Direction
			} else if f.Direction != openDir {
				return &domain.DataIntegrityError{
					PositionID: positionID,
					Tickets:    tickets(sorted),
					Reason:     "conflicting directions",
				}
			}
		}
	}
	return nil
}

func tickets(fills []domain.Fill) []int64 {
	out := make([]int64, len(fills))
	for i, f := range fills {
		out[i] = f.Ticket
	}
	return out
}

// resolveComment keeps whatever annotation the broker attached: the
// entry and exit comments when both exist, otherwise the latest
// non-empty one.
func resolveComment(sorted []domain.Fill, entry domain.Fill, exit *domain.Fill) string {
	entryComment := trimComment(entry.Comment)
	exitComment := ""
	if exit != nil {
		exitComment = trimComment(exit.Comment)
	}

	switch {
	case entryComment != "" && exitComment != "":
		if entryComment == exitComment {
			return entryComment
		}
		return entryComment + " | " + exitComment
	case entryComment != "":
		return entryComment
	case exitComment != "":
		return exitComment
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		if c := trimComment(sorted[i].Comment); c != "" {
			return c
		}
	}
	return ""
}

func trimComment(s string) string {
	return strings.TrimSpace(s)
}
