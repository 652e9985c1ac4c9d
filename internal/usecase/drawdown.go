package usecase

import (
	"context"
	"fmt"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// Drawdown is the max adverse excursion of one closed position.
type Drawdown struct {
	Points   float64
	Currency float64
}

// DrawdownCalculator computes max adverse excursion from historical
// ticks. For a buy the worst point is the lowest bid between entry and
// exit; for a sell, the highest ask.
type DrawdownCalculator struct {
	ticks domain.TickSource
}

func NewDrawdownCalculator(ticks domain.TickSource) *DrawdownCalculator {
	return &DrawdownCalculator{ticks: ticks}
}

// Compute returns nil without error when no tick history covers the
// position's lifetime: unknown is nil, never zero.
func (c *DrawdownCalculator) Compute(ctx context.Context, p *domain.Position) (*Drawdown, error) {
	if !p.Closed || p.ExitTime == nil {
		return nil, nil
	}

	ticks, err := c.ticks.Ticks(ctx, p.Symbol, p.EntryTime, *p.ExitTime)
	if err != nil {
		return nil, fmt.Errorf("load ticks for %s: %w", p.Symbol, err)
	}
	if len(ticks) == 0 {
		return nil, nil
	}

	var ddPrice float64
	switch p.Direction {
	case domain.DirectionBuy:
		minBid := ticks[0].Bid
		for _, t := range ticks[1:] {
			if t.Bid < minBid {
				minBid = t.Bid
			}
		}
		ddPrice = minBid - p.EntryPrice
	case domain.DirectionSell:
		maxAsk := ticks[0].Ask
		for _, t := range ticks[1:] {
			if t.Ask > maxAsk {
				maxAsk = t.Ask
			}
		}
		ddPrice = p.EntryPrice - maxAsk
	default:
		return nil, nil
	}

	info, err := c.ticks.SymbolInfo(ctx, p.Symbol)
	if err != nil {
		return nil, fmt.Errorf("symbol info for %s: %w", p.Symbol, err)
	}

	dd := &Drawdown{}
	point := 1.0
	if info != nil && info.Point > 0 {
		point = info.Point
	}
	dd.Points = ddPrice / point

	if info != nil && info.TickSize > 0 && info.TickValue > 0 {
		dd.Currency = (ddPrice / info.TickSize) * info.TickValue * p.Volume
	} else {
		dd.Currency = ddPrice * p.Volume
	}
	return dd, nil
}
