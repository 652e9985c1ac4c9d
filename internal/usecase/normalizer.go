package usecase

import (
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// MT5 deal type codes.
const (
	dealTypeBuy     = 0
	dealTypeSell    = 1
	dealTypeBalance = 2
)

// MT5 deal entry codes.
const (
	dealEntryIn    = 0
	dealEntryOut   = 1
	dealEntryInOut = 2
	dealEntryOutBy = 3
)

// FillNormalizer converts raw bridge records into canonical fills.
// Terminal timestamps are UTC at the source; no display offset is ever
// applied here, conversion for presentation happens at the read edge.
type FillNormalizer struct{}

func NewFillNormalizer() *FillNormalizer {
	return &FillNormalizer{}
}

// Normalize converts a batch. The whole batch is rejected with a
// ValidationError when any record lacks a ticket, a position
// identifier, or a timestamp; callers always learn exactly what was
// refused and why.
func (n *FillNormalizer) Normalize(accountID string, raws []domain.RawFill) ([]domain.Fill, error) {
	var rejected []domain.RejectedFill
	fills := make([]domain.Fill, 0, len(raws))

	for _, r := range raws {
		kind := classifyKind(r.Type)
		if r.Ticket == 0 {
			rejected = append(rejected, domain.RejectedFill{Ticket: r.Ticket, Reason: "missing ticket"})
			continue
		}
		if r.Time == 0 {
			rejected = append(rejected, domain.RejectedFill{Ticket: r.Ticket, Reason: "missing timestamp"})
			continue
		}
		positionID := r.PositionID
		if positionID == 0 {
			// Balance operations carry no position; anything else
			// without one is malformed. The terminal reports balance
			// rows with the ticket standing in for the position.
			if kind != domain.KindBalance {
				rejected = append(rejected, domain.RejectedFill{Ticket: r.Ticket, Reason: "missing position id"})
				continue
			}
			positionID = r.Ticket
		}

		fills = append(fills, domain.Fill{
			AccountID:  accountID,
			Ticket:     r.Ticket,
			PositionID: positionID,
			Magic:      r.Magic,
			Symbol:     r.Symbol,
			Direction:  directionFromType(r.Type),
			Side:       entrySide(r.Entry),
			Kind:       kind,
			Volume:     r.Volume,
			Price:      r.Price,
			Time:       time.Unix(r.Time, 0).UTC(),
			Profit:     r.Profit,
			Commission: r.Commission,
			Swap:       r.Swap,
			Comment:    r.Comment,
		})
	}

	if len(rejected) > 0 {
		return nil, &domain.ValidationError{Rejected: rejected}
	}
	return fills, nil
}

func classifyKind(dealType int) domain.RecordKind {
	switch dealType {
	case dealTypeBuy, dealTypeSell:
		return domain.KindTrade
	case dealTypeBalance:
		return domain.KindBalance
	default:
		return domain.KindOther
	}
}

func directionFromType(dealType int) domain.Direction {
	switch dealType {
	case dealTypeBuy:
		return domain.DirectionBuy
	case dealTypeSell:
		return domain.DirectionSell
	default:
		return ""
	}
}

func entrySide(entry int) domain.EntrySide {
	switch entry {
	case dealEntryIn:
		return domain.EntryIn
	case dealEntryOut:
		return domain.EntryOut
	case dealEntryInOut:
		return domain.EntryInOut
	case dealEntryOutBy:
		return domain.EntryOutBy
	default:
		return domain.EntryNone
	}
}
