package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

func TestNormalizeClassifiesKinds(t *testing.T) {
	n := usecase.NewFillNormalizer()

	tests := []struct {
		name     string
		dealType int
		wantKind domain.RecordKind
		wantDir  domain.Direction
	}{
		{"Buy deal", 0, domain.KindTrade, domain.DirectionBuy},
		{"Sell deal", 1, domain.KindTrade, domain.DirectionSell},
		{"Balance operation", 2, domain.KindBalance, ""},
		{"Unknown type", 7, domain.KindOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fills, err := n.Normalize("acc", []domain.RawFill{{
				Ticket:     10,
				PositionID: 500,
				Type:       tt.dealType,
				Time:       1706000000,
			}})
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if fills[0].Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", fills[0].Kind, tt.wantKind)
			}
			if fills[0].Direction != tt.wantDir {
				t.Errorf("direction = %v, want %v", fills[0].Direction, tt.wantDir)
			}
		})
	}
}

func TestNormalizeTimesAreUTC(t *testing.T) {
	n := usecase.NewFillNormalizer()

	fills, err := n.Normalize("acc", []domain.RawFill{{
		Ticket:     1,
		PositionID: 500,
		Time:       1706000000,
	}})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	got := fills[0].Time
	if got.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", got.Location())
	}
	if got.Unix() != 1706000000 {
		t.Errorf("timestamp = %d, want 1706000000", got.Unix())
	}
}

func TestNormalizeRejectsWholeBatch(t *testing.T) {
	n := usecase.NewFillNormalizer()

	raws := []domain.RawFill{
		{Ticket: 1, PositionID: 500, Time: 1706000000},
		{Ticket: 2, PositionID: 0, Time: 1706000001}, // trade without position id
		{Ticket: 3, PositionID: 501, Time: 0},        // no timestamp
	}
	fills, err := n.Normalize("acc", raws)
	if fills != nil {
		t.Fatalf("expected no fills from rejected batch, got %d", len(fills))
	}

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Rejected) != 2 {
		t.Fatalf("rejected = %d records, want 2", len(verr.Rejected))
	}
	if verr.Rejected[0].Ticket != 2 || verr.Rejected[1].Ticket != 3 {
		t.Errorf("rejected tickets = %v, want [2 3]", verr.Rejected)
	}
}

func TestNormalizeBalanceOpWithoutPosition(t *testing.T) {
	n := usecase.NewFillNormalizer()

	// Balance operations carry no position id; the ticket stands in.
	fills, err := n.Normalize("acc", []domain.RawFill{{
		Ticket: 42,
		Type:   2,
		Time:   1706000000,
		Profit: 1000,
	}})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if fills[0].PositionID != 42 {
		t.Errorf("position id = %d, want ticket fallback 42", fills[0].PositionID)
	}
	if fills[0].Kind != domain.KindBalance {
		t.Errorf("kind = %v, want balance", fills[0].Kind)
	}
}
