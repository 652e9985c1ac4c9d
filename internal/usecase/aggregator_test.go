package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

func tradeFill(ticket, position int64, side domain.EntrySide, at time.Time, price, profit float64) domain.Fill {
	return domain.Fill{
		AccountID:  "acc",
		Ticket:     ticket,
		PositionID: position,
		Symbol:     "EURUSD",
		Direction:  domain.DirectionBuy,
		Side:       side,
		Kind:       domain.KindTrade,
		Volume:     1,
		Price:      price,
		Time:       at,
		Profit:     profit,
	}
}

func TestBuildEntryExitPair(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	p, err := a.Build(500, []domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
		tradeFill(2, 500, domain.EntryOut, t1, 110, 50),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected a position")
	}
	if p.PositionID != 500 {
		t.Errorf("position id = %d, want 500", p.PositionID)
	}
	if !p.Closed {
		t.Error("position should be closed")
	}
	if p.EntryPrice != 100 {
		t.Errorf("entry price = %v, want 100", p.EntryPrice)
	}
	if p.ExitPrice == nil || *p.ExitPrice != 110 {
		t.Errorf("exit price = %v, want 110", p.ExitPrice)
	}
	if p.Profit != 50 {
		t.Errorf("profit = %v, want 50", p.Profit)
	}
}

func TestBuildOpenPosition(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	p, err := a.Build(500, []domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Closed {
		t.Error("single opening fill must yield an open position")
	}
	if p.ExitTime != nil || p.ExitPrice != nil {
		t.Error("open position must have no exit fields")
	}
}

func TestBuildPartialCloseCollapses(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	p, err := a.Build(500, []domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
		tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 105, 25),
		tradeFill(3, 500, domain.EntryOut, t0.Add(2*time.Hour), 110, 30),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !p.EntryTime.Equal(t0) {
		t.Errorf("entry time = %v, want first opening fill %v", p.EntryTime, t0)
	}
	want := t0.Add(2 * time.Hour)
	if p.ExitTime == nil || !p.ExitTime.Equal(want) {
		t.Errorf("exit time = %v, want last closing fill %v", p.ExitTime, want)
	}
	if p.Profit != 55 {
		t.Errorf("profit = %v, want 55", p.Profit)
	}
}

func TestBuildProfitConservation(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	fills := []domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
		tradeFill(2, 500, domain.EntryOut, t0.Add(time.Minute), 101, 12.5),
		tradeFill(3, 500, domain.EntryOut, t0.Add(2*time.Minute), 102, -3.25),
	}
	fills[0].Commission = -0.5
	fills[1].Swap = -0.1

	var want float64
	for _, f := range fills {
		want += f.NetProfit()
	}

	p, err := a.Build(500, fills)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Profit != want {
		t.Errorf("profit = %v, want sum of fill net profits %v", p.Profit, want)
	}
}

func TestBuildOrderIndependent(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	fills := []domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
		tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 105, 25),
		tradeFill(3, 500, domain.EntryOut, t0.Add(2*time.Hour), 110, 30),
	}
	reversed := []domain.Fill{fills[2], fills[1], fills[0]}

	p1, err := a.Build(500, fills)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	p2, err := a.Build(500, reversed)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !p1.EntryTime.Equal(p2.EntryTime) || p1.EntryPrice != p2.EntryPrice {
		t.Error("entry fields differ depending on fill order")
	}
	if !p1.ExitTime.Equal(*p2.ExitTime) || *p1.ExitPrice != *p2.ExitPrice {
		t.Error("exit fields differ depending on fill order")
	}
	if p1.Profit != p2.Profit || p1.Direction != p2.Direction {
		t.Error("derived fields differ depending on fill order")
	}
}

func TestBuildMagicFromFirstNonZero(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	entry := tradeFill(1, 500, domain.EntryIn, t0, 100, 0)
	exit := tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 110, 50)
	exit.Magic = 101

	p, err := a.Build(500, []domain.Fill{entry, exit})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Magic != 101 {
		t.Errorf("magic = %d, want 101", p.Magic)
	}
}

func TestBuildIntegrityErrors(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(entry, other *domain.Fill)
		reason string
	}{
		{
			name:   "mixed symbols",
			mutate: func(_, other *domain.Fill) { other.Symbol = "GBPUSD" },
			reason: "mixed symbols",
		},
		{
			name: "conflicting magics",
			mutate: func(entry, other *domain.Fill) {
				entry.Magic = 101
				other.Magic = 202
			},
			reason: "conflicting strategy identifiers",
		},
		{
			name: "conflicting opening directions",
			mutate: func(_, other *domain.Fill) {
				other.Side = domain.EntryIn
				other.Direction = domain.DirectionSell
			},
			reason: "conflicting directions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tradeFill(1, 500, domain.EntryIn, t0, 100, 0)
			other := tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 110, 50)
			tt.mutate(&entry, &other)

			_, err := a.Build(500, []domain.Fill{entry, other})
			var derr *domain.DataIntegrityError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
			if derr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", derr.Reason, tt.reason)
			}
			if derr.PositionID != 500 {
				t.Errorf("position id = %d, want 500", derr.PositionID)
			}
		})
	}
}

func TestBuildClosingDirectionIsNotAConflict(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	// A closed buy reports its closing fill as a sell. That is how the
	// terminal books it, not a data error.
	entry := tradeFill(1, 500, domain.EntryIn, t0, 100, 0)
	exit := tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 110, 50)
	exit.Direction = domain.DirectionSell

	p, err := a.Build(500, []domain.Fill{entry, exit})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Direction != domain.DirectionBuy {
		t.Errorf("direction = %v, want opening side buy", p.Direction)
	}
}

func TestBuildCommentResolution(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		entryComment string
		exitComment  string
		want         string
	}{
		{"both distinct", "open note", "tp hit", "open note | tp hit"},
		{"both equal", "robot", "robot", "robot"},
		{"entry only", "open note", "", "open note"},
		{"exit only", "", "sl hit", "sl hit"},
		{"none", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := tradeFill(1, 500, domain.EntryIn, t0, 100, 0)
			exit := tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 110, 50)
			entry.Comment = tt.entryComment
			exit.Comment = tt.exitComment

			p, err := a.Build(500, []domain.Fill{entry, exit})
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if p.Comment != tt.want {
				t.Errorf("comment = %q, want %q", p.Comment, tt.want)
			}
		})
	}
}

func TestBuildAllGroupsByPosition(t *testing.T) {
	a := usecase.NewPositionAggregator()
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	balance := domain.Fill{
		AccountID: "acc", Ticket: 99, PositionID: 99,
		Kind: domain.KindBalance, Time: t0, Profit: 1000,
	}
	positions, err := a.BuildAll([]domain.Fill{
		tradeFill(1, 500, domain.EntryIn, t0, 100, 0),
		tradeFill(2, 500, domain.EntryOut, t0.Add(time.Hour), 110, 50),
		tradeFill(3, 501, domain.EntryIn, t0.Add(time.Minute), 200, 0),
		balance,
	})
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("positions = %d, want 2 (balance rows ignored)", len(positions))
	}
	if !positions[500].Closed {
		t.Error("position 500 should be closed")
	}
	if positions[501].Closed {
		t.Error("position 501 should be open")
	}
}
