package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

const defaultHistoryDays = 30

// StrategyCount is one row of a sync summary: how many positions a
// strategy gained in this run.
type StrategyCount struct {
	Magic int64  `json:"magic"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SyncResult reports what an incremental sync changed.
type SyncResult struct {
	AccountID    string          `json:"account_id"`
	NewFills     int             `json:"new_fills"`
	NewPositions int             `json:"new_positions"`
	ByStrategy   []StrategyCount `json:"by_strategy"`
}

// SyncService pulls deal history and open positions from the terminal
// into the local store. Terminal round-trips go through the bounded
// worker pool; at most one sync per account runs at a time, a second
// request is rejected with ErrSyncInProgress.
type SyncService struct {
	terminal   domain.Terminal
	fills      domain.FillRepository
	positions  domain.PositionRepository
	strategies domain.StrategyStore
	accounts   domain.AccountStore
	pool       *TerminalPool

	normalizer *FillNormalizer
	aggregator *PositionAggregator
	drawdown   *DrawdownCalculator

	fetchTimeout time.Duration
	timeNow      func() time.Time // for testing
	log          *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewSyncService(
	terminal domain.Terminal,
	fills domain.FillRepository,
	positions domain.PositionRepository,
	strategies domain.StrategyStore,
	accounts domain.AccountStore,
	pool *TerminalPool,
	fetchTimeout time.Duration,
	log *zap.Logger,
) *SyncService {
	return &SyncService{
		terminal:     terminal,
		fills:        fills,
		positions:    positions,
		strategies:   strategies,
		accounts:     accounts,
		pool:         pool,
		normalizer:   NewFillNormalizer(),
		aggregator:   NewPositionAggregator(),
		fetchTimeout: fetchTimeout,
		timeNow:      time.Now,
		log:          log,
		inFlight:     make(map[string]bool),
	}
}

// EnableDrawdown attaches a tick source so newly closed positions get
// their max adverse excursion computed after each sync.
func (s *SyncService) EnableDrawdown(ticks domain.TickSource) {
	s.drawdown = NewDrawdownCalculator(ticks)
}

// Sync fetches deal history for [from, to], stores only fills with
// unseen tickets, and rebuilds every position touched by new fills.
// Zero from/to fall back to the account's history start (or 30 days
// back) and now plus one day; the pad absorbs terminal clock skew.
func (s *SyncService) Sync(ctx context.Context, accountID string, from, to time.Time) (*SyncResult, error) {
	if !s.acquire(accountID) {
		return nil, domain.ErrSyncInProgress
	}
	defer s.release(accountID)

	runID := ulid.Make().String()
	log := s.log.With(zap.String("run", runID), zap.String("account", accountID))

	if from.IsZero() {
		from = s.defaultFrom(ctx, accountID)
	}
	if to.IsZero() {
		to = s.timeNow().UTC().Add(24 * time.Hour)
	}

	var (
		raws []domain.RawFill
		info *domain.AccountInfo
	)
	if err := s.withTerminal(ctx, func(tctx context.Context) error {
		ok, err := s.terminal.IsAuthenticated(tctx, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAuthRequired
		}
		if info, err = s.terminal.AccountInfo(tctx, accountID); err != nil {
			return err
		}
		raws, err = s.terminal.FetchFills(tctx, accountID, from, to)
		return err
	}); err != nil {
		log.Warn("history sync fetch failed", zap.Error(err))
		return nil, err
	}

	if err := s.accounts.EnsureAccount(ctx, info); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	fills, err := s.normalizer.Normalize(accountID, raws)
	if err != nil {
		log.Warn("fill batch rejected", zap.Error(err))
		return nil, err
	}

	inserted, err := s.fills.UpsertFills(ctx, accountID, fills)
	if err != nil {
		return nil, fmt.Errorf("store fills: %w", err)
	}

	result, err := s.rebuildTouched(ctx, accountID, inserted)
	if err != nil {
		return nil, err
	}
	result.NewFills = len(inserted)

	log.Info("history sync complete",
		zap.Int("fetched", len(raws)),
		zap.Int("new_fills", result.NewFills),
		zap.Int("new_positions", result.NewPositions))
	return result, nil
}

// rebuildTouched re-derives exactly the positions whose fill sets
// changed, bounding the cost of a sync to its delta.
func (s *SyncService) rebuildTouched(ctx context.Context, accountID string, inserted []domain.Fill) (*SyncResult, error) {
	touched := make(map[int64]bool)
	magics := make(map[int64]bool)
	for _, f := range inserted {
		if f.Kind != domain.KindTrade {
			continue
		}
		touched[f.PositionID] = true
		if f.Magic != 0 {
			magics[f.Magic] = true
		}
	}

	if len(magics) > 0 {
		ids := make([]int64, 0, len(magics))
		for id := range magics {
			ids = append(ids, id)
		}
		if err := s.strategies.EnsureMagics(ctx, accountID, ids); err != nil {
			return nil, fmt.Errorf("register magics: %w", err)
		}
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &SyncResult{AccountID: accountID, ByStrategy: []StrategyCount{}}
	countByMagic := make(map[int64]int)
	var closed []*domain.Position

	for _, id := range ids {
		group, err := s.fills.FillsByPosition(ctx, accountID, id)
		if err != nil {
			return nil, fmt.Errorf("read fills for position %d: %w", id, err)
		}
		pos, err := s.aggregator.Build(id, group)
		if err != nil {
			return nil, err
		}
		if pos == nil {
			continue
		}
		created, err := s.positions.UpsertPosition(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("store position %d: %w", id, err)
		}
		if created {
			result.NewPositions++
			countByMagic[pos.Magic]++
		}
		if pos.Closed {
			closed = append(closed, pos)
		}
	}

	if len(countByMagic) > 0 {
		labels, err := s.strategies.Labels(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("load labels: %w", err)
		}
		for magic, count := range countByMagic {
			label := labels[magic]
			if label == "" {
				label = fmt.Sprintf("Magic %d", magic)
			}
			result.ByStrategy = append(result.ByStrategy, StrategyCount{Magic: magic, Label: label, Count: count})
		}
		sort.Slice(result.ByStrategy, func(i, j int) bool {
			if result.ByStrategy[i].Count != result.ByStrategy[j].Count {
				return result.ByStrategy[i].Count > result.ByStrategy[j].Count
			}
			return result.ByStrategy[i].Magic < result.ByStrategy[j].Magic
		})
	}

	s.computeDrawdowns(ctx, accountID, closed)
	return result, nil
}

// computeDrawdowns is best effort: a missing tick range never fails the
// sync, the fields just stay unknown.
func (s *SyncService) computeDrawdowns(ctx context.Context, accountID string, closed []*domain.Position) {
	if s.drawdown == nil {
		return
	}
	for _, pos := range closed {
		dd, err := s.drawdown.Compute(ctx, pos)
		if err != nil {
			s.log.Warn("drawdown computation failed",
				zap.String("account", accountID),
				zap.Int64("position", pos.PositionID),
				zap.Error(err))
			continue
		}
		if dd == nil {
			continue
		}
		if err := s.positions.SaveDrawdown(ctx, accountID, pos.PositionID, dd.Points, dd.Currency); err != nil {
			s.log.Warn("drawdown save failed",
				zap.String("account", accountID),
				zap.Int64("position", pos.PositionID),
				zap.Error(err))
		}
	}
}

// SyncOpen replaces the live open-position snapshot for the account
// and refreshes the stored balance reference.
func (s *SyncService) SyncOpen(ctx context.Context, accountID string) error {
	if !s.acquire(accountID) {
		return domain.ErrSyncInProgress
	}
	defer s.release(accountID)

	var (
		raws []domain.RawOpenPosition
		info *domain.AccountInfo
	)
	if err := s.withTerminal(ctx, func(tctx context.Context) error {
		ok, err := s.terminal.IsAuthenticated(tctx, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAuthRequired
		}
		raws, info, err = s.terminal.FetchOpenPositions(tctx, accountID)
		return err
	}); err != nil {
		s.log.Warn("open positions sync failed", zap.String("account", accountID), zap.Error(err))
		return err
	}

	if err := s.accounts.EnsureAccount(ctx, info); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	open := make([]domain.OpenPosition, 0, len(raws))
	for _, r := range raws {
		open = append(open, domain.OpenPosition{
			AccountID:    accountID,
			PositionID:   r.Ticket,
			Magic:        r.Magic,
			Symbol:       r.Symbol,
			Direction:    directionFromType(r.Type),
			Volume:       r.Volume,
			EntryTime:    time.Unix(r.Time, 0).UTC(),
			EntryPrice:   r.PriceOpen,
			CurrentPrice: r.PriceCurrent,
			Profit:       r.Profit,
			Swap:         r.Swap,
		})
	}

	if err := s.accounts.ReplaceOpenPositions(ctx, accountID, open); err != nil {
		return fmt.Errorf("store open positions: %w", err)
	}
	s.log.Info("open positions synced", zap.String("account", accountID), zap.Int("count", len(open)))
	return nil
}

// withTerminal runs fn on a pool worker under the fetch deadline and
// maps a blown deadline to ErrTimeout so callers can tell "terminal
// unresponsive" from "nothing changed".
func (s *SyncService) withTerminal(ctx context.Context, fn func(context.Context) error) error {
	var callErr error
	err := s.pool.Run(ctx, func() {
		tctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		callErr = fn(tctx)
	})
	if err == nil {
		err = callErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	return err
}

func (s *SyncService) defaultFrom(ctx context.Context, accountID string) time.Time {
	start, err := s.accounts.HistoryStart(ctx, accountID)
	if err == nil && start != nil {
		return *start
	}
	return s.timeNow().UTC().AddDate(0, 0, -defaultHistoryDays)
}

func (s *SyncService) acquire(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[accountID] {
		return false
	}
	s.inFlight[accountID] = true
	return true
}

func (s *SyncService) release(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, accountID)
}
