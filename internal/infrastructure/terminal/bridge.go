// Package terminal talks to the MT5 terminal bridge: a websocket
// endpoint exposed by the host running the trading terminal. The
// bridge is one blocking connection; requests are serialized here and
// rate-limited upstream by the sync worker pool.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

type Bridge struct {
	url    string
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

func NewBridge(url string) *Bridge {
	return &Bridge{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Bridge-reported error codes.
const (
	errCodeAuthRequired = "auth_required"
	errCodeTimeout      = "timeout"
)

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// call performs one request/response round-trip. The connection is
// dialed lazily and dropped on any transport error so the next call
// reconnects cleanly.
func (b *Bridge) call(ctx context.Context, method string, params any, out any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
		if err != nil {
			return fmt.Errorf("dial terminal bridge: %w", err)
		}
		b.conn = conn
	}

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)
	_ = b.conn.SetReadDeadline(deadline)

	b.nextID++
	req := request{ID: b.nextID, Method: method, Params: params}
	if err := b.conn.WriteJSON(req); err != nil {
		b.drop()
		return mapTransportErr(ctx, fmt.Errorf("write %s: %w", method, err))
	}

	for {
		var resp response
		if err := b.conn.ReadJSON(&resp); err != nil {
			b.drop()
			return mapTransportErr(ctx, fmt.Errorf("read %s: %w", method, err))
		}
		if resp.ID != req.ID {
			// Stale reply from an abandoned call; skip it.
			continue
		}
		if !resp.OK {
			switch resp.Error {
			case errCodeAuthRequired:
				return domain.ErrAuthRequired
			case errCodeTimeout:
				return domain.ErrTimeout
			default:
				return fmt.Errorf("terminal bridge %s: %s", method, resp.Error)
			}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (b *Bridge) drop() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func mapTransportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrTimeout
	}
	return err
}

// domain.Terminal implementation

func (b *Bridge) IsAuthenticated(ctx context.Context, accountID string) (bool, error) {
	var result struct {
		Authenticated bool `json:"authenticated"`
	}
	params := map[string]any{"account_id": accountID}
	if err := b.call(ctx, "is_authenticated", params, &result); err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			return false, nil
		}
		return false, err
	}
	return result.Authenticated, nil
}

func (b *Bridge) AccountInfo(ctx context.Context, accountID string) (*domain.AccountInfo, error) {
	var info domain.AccountInfo
	params := map[string]any{"account_id": accountID}
	if err := b.call(ctx, "account_info", params, &info); err != nil {
		return nil, err
	}
	if info.AccountID == "" {
		info.AccountID = accountID
	}
	return &info, nil
}

func (b *Bridge) FetchFills(ctx context.Context, accountID string, from, to time.Time) ([]domain.RawFill, error) {
	var result struct {
		Deals []domain.RawFill `json:"deals"`
	}
	params := map[string]any{
		"account_id": accountID,
		"from":       from.UTC().Unix(),
		"to":         to.UTC().Unix(),
	}
	if err := b.call(ctx, "history_deals", params, &result); err != nil {
		return nil, err
	}
	return result.Deals, nil
}

func (b *Bridge) FetchOpenPositions(ctx context.Context, accountID string) ([]domain.RawOpenPosition, *domain.AccountInfo, error) {
	var result struct {
		Positions []domain.RawOpenPosition `json:"positions"`
		Info      domain.AccountInfo       `json:"account_info"`
	}
	params := map[string]any{"account_id": accountID}
	if err := b.call(ctx, "open_positions", params, &result); err != nil {
		return nil, nil, err
	}
	if result.Info.AccountID == "" {
		result.Info.AccountID = accountID
	}
	return result.Positions, &result.Info, nil
}

// domain.TickSource implementation, used for drawdown computation when
// the bridge host keeps tick history.

func (b *Bridge) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]domain.Tick, error) {
	var result struct {
		Ticks []struct {
			Time int64   `json:"time"`
			Bid  float64 `json:"bid"`
			Ask  float64 `json:"ask"`
		} `json:"ticks"`
	}
	params := map[string]any{
		"symbol": symbol,
		"from":   from.UTC().Unix(),
		"to":     to.UTC().Unix(),
	}
	if err := b.call(ctx, "ticks_range", params, &result); err != nil {
		return nil, err
	}
	ticks := make([]domain.Tick, 0, len(result.Ticks))
	for _, t := range result.Ticks {
		ticks = append(ticks, domain.Tick{Time: time.Unix(t.Time, 0).UTC(), Bid: t.Bid, Ask: t.Ask})
	}
	return ticks, nil
}

func (b *Bridge) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	var info domain.SymbolInfo
	params := map[string]any{"symbol": symbol}
	if err := b.call(ctx, "symbol_info", params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
