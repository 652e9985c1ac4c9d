package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/web"
)

type fakeTerminal struct {
	authenticated bool
	fills         []domain.RawFill
}

func (f *fakeTerminal) IsAuthenticated(ctx context.Context, accountID string) (bool, error) {
	return f.authenticated, nil
}

func (f *fakeTerminal) AccountInfo(ctx context.Context, accountID string) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{AccountID: accountID, Balance: 10000}, nil
}

func (f *fakeTerminal) FetchFills(ctx context.Context, accountID string, from, to time.Time) ([]domain.RawFill, error) {
	return f.fills, nil
}

func (f *fakeTerminal) FetchOpenPositions(ctx context.Context, accountID string) ([]domain.RawOpenPosition, *domain.AccountInfo, error) {
	return nil, &domain.AccountInfo{AccountID: accountID, Balance: 10000}, nil
}

// fakeStore backs every repository interface with in-memory maps.
type fakeStore struct {
	mu        sync.Mutex
	fills     map[int64]domain.Fill
	positions map[int64]domain.Position
	labels    map[int64]string
	groups    map[int64]domain.MagicGroup
	assigned  map[int64][]int64 // group -> magics
	nextGroup int64
	accounts  map[string]domain.Account
	balance   float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fills:     make(map[int64]domain.Fill),
		positions: make(map[int64]domain.Position),
		labels:    make(map[int64]string),
		groups:    make(map[int64]domain.MagicGroup),
		assigned:  make(map[int64][]int64),
		accounts:  make(map[string]domain.Account),
		nextGroup: 1,
	}
}

func (f *fakeStore) UpsertFills(ctx context.Context, accountID string, fills []domain.Fill) ([]domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var inserted []domain.Fill
	for _, fl := range fills {
		if _, ok := f.fills[fl.Ticket]; ok {
			continue
		}
		f.fills[fl.Ticket] = fl
		inserted = append(inserted, fl)
	}
	return inserted, nil
}

func (f *fakeStore) FillsByPosition(ctx context.Context, accountID string, positionID int64) ([]domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Fill
	for _, fl := range f.fills {
		if fl.PositionID == positionID {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertPosition(ctx context.Context, p *domain.Position) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.positions[p.PositionID]
	f.positions[p.PositionID] = *p
	return !exists, nil
}

func (f *fakeStore) ClosedByExitWindow(ctx context.Context, accountID string, from, to time.Time) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, p := range f.positions {
		if p.Closed && p.ExitTime != nil && !p.ExitTime.Before(from) && !p.ExitTime.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ClosedByEntryWindow(ctx context.Context, accountID string, magic int64, from, to time.Time) ([]domain.Position, error) {
	return nil, nil
}

func (f *fakeStore) OpenByEntryWindow(ctx context.Context, accountID string, from, to time.Time) ([]domain.Position, error) {
	return nil, nil
}

func (f *fakeStore) SaveDrawdown(ctx context.Context, accountID string, positionID int64, points, currency float64) error {
	return nil
}

func (f *fakeStore) Labels(ctx context.Context, accountID string) (map[int64]string, error) {
	return f.labels, nil
}

func (f *fakeStore) Groups(ctx context.Context, accountID string) (map[int64][]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64][]int64)
	for groupID, magics := range f.assigned {
		for _, m := range magics {
			out[m] = append(out[m], groupID)
		}
	}
	return out, nil
}

func (f *fakeStore) ListGroups(ctx context.Context, accountID string) ([]domain.MagicGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MagicGroup, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeStore) EnsureMagics(ctx context.Context, accountID string, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if _, ok := f.labels[id]; !ok {
			f.labels[id] = ""
		}
	}
	return nil
}

func (f *fakeStore) ListMagics(ctx context.Context, accountID string) ([]domain.Magic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Magic
	for id, label := range f.labels {
		out = append(out, domain.Magic{AccountID: accountID, ID: id, Label: label})
	}
	return out, nil
}

func (f *fakeStore) UpdateLabels(ctx context.Context, accountID string, labels map[int64]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, label := range labels {
		f.labels[id] = label
	}
	return nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, g *domain.MagicGroup) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextGroup
	f.nextGroup++
	g.ID = id
	f.groups[id] = *g
	return id, nil
}

func (f *fakeStore) UpdateGroup(ctx context.Context, g *domain.MagicGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[g.ID] = *g
	return nil
}

func (f *fakeStore) DeleteGroup(ctx context.Context, accountID string, groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, groupID)
	delete(f.assigned, groupID)
	return nil
}

func (f *fakeStore) ReplaceAssignments(ctx context.Context, accountID string, groupID int64, magicIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[groupID] = magicIDs
	return nil
}

func (f *fakeStore) EnsureAccount(ctx context.Context, info *domain.AccountInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[info.AccountID]; !ok {
		f.accounts[info.AccountID] = domain.Account{AccountID: info.AccountID, CreatedAt: time.Now()}
	}
	f.balance = info.Balance
	return nil
}

func (f *fakeStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) HistoryStart(ctx context.Context, accountID string) (*time.Time, error) {
	return nil, nil
}

func (f *fakeStore) SetHistoryStart(ctx context.Context, accountID string, start *time.Time) error {
	return nil
}

func (f *fakeStore) SetLabel(ctx context.Context, accountID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[accountID]
	a.AccountID = accountID
	a.Label = label
	f.accounts[accountID] = a
	return nil
}

func (f *fakeStore) BalanceAt(ctx context.Context, accountID string, at time.Time) (float64, bool, error) {
	return f.balance, f.balance != 0, nil
}

func (f *fakeStore) ReplaceOpenPositions(ctx context.Context, accountID string, positions []domain.OpenPosition) error {
	return nil
}

func (f *fakeStore) OpenPositions(ctx context.Context, accountID string) ([]domain.OpenPosition, error) {
	return nil, nil
}

func newTestServer(t *testing.T, term *fakeTerminal, store *fakeStore) *httptest.Server {
	t.Helper()
	pool := usecase.NewTerminalPool(2)
	t.Cleanup(pool.Close)
	syncSvc := usecase.NewSyncService(term, store, store, store, store, pool, 5*time.Second, zap.NewNop())
	statsSvc := usecase.NewStatsService(store, store, store)
	srv := web.NewServer(0, syncSvc, statsSvc, store, store, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestSyncHistoryEndpoint(t *testing.T) {
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)
	term := &fakeTerminal{
		authenticated: true,
		fills: []domain.RawFill{
			{Ticket: 1, PositionID: 500, Magic: 101, Symbol: "EURUSD", Type: 0, Entry: 0, Volume: 1, Price: 100, Time: t0.Unix()},
			{Ticket: 2, PositionID: 500, Magic: 101, Symbol: "EURUSD", Type: 0, Entry: 1, Volume: 1, Price: 110, Time: t0.Add(time.Hour).Unix(), Profit: 50},
		},
	}
	ts := newTestServer(t, term, newFakeStore())

	resp := postJSON(t, ts.URL+"/api/sync/history", map[string]any{"account_id": "acc"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		AccountID    string `json:"account_id"`
		NewFills     int    `json:"new_fills"`
		NewPositions int    `json:"new_positions"`
		ByStrategy   []struct {
			Magic int64  `json:"magic"`
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"by_strategy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.NewFills != 2 || result.NewPositions != 1 {
		t.Errorf("result = %+v, want 2 fills / 1 position", result)
	}
	if len(result.ByStrategy) != 1 || result.ByStrategy[0].Magic != 101 {
		t.Errorf("by_strategy = %+v", result.ByStrategy)
	}
}

func TestSyncHistoryNeedsCredentials(t *testing.T) {
	ts := newTestServer(t, &fakeTerminal{authenticated: false}, newFakeStore())

	resp := postJSON(t, ts.URL+"/api/sync/history", map[string]any{"account_id": "acc"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "needs_credentials" {
		t.Errorf("status field = %q, want needs_credentials", body["status"])
	}
}

func TestSyncHistoryRejectedBatch(t *testing.T) {
	term := &fakeTerminal{
		authenticated: true,
		fills:         []domain.RawFill{{Ticket: 1, PositionID: 500, Type: 0, Time: 0}},
	}
	ts := newTestServer(t, term, newFakeStore())

	resp := postJSON(t, ts.URL+"/api/sync/history", map[string]any{"account_id": "acc"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Status   string                `json:"status"`
		Rejected []domain.RejectedFill `json:"rejected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "rejected" || len(body.Rejected) != 1 {
		t.Errorf("body = %+v, want one rejected record", body)
	}
}

func TestSyncHistoryRequiresAccountID(t *testing.T) {
	ts := newTestServer(t, &fakeTerminal{authenticated: true}, newFakeStore())

	resp := postJSON(t, ts.URL+"/api/sync/history", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAggregatesEndpoint(t *testing.T) {
	t0 := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.balance = 10000
	exit := t0.Add(time.Hour)
	price := 110.0
	store.positions[500] = domain.Position{
		AccountID: "acc", PositionID: 500, Magic: 101, Symbol: "EURUSD",
		Direction: domain.DirectionBuy, Volume: 1, EntryTime: t0, EntryPrice: 100,
		ExitTime: &exit, ExitPrice: &price, Profit: 50, Closed: true,
	}
	ts := newTestServer(t, &fakeTerminal{}, store)

	url := ts.URL + "/api/aggregates?account_id=acc&from=" + t0.Format(time.RFC3339) +
		"&to=" + t0.Add(2*time.Hour).Format(time.RFC3339)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var agg struct {
		PeriodProfit  float64 `json:"period_profit"`
		PeriodPercent float64 `json:"period_percent"`
		ByMagic       []struct {
			Magic  int64   `json:"magic"`
			Profit float64 `json:"profit"`
		} `json:"by_magic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&agg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if agg.PeriodProfit != 50 {
		t.Errorf("period profit = %v, want 50", agg.PeriodProfit)
	}
	if agg.PeriodPercent != 0.5 {
		t.Errorf("period percent = %v, want 0.5", agg.PeriodPercent)
	}
	if len(agg.ByMagic) != 1 || agg.ByMagic[0].Magic != 101 {
		t.Errorf("by_magic = %+v", agg.ByMagic)
	}
}

func TestGroupLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t, &fakeTerminal{}, newFakeStore())

	resp := postJSON(t, ts.URL+"/api/groups", map[string]any{
		"account_id": "acc", "name": "Majors", "font_color": "#fff",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want 200", resp.StatusCode)
	}
	var created domain.MagicGroup
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created group: %v", err)
	}
	resp.Body.Close()
	if created.ID == 0 {
		t.Fatal("created group has no id")
	}

	// Missing name is rejected.
	resp = postJSON(t, ts.URL+"/api/groups", map[string]any{"account_id": "acc"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("create without name status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/groups/1/assignments", map[string]any{
		"account_id": "acc", "magic_ids": []int64{101, 202},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assignments status = %d, want 200", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/groups/1?account_id=acc", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", delResp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/api/groups?account_id=acc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer listResp.Body.Close()
	var groups []domain.MagicGroup
	if err := json.NewDecoder(listResp.Body).Decode(&groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("groups after delete = %d, want 0", len(groups))
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeTerminal{}, newFakeStore())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
