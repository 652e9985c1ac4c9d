package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Accounts

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleAccountLabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.SetLabel(r.Context(), r.PathValue("id"), req.Label); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistoryStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HistoryStart *time.Time `json:"history_start_date"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.SetHistoryStart(r.Context(), r.PathValue("id"), req.HistoryStart); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync

func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string     `json:"account_id"`
		From      *time.Time `json:"from"`
		To        *time.Time `json:"to"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	var from, to time.Time
	if req.From != nil {
		from = *req.From
	}
	if req.To != nil {
		to = *req.To
	}

	result, err := s.sync.Sync(r.Context(), req.AccountID, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSyncOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if err := s.sync.SyncOpen(r.Context(), req.AccountID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "account_id": req.AccountID})
}

// Read side

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	accountID, from, to, ok := s.windowParams(w, r)
	if !ok {
		return
	}
	positions, err := s.stats.Positions(r.Context(), accountID, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positionsJSON(positions))
}

func (s *Server) handleOpenPositions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	summary, err := s.stats.OpenSummary(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	accountID, from, to, ok := s.windowParams(w, r)
	if !ok {
		return
	}

	var filter usecase.AggregateFilter
	if v := r.URL.Query().Get("magic"); v != "" {
		magic, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid magic", http.StatusBadRequest)
			return
		}
		filter.Magic = &magic
	}
	if v := r.URL.Query().Get("group_id"); v != "" {
		groupID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid group_id", http.StatusBadRequest)
			return
		}
		filter.GroupID = &groupID
	}

	agg, err := s.stats.Aggregate(r.Context(), accountID, from, to, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountA := q.Get("account1")
	accountB := q.Get("account2")
	if accountA == "" || accountB == "" {
		http.Error(w, "account1 and account2 are required", http.StatusBadRequest)
		return
	}
	magic, err := strconv.ParseInt(q.Get("magic"), 10, 64)
	if err != nil {
		http.Error(w, "invalid magic", http.StatusBadRequest)
		return
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	tolerance := usecase.DefaultMatchTolerance
	if v := q.Get("tolerance_seconds"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec < 0 {
			http.Error(w, "invalid tolerance_seconds", http.StatusBadRequest)
			return
		}
		tolerance = time.Duration(sec * float64(time.Second))
	}

	result, err := s.stats.Compare(r.Context(), accountA, accountB, magic, from, to, tolerance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, compareResultJSON(result))
}

// Magics & groups

func (s *Server) handleListMagics(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	magics, err := s.strategies.ListMagics(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	groups, err := s.strategies.Groups(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type magicEntry struct {
		AccountID string  `json:"account_id"`
		Magic     int64   `json:"magic"`
		Label     string  `json:"label"`
		GroupIDs  []int64 `json:"group_ids"`
	}
	entries := make([]magicEntry, 0, len(magics))
	for _, m := range magics {
		label := m.Label
		if label == "" {
			label = "Magic " + strconv.FormatInt(m.ID, 10)
		}
		groupIDs := groups[m.ID]
		if groupIDs == nil {
			groupIDs = []int64{}
		}
		entries = append(entries, magicEntry{AccountID: m.AccountID, Magic: m.ID, Label: label, GroupIDs: groupIDs})
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMagicLabels(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
		Labels    []struct {
			Magic int64  `json:"magic"`
			Label string `json:"label"`
		} `json:"labels"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	labels := make(map[int64]string, len(req.Labels))
	for _, l := range req.Labels {
		labels[l.Magic] = l.Label
	}
	if err := s.strategies.UpdateLabels(r.Context(), req.AccountID, labels); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	groups, err := s.strategies.ListGroups(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var g domain.MagicGroup
	if !s.decodeGroup(w, r, &g) {
		return
	}
	id, err := s.strategies.CreateGroup(r.Context(), &g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	g.ID = id
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var g domain.MagicGroup
	if !s.decodeGroup(w, r, &g) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}
	g.ID = id
	if err := s.strategies.UpdateGroup(r.Context(), &g); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}
	if err := s.strategies.DeleteGroup(r.Context(), accountID, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGroupAssignments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string  `json:"account_id"`
		MagicIDs  []int64 `json:"magic_ids"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}
	if err := s.strategies.ReplaceAssignments(r.Context(), req.AccountID, id, req.MagicIDs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// helpers

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) decodeGroup(w http.ResponseWriter, r *http.Request, g *domain.MagicGroup) bool {
	var req struct {
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
		Label2    string `json:"label2"`
		FontColor string `json:"font_color"`
		FillColor string `json:"fill_color"`
	}
	if !s.decode(w, r, &req) {
		return false
	}
	if req.AccountID == "" || req.Name == "" {
		http.Error(w, "account_id and name are required", http.StatusBadRequest)
		return false
	}
	g.AccountID = req.AccountID
	g.Name = req.Name
	g.Label2 = req.Label2
	g.FontColor = req.FontColor
	g.FillColor = req.FillColor
	return true
}

func (s *Server) windowParams(w http.ResponseWriter, r *http.Request) (string, time.Time, time.Time, bool) {
	q := r.URL.Query()
	accountID := q.Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}
	return accountID, from, to, true
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps the domain taxonomy onto HTTP statuses. Auth and
// timeout failures are never presented as empty successes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var integrityErr *domain.DataIntegrityError

	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "needs_credentials"})
	case errors.Is(err, domain.ErrTimeout):
		s.writeJSON(w, http.StatusGatewayTimeout, map[string]string{"status": "timeout"})
	case errors.Is(err, domain.ErrSyncInProgress):
		s.writeJSON(w, http.StatusConflict, map[string]string{"status": "sync_in_progress"})
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":   "rejected",
			"rejected": validationErr.Rejected,
		})
	case errors.As(err, &integrityErr):
		s.logger.Error("Data integrity violation", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":      "integrity_error",
			"position_id": integrityErr.PositionID,
			"tickets":     integrityErr.Tickets,
			"reason":      integrityErr.Reason,
		})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
