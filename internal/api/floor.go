package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maitre-io/maitre/internal/activity"
	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/internal/scheduler"
	"github.com/maitre-io/maitre/pkg/protocol"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// --- Waiters ---

func (s *Server) handleListWaiters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Waiters())
}

func (s *Server) handleGetWaiter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, ok := s.svc.FindWaiter(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "waiter not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type hireRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleHireWaiter(w http.ResponseWriter, r *http.Request) {
	var req hireRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.svc.HireWaiter(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type loginRequest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	rec, ok := s.svc.ValidateWaiterLogin(req.ID, req.Name)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid waiter id or name"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Queue and dispatch ---

func (s *Server) handleListQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Waiting())
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req restaurant.Arrival
	if !decode(w, r, &req) {
		return
	}
	party, err := s.svc.Register(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

func (s *Server) handleReorder(w http.ResponseWriter, _ *http.Request) {
	s.svc.ReorderQueue()
	writeJSON(w, http.StatusOK, s.svc.Waiting())
}

func (s *Server) handleDispatchNext(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.DispatchNext(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDistributeNext(w http.ResponseWriter, _ *http.Request) {
	res, err := s.svc.DistributeNext()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Orders ---

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, ok := s.svc.FindAttendance(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type addItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	var notes []string
	if strings.TrimSpace(req.Notes) != "" {
		notes = append(notes, req.Notes)
	}
	order, err := s.svc.AddOrderItem(id, req.Name, req.Quantity, notes...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}
	order, err := s.svc.RemoveOrderItem(id, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleFinishOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.FinishOrder(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.History())
}

func (s *Server) handleMenu(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.MenuItems())
}

func (s *Server) handleAddMenuItem(w http.ResponseWriter, r *http.Request) {
	var req protocol.MenuItem
	if !decode(w, r, &req) {
		return
	}
	item, err := s.svc.AddMenuItem(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveMenuItem(r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Shifts ---

type shiftRequest struct {
	Shift string `json:"shift"`
}

func (s *Server) handleStartShift(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if !decode(w, r, &req) {
		return
	}
	shift, err := protocol.ParseShift(req.Shift)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.StartShift(shift); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shift": shift.String()})
}

func (s *Server) handleEndShift(w http.ResponseWriter, r *http.Request) {
	s.svc.EndShift(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"shift": protocol.ShiftNone.String()})
}

func (s *Server) handleShiftSchedule(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Shifts == nil {
		writeJSON(w, http.StatusOK, []scheduler.Job{})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Shifts.Jobs())
}

// --- Logs ---

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.opts.Logs == nil {
		writeJSON(w, http.StatusOK, []activity.Entry{})
		return
	}

	q := r.URL.Query()
	f := activity.Filter{Limit: 200, MinLevel: slog.LevelDebug}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if lvl := q.Get("level"); lvl != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(lvl)); err == nil {
			f.MinLevel = l
		}
	}
	if ms, err := strconv.ParseInt(q.Get("since"), 10, 64); err == nil {
		f.Since = time.UnixMilli(ms)
	}
	if waiter := q.Get("waiter"); waiter != "" {
		f.Key, f.Value = "waiter", waiter
	}

	entries := s.opts.Logs.Query(f)
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
