package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
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

// LogQuerier abstracts log entry querying to avoid coupling to the buffer.
type LogQuerier interface {
	Query(f activity.Filter) []activity.Entry
}

// FloorService is the interface the API server needs from the restaurant.
type FloorService interface {
	Status() restaurant.Status
	Waiters() []protocol.WaiterRecord
	FindWaiter(id int) (protocol.WaiterRecord, bool)
	HireWaiter(name string) (protocol.WaiterRecord, error)
	ValidateWaiterLogin(id int, name string) (protocol.WaiterRecord, bool)

	Waiting() []*protocol.Party
	Register(a restaurant.Arrival) (*protocol.Party, error)
	ReorderQueue()
	DispatchNext(waiterID int) (restaurant.DispatchResult, error)
	DistributeNext() (restaurant.DispatchResult, error)

	FindAttendance(orderID int) (protocol.AttendanceRecord, bool)
	AddOrderItem(orderID int, item string, quantity int, notes ...string) (*protocol.Order, error)
	RemoveOrderItem(orderID, index int) (*protocol.Order, error)
	FinishOrder(orderID int) (protocol.AttendanceRecord, error)
	History() []protocol.AttendanceRecord
	MenuItems() []protocol.MenuItem
	AddMenuItem(it protocol.MenuItem) (protocol.MenuItem, error)
	RemoveMenuItem(name string) error

	StartShift(s protocol.Shift) error
	EndShift(ctx context.Context)
}

// ShiftSchedule lists the cron jobs that open and close shifts.
type ShiftSchedule interface {
	Jobs() []scheduler.Job
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Options holds the optional parts of the server.
type Options struct {
	Logs   LogQuerier    // serves /api/logs when set
	Stream *Hub          // serves /api/floor/stream when set
	Intake http.Handler  // serves /api/intake/{source} when set; does its own auth
	Shifts ShiftSchedule // serves /api/shift/schedule when set
}

// Server is the maitre REST API server.
type Server struct {
	svc    FloorService
	cfg    Config
	opts   Options
	logger *slog.Logger
	srv    *http.Server
}

// NewServer creates a new API server.
func NewServer(svc FloorService, cfg Config, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))

	mux.HandleFunc("GET /api/waiters", s.requireAuth(s.handleListWaiters))
	mux.HandleFunc("POST /api/waiters", s.requireAuth(s.handleHireWaiter))
	mux.HandleFunc("GET /api/waiters/{id}", s.requireAuth(s.handleGetWaiter))
	mux.HandleFunc("POST /api/waiters/{id}/dispatch", s.requireAuth(s.handleDispatchNext))
	mux.HandleFunc("POST /api/login", s.requireAuth(s.handleLogin))

	mux.HandleFunc("GET /api/queue", s.requireAuth(s.handleListQueue))
	mux.HandleFunc("POST /api/queue", s.requireAuth(s.handleEnqueue))
	mux.HandleFunc("POST /api/queue/reorder", s.requireAuth(s.handleReorder))
	mux.HandleFunc("POST /api/dispatch", s.requireAuth(s.handleDistributeNext))

	mux.HandleFunc("GET /api/orders/{id}", s.requireAuth(s.handleGetOrder))
	mux.HandleFunc("POST /api/orders/{id}/items", s.requireAuth(s.handleAddItem))
	mux.HandleFunc("DELETE /api/orders/{id}/items/{index}", s.requireAuth(s.handleRemoveItem))
	mux.HandleFunc("POST /api/orders/{id}/finish", s.requireAuth(s.handleFinishOrder))
	mux.HandleFunc("GET /api/history", s.requireAuth(s.handleHistory))
	mux.HandleFunc("GET /api/menu", s.requireAuth(s.handleMenu))
	mux.HandleFunc("POST /api/menu", s.requireAuth(s.handleAddMenuItem))
	mux.HandleFunc("DELETE /api/menu/{name}", s.requireAuth(s.handleRemoveMenuItem))

	mux.HandleFunc("POST /api/shift", s.requireAuth(s.handleStartShift))
	mux.HandleFunc("DELETE /api/shift", s.requireAuth(s.handleEndShift))
	mux.HandleFunc("GET /api/shift/schedule", s.requireAuth(s.handleShiftSchedule))

	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	if opts.Stream != nil {
		mux.HandleFunc("GET /api/floor/stream", s.requireAuth(opts.Stream.ServeHTTP))
	}
	if opts.Intake != nil {
		mux.Handle("POST /api/intake/{source}", opts.Intake)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.opts.Stream != nil {
			s.opts.Stream.Close()
		}
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Key)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the protocol sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, protocol.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, protocol.ErrInvalidArgument), errors.Is(err, protocol.ErrNullReference):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}
