package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maitre-io/maitre/internal/activity"
	"github.com/maitre-io/maitre/internal/menu"
	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/internal/scheduler"
	"github.com/maitre-io/maitre/pkg/protocol"
)

var _ FloorService = (*restaurant.Restaurant)(nil)

var base = time.Date(2024, 5, 10, 19, 30, 0, 0, time.UTC)

func newFloor(t *testing.T) *restaurant.Restaurant {
	t.Helper()
	m, err := menu.New(
		protocol.MenuItem{Name: "Pizza Margherita", Price: 45},
		protocol.MenuItem{Name: "Refrigerante Coca-Cola", Price: 7.5},
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := restaurant.New("Cantina", restaurant.Options{Menu: m, Now: func() time.Time { return base }})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestServer(svc FloorService, key string, opts Options) *Server {
	return NewServer(svc, Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, opts)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(newFloor(t), "secret", Options{})
	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if body := decodeBody[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(newFloor(t), "secret", Options{})

	if w := do(t, srv, "GET", "/api/waiters", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/waiters", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/waiters", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("right key: status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(newFloor(t), "", Options{})
	w := do(t, srv, "OPTIONS", "/api/shift", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("allow methods = %q", got)
	}
}

func TestWaiters(t *testing.T) {
	srv := newTestServer(newFloor(t), "", Options{})

	w := do(t, srv, "POST", "/api/waiters", `{"name":"Maria"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("hire: status = %d, body = %s", w.Code, w.Body.String())
	}
	hired := decodeBody[protocol.WaiterRecord](t, w)
	if hired.ID != 1 || hired.Name != "Maria" {
		t.Errorf("hired = %+v", hired)
	}

	if w := do(t, srv, "POST", "/api/waiters", `{"name":" "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/waiters", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", w.Code)
	}

	if got := decodeBody[[]protocol.WaiterRecord](t, do(t, srv, "GET", "/api/waiters", "")); len(got) != 1 {
		t.Errorf("list = %d waiters", len(got))
	}
	if w := do(t, srv, "GET", "/api/waiters/1", ""); w.Code != http.StatusOK {
		t.Errorf("get: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/waiters/9", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/waiters/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	floor := newFloor(t)
	if _, err := floor.HireWaiter("Maria"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(floor, "", Options{})

	if w := do(t, srv, "POST", "/api/login", `{"id":1,"name":"maria"}`); w.Code != http.StatusOK {
		t.Errorf("valid login: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/login", `{"id":1,"name":"Joao"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong name: status = %d", w.Code)
	}
}

func TestQueueDispatchAndOrders(t *testing.T) {
	floor := newFloor(t)
	if _, err := floor.HireWaiter("Maria"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(floor, "", Options{})

	if w := do(t, srv, "POST", "/api/queue", `{"name":"Bob"}`); w.Code != http.StatusCreated {
		t.Fatalf("enqueue: status = %d, body = %s", w.Code, w.Body.String())
	}
	w := do(t, srv, "POST", "/api/queue", `{"name":"Garcia","members":[{"name":"Luis","priority":"priority"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("enqueue group: status = %d", w.Code)
	}
	if g := decodeBody[protocol.Party](t, w); g.Kind != protocol.KindGroup {
		t.Errorf("kind = %q", g.Kind)
	}
	if w := do(t, srv, "POST", "/api/queue", `{"name":"Zed","priority":"vip"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad priority: status = %d", w.Code)
	}

	queue := decodeBody[[]protocol.Party](t, do(t, srv, "POST", "/api/queue/reorder", ""))
	if len(queue) != 2 || queue[0].Name != "Garcia" {
		t.Fatalf("reordered queue = %v", queue)
	}

	res := decodeBody[restaurant.DispatchResult](t, do(t, srv, "POST", "/api/dispatch", ""))
	if res.Outcome != restaurant.OutcomeDispatched || res.OrderID != 1 {
		t.Fatalf("dispatch = %+v", res)
	}
	res = decodeBody[restaurant.DispatchResult](t, do(t, srv, "POST", "/api/waiters/1/dispatch", ""))
	if res.Outcome != restaurant.OutcomeDispatched || res.Party.Name != "Bob" {
		t.Fatalf("waiter dispatch = %+v", res)
	}
	res = decodeBody[restaurant.DispatchResult](t, do(t, srv, "POST", "/api/dispatch", ""))
	if res.Outcome != restaurant.OutcomeQueueEmpty {
		t.Errorf("empty dispatch = %+v", res)
	}
	if w := do(t, srv, "POST", "/api/waiters/7/dispatch", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown waiter: status = %d", w.Code)
	}

	if w := do(t, srv, "POST", "/api/orders/2/items", `{"name":"pizza margherita","quantity":1}`); w.Code != http.StatusOK {
		t.Fatalf("add item: status = %d, body = %s", w.Code, w.Body.String())
	}
	order := decodeBody[protocol.Order](t, do(t, srv, "POST", "/api/orders/2/items", `{"name":"Refrigerante Coca-Cola","notes":"no ice"}`))
	if order.Total() != 52.5 {
		t.Errorf("total = %v", order.Total())
	}
	if w := do(t, srv, "POST", "/api/orders/2/items", `{"name":"Feijoada"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown item: status = %d", w.Code)
	}

	if w := do(t, srv, "POST", "/api/orders/2/finish", ""); w.Code != http.StatusOK {
		t.Fatalf("finish: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/orders/2/finish", ""); w.Code != http.StatusConflict {
		t.Errorf("finish twice: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/orders/2/items", `{"name":"Refrigerante Coca-Cola"}`); w.Code != http.StatusConflict {
		t.Errorf("item after finish: status = %d", w.Code)
	}

	rec := decodeBody[protocol.AttendanceRecord](t, do(t, srv, "GET", "/api/orders/2", ""))
	if rec.Status != protocol.StatusFinished {
		t.Errorf("order status = %q", rec.Status)
	}
	if w := do(t, srv, "GET", "/api/orders/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing order: status = %d", w.Code)
	}
	if h := decodeBody[[]protocol.AttendanceRecord](t, do(t, srv, "GET", "/api/history", "")); len(h) != 1 {
		t.Errorf("history = %d", len(h))
	}
	if m := decodeBody[[]protocol.MenuItem](t, do(t, srv, "GET", "/api/menu", "")); len(m) != 2 {
		t.Errorf("menu = %d", len(m))
	}

	st := decodeBody[restaurant.Status](t, do(t, srv, "GET", "/api/status", ""))
	if st.Finished != 1 || len(st.Waiters) != 1 || st.Waiters[0].Groups != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestShift(t *testing.T) {
	floor := newFloor(t)
	srv := newTestServer(floor, "", Options{})

	if w := do(t, srv, "POST", "/api/shift", `{"shift":"Night"}`); w.Code != http.StatusOK {
		t.Fatalf("start: status = %d, body = %s", w.Code, w.Body.String())
	}
	if floor.Shift() != protocol.ShiftNight {
		t.Errorf("shift = %q", floor.Shift())
	}
	if w := do(t, srv, "POST", "/api/shift", `{"shift":"brunch"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown shift: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/shift", `{"shift":"none"}`); w.Code != http.StatusBadRequest {
		t.Errorf("none shift: status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/shift", ""); w.Code != http.StatusOK {
		t.Errorf("end: status = %d", w.Code)
	}
	if floor.Shift() != protocol.ShiftNone {
		t.Errorf("shift after end = %q", floor.Shift())
	}
}

func TestLogs(t *testing.T) {
	buf := activity.New(50)
	logger := slog.New(activity.NewHandler(slog.NewTextHandler(&strings.Builder{}, nil), buf))
	logger.Debug("debug noise")
	logger.Info("party dispatched", "waiter", 1)
	logger.Info("party dispatched", "waiter", 2)
	logger.Error("save roster", "error", fmt.Errorf("disk full"))

	srv := newTestServer(newFloor(t), "", Options{Logs: buf})

	if got := decodeBody[[]activity.Entry](t, do(t, srv, "GET", "/api/logs", "")); len(got) != 4 {
		t.Errorf("all = %d", len(got))
	}
	if got := decodeBody[[]activity.Entry](t, do(t, srv, "GET", "/api/logs?level=warn", "")); len(got) != 1 {
		t.Errorf("warn+ = %d", len(got))
	}
	got := decodeBody[[]activity.Entry](t, do(t, srv, "GET", "/api/logs?waiter=2", ""))
	if len(got) != 1 || got[0].Message != "party dispatched" {
		t.Errorf("waiter=2 = %+v", got)
	}
	if got := decodeBody[[]activity.Entry](t, do(t, srv, "GET", "/api/logs?limit=2", "")); len(got) != 2 {
		t.Errorf("limit = %d", len(got))
	}

	empty := newTestServer(newFloor(t), "", Options{})
	if got := decodeBody[[]activity.Entry](t, do(t, empty, "GET", "/api/logs", "")); len(got) != 0 {
		t.Errorf("no buffer = %d", len(got))
	}
}

type stubIntake struct{ called bool }

func (s *stubIntake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.called = r.PathValue("source") == "kiosk"
	w.WriteHeader(http.StatusCreated)
}

func TestIntakeMountedWithoutAPIKey(t *testing.T) {
	intake := &stubIntake{}
	srv := newTestServer(newFloor(t), "secret", Options{Intake: intake})

	w := do(t, srv, "POST", "/api/intake/kiosk", `{"name":"Ana"}`)
	if w.Code != http.StatusCreated || !intake.called {
		t.Errorf("status = %d, called = %v", w.Code, intake.called)
	}
}

func TestStreamRouteOptional(t *testing.T) {
	srv := newTestServer(newFloor(t), "", Options{})
	if w := do(t, srv, "GET", "/api/floor/stream", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMenuEditing(t *testing.T) {
	srv := newTestServer(newFloor(t), "", Options{})

	w := do(t, srv, "POST", "/api/menu", `{"name":"Feijoada","price":52,"description":"sábado"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: status = %d, body = %s", w.Code, w.Body.String())
	}
	if item := decodeBody[protocol.MenuItem](t, w); item.Name != "Feijoada" || item.Price != 52 {
		t.Errorf("added = %+v", item)
	}
	if w := do(t, srv, "POST", "/api/menu", `{"name":"feijoada","price":50}`); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/menu", `{"name":"Suco","price":-1}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative price: status = %d", w.Code)
	}
	if m := decodeBody[[]protocol.MenuItem](t, do(t, srv, "GET", "/api/menu", "")); len(m) != 3 {
		t.Errorf("menu = %d", len(m))
	}

	if w := do(t, srv, "DELETE", "/api/menu/pizza%20margherita", ""); w.Code != http.StatusNoContent {
		t.Errorf("remove: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "DELETE", "/api/menu/Pizza%20Margherita", ""); w.Code != http.StatusNotFound {
		t.Errorf("remove twice: status = %d", w.Code)
	}
	m := decodeBody[[]protocol.MenuItem](t, do(t, srv, "GET", "/api/menu", ""))
	if len(m) != 2 || m[0].Name != "Refrigerante Coca-Cola" {
		t.Errorf("menu after remove = %+v", m)
	}
}

func TestRemoveOrderItem(t *testing.T) {
	floor := newFloor(t)
	if _, err := floor.HireWaiter("Maria"); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(floor, "", Options{})
	do(t, srv, "POST", "/api/queue", `{"name":"Bob"}`)
	res := decodeBody[restaurant.DispatchResult](t, do(t, srv, "POST", "/api/dispatch", ""))
	if !res.Dispatched() {
		t.Fatalf("dispatch = %+v", res)
	}
	path := fmt.Sprintf("/api/orders/%d/items", res.OrderID)
	do(t, srv, "POST", path, `{"name":"Pizza Margherita","quantity":2}`)
	do(t, srv, "POST", path, `{"name":"Refrigerante Coca-Cola"}`)

	w := do(t, srv, "DELETE", path+"/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove: status = %d, body = %s", w.Code, w.Body.String())
	}
	order := decodeBody[protocol.Order](t, w)
	if len(order.Items) != 1 || order.Items[0].Name != "Refrigerante Coca-Cola" || order.Total() != 7.5 {
		t.Errorf("order after remove = %+v", order)
	}
	if w := do(t, srv, "DELETE", path+"/3", ""); w.Code != http.StatusBadRequest {
		t.Errorf("out of range: status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", path+"/first", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad index: status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/orders/99/items/0", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown order: status = %d", w.Code)
	}

	if w := do(t, srv, "POST", fmt.Sprintf("/api/orders/%d/finish", res.OrderID), ""); w.Code != http.StatusOK {
		t.Fatalf("finish: status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", path+"/0", ""); w.Code != http.StatusConflict {
		t.Errorf("remove after finish: status = %d", w.Code)
	}
}

func TestShiftSchedule(t *testing.T) {
	floor := newFloor(t)
	sched := scheduler.New(floor, nil)
	if err := sched.Schedule(protocol.ShiftMorning, "0 7 * * *"); err != nil {
		t.Fatal(err)
	}
	if err := sched.ScheduleClose("0 23 * * *"); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(floor, "", Options{Shifts: sched})
	jobs := decodeBody[[]scheduler.Job](t, do(t, srv, "GET", "/api/shift/schedule", ""))
	if len(jobs) != 2 || jobs[0].Shift != protocol.ShiftMorning || jobs[1].Spec != "0 23 * * *" {
		t.Errorf("jobs = %+v", jobs)
	}

	bare := newTestServer(floor, "", Options{})
	if jobs := decodeBody[[]scheduler.Job](t, do(t, bare, "GET", "/api/shift/schedule", "")); len(jobs) != 0 {
		t.Errorf("no scheduler = %+v", jobs)
	}
}
