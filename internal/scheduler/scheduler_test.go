package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maitre-io/maitre/pkg/protocol"
)

type fakeController struct {
	mu      sync.Mutex
	started []protocol.Shift
	ended   int
}

func (f *fakeController) StartShift(s protocol.Shift) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, s)
	return nil
}

func (f *fakeController) EndShift(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
}

func (f *fakeController) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started), f.ended
}

func TestScheduleFires(t *testing.T) {
	ctrl := &fakeController{}
	sched := New(ctrl, nil)

	if err := sched.Schedule(protocol.ShiftNight, "@every 1s"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := sched.ScheduleClose("@every 1s"); err != nil {
		t.Fatalf("ScheduleClose: %v", err)
	}
	if sched.JobCount() != 2 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	if err := sched.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start = %v", err)
	}

	started, ended := ctrl.counts()
	if started == 0 || ended == 0 {
		t.Fatalf("started = %d, ended = %d", started, ended)
	}
	if ctrl.started[0] != protocol.ShiftNight {
		t.Errorf("started shift = %q", ctrl.started[0])
	}
}

func TestScheduleRejectsNone(t *testing.T) {
	sched := New(&fakeController{}, nil)
	err := sched.Schedule(protocol.ShiftNone, "@daily")
	if !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Errorf("err = %v", err)
	}
	if sched.JobCount() != 0 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}
}

func TestInvalidSchedule(t *testing.T) {
	sched := New(&fakeController{}, nil)
	if err := sched.Schedule(protocol.ShiftMorning, "invalid-cron"); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := sched.ScheduleClose("61 * * * *"); err == nil {
		t.Error("expected error for out of range minute")
	}
}

func TestLocationOption(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	sched := New(&fakeController{}, nil, cron.WithLocation(loc))
	if got := sched.cron.Location(); got != loc {
		t.Errorf("location = %v", got)
	}
}

func TestJobsAndRemove(t *testing.T) {
	sched := New(&fakeController{}, nil)
	specs := []struct {
		shift protocol.Shift
		spec  string
	}{
		{protocol.ShiftMorning, "0 7 * * *"},
		{protocol.ShiftAfternoon, "0 12 * * *"},
		{protocol.ShiftMorning, "0 8 * * 6"},
	}
	for _, s := range specs {
		if err := sched.Schedule(s.shift, s.spec); err != nil {
			t.Fatalf("Schedule(%s): %v", s.shift, err)
		}
	}
	if err := sched.ScheduleClose("0 23 * * *"); err != nil {
		t.Fatalf("ScheduleClose: %v", err)
	}

	jobs := sched.Jobs()
	if len(jobs) != 4 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[3].Shift != protocol.ShiftNone || jobs[3].Spec != "0 23 * * *" {
		t.Errorf("close job = %+v", jobs[3])
	}

	if n := sched.Remove(protocol.ShiftMorning); n != 2 {
		t.Errorf("removed = %d", n)
	}
	if sched.JobCount() != 2 {
		t.Errorf("JobCount = %d after remove", sched.JobCount())
	}
	if got := sched.Jobs()[0].Shift; got != protocol.ShiftAfternoon {
		t.Errorf("first job shift = %q", got)
	}
}

func TestJobsReportNextRun(t *testing.T) {
	sched := New(&fakeController{}, nil)
	if err := sched.Schedule(protocol.ShiftNight, "0 18 * * *"); err != nil {
		t.Fatal(err)
	}
	if next := sched.Jobs()[0].Next; !next.IsZero() {
		t.Errorf("Next before start = %v", next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		next := sched.Jobs()[0].Next
		if !next.IsZero() {
			if next.Hour() != 18 || next.Minute() != 0 {
				t.Errorf("Next = %v", next)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Next never set after start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
