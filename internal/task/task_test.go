package task

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusSuspended, "suspended"},
		{StatusRunning, "running"},
		{StatusDead, "dead"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("Status.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTask_RunToCompletion(t *testing.T) {
	var got []any
	tk := New(func(_ *Task, args ...any) error {
		got = args
		return nil
	})

	if tk.Status() != StatusSuspended {
		t.Errorf("expected new task to be suspended, got %v", tk.Status())
	}

	vals, err := tk.Resume(1, "two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals != nil {
		t.Errorf("expected no values from finished task, got %v", vals)
	}
	if !reflect.DeepEqual(got, []any{1, "two"}) {
		t.Errorf("expected args [1 two], got %v", got)
	}
	if tk.Status() != StatusDead {
		t.Errorf("expected dead task, got %v", tk.Status())
	}
}

func TestTask_SuspendAndResume(t *testing.T) {
	var trace []string
	tk := New(func(t *Task, _ ...any) error {
		trace = append(trace, "start")
		in := t.Suspend("first")
		trace = append(trace, "got "+in[0].(string))
		in = t.Suspend("second")
		trace = append(trace, "got "+in[0].(string))
		return nil
	})

	vals, err := tk.Resume()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(vals, []any{"first"}) {
		t.Errorf("expected [first], got %v", vals)
	}
	if tk.Status() != StatusSuspended {
		t.Errorf("expected suspended, got %v", tk.Status())
	}

	vals, _ = tk.Resume("a")
	if !reflect.DeepEqual(vals, []any{"second"}) {
		t.Errorf("expected [second], got %v", vals)
	}

	if _, err := tk.Resume("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"start", "got a", "got b"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("expected trace %v, got %v", want, trace)
	}
}

func TestTask_ResumeDead(t *testing.T) {
	tk := New(func(*Task, ...any) error { return nil })
	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tk.Resume(); !errors.Is(err, ErrDead) {
		t.Errorf("expected ErrDead, got %v", err)
	}
}

func TestTask_ResumeSelf(t *testing.T) {
	var inner error
	tk := New(func(t *Task, _ ...any) error {
		_, inner = t.Resume()
		return nil
	})
	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(inner, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", inner)
	}
}

func TestTask_NilFunc(t *testing.T) {
	tk := New(nil)
	if _, err := tk.Resume(); !errors.Is(err, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}
}

func TestTask_TooManyArgs(t *testing.T) {
	tk := New(func(*Task, ...any) error { return nil }, WithMaxArgs(2))

	if !tk.Accepts(2) {
		t.Error("expected task to accept 2 values")
	}
	if tk.Accepts(3) {
		t.Error("expected task to reject 3 values")
	}

	if _, err := tk.Resume(1, 2, 3); !errors.Is(err, ErrTooManyArgs) {
		t.Errorf("expected ErrTooManyArgs, got %v", err)
	}
	if tk.Status() != StatusSuspended {
		t.Errorf("rejected resume should leave task suspended, got %v", tk.Status())
	}
}

func TestTask_ErrorReturn(t *testing.T) {
	boom := errors.New("boom")
	tk := New(func(*Task, ...any) error { return boom }, WithName("worker"))

	_, err := tk.Resume()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Task != "worker" {
		t.Errorf("expected task name worker, got %q", te.Task)
	}
	if !strings.Contains(te.Traceback(), "task.(*Task).run") {
		t.Errorf("expected a traceback of the task goroutine, got:\n%s", te.Traceback())
	}
	if err.Error() != "task worker failed: boom" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
	if tk.Status() != StatusDead {
		t.Errorf("expected dead, got %v", tk.Status())
	}
}

func TestTask_Panic(t *testing.T) {
	tk := New(func(*Task, ...any) error { panic("kaboom") })

	_, err := tk.Resume()
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !strings.Contains(te.Traceback(), "goroutine") {
		t.Errorf("expected a goroutine stack in traceback, got %q", te.Traceback())
	}
}

func TestTask_CleanupsRunOnCompletion(t *testing.T) {
	var order []int
	tk := New(func(t *Task, _ ...any) error {
		t.Defer(func() error { order = append(order, 1); return nil })
		t.Defer(func() error { order = append(order, 2); return nil })
		t.Suspend()
		return nil
	})

	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Pending() != 2 {
		t.Errorf("expected 2 pending cleanups, got %d", tk.Pending())
	}
	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []int{2, 1}) {
		t.Errorf("expected LIFO cleanup order [2 1], got %v", order)
	}
	if tk.Pending() != 0 {
		t.Errorf("expected no pending cleanups, got %d", tk.Pending())
	}
}

func TestTask_CleanupErrorFailsTask(t *testing.T) {
	bad := errors.New("close failed")
	tk := New(func(t *Task, _ ...any) error {
		t.Defer(func() error { return bad })
		return nil
	})
	if _, err := tk.Resume(); !errors.Is(err, bad) {
		t.Errorf("expected cleanup error, got %v", err)
	}
}

func TestTask_FailureKeepsCleanupsPending(t *testing.T) {
	ran := false
	tk := New(func(t *Task, _ ...any) error {
		t.Defer(func() error { ran = true; return nil })
		return errors.New("fail")
	})

	if _, err := tk.Resume(); err == nil {
		t.Fatal("expected error")
	}
	if ran {
		t.Error("cleanup should not run when the task fails")
	}
	if tk.Pending() != 1 {
		t.Errorf("expected 1 pending cleanup, got %d", tk.Pending())
	}

	if err := tk.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !ran {
		t.Error("expected Close to run the pending cleanup")
	}
}

func TestTask_CloseSuspended(t *testing.T) {
	var unwound, cleaned, after bool
	tk := New(func(t *Task, _ ...any) error {
		defer func() { unwound = true }()
		t.Defer(func() error { cleaned = true; return nil })
		t.Suspend()
		after = true
		return nil
	})

	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tk.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if !unwound {
		t.Error("expected deferred calls in the task to run")
	}
	if !cleaned {
		t.Error("expected registered cleanup to run")
	}
	if after {
		t.Error("task body should not continue past Suspend when closed")
	}
	if tk.Status() != StatusDead {
		t.Errorf("expected dead, got %v", tk.Status())
	}
	if _, err := tk.Resume(); !errors.Is(err, ErrDead) {
		t.Errorf("expected ErrDead after close, got %v", err)
	}
}

func TestTask_CloseUnwindPanic(t *testing.T) {
	tk := New(func(t *Task, _ ...any) error {
		defer func() { panic("cleanup exploded") }()
		t.Suspend()
		return nil
	})

	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := tk.Close()
	if !errors.Is(err, ErrPanic) {
		t.Errorf("expected ErrPanic from close, got %v", err)
	}
}

func TestTask_CloseRunning(t *testing.T) {
	var closeErr error
	tk := New(func(t *Task, _ ...any) error {
		closeErr = t.Close()
		return nil
	})
	if _, err := tk.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(closeErr, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", closeErr)
	}
}

func TestTask_CloseUnstarted(t *testing.T) {
	called := false
	tk := New(func(*Task, ...any) error { called = true; return nil })
	if err := tk.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status() != StatusDead {
		t.Errorf("expected dead, got %v", tk.Status())
	}
	if _, err := tk.Resume(); !errors.Is(err, ErrDead) {
		t.Errorf("expected ErrDead, got %v", err)
	}
	if called {
		t.Error("closed task should never run")
	}
}

func TestTask_NestedResume(t *testing.T) {
	var log []string
	inner := New(func(t *Task, _ ...any) error {
		log = append(log, "inner 1")
		t.Suspend()
		log = append(log, "inner 2")
		return nil
	})
	outer := New(func(t *Task, _ ...any) error {
		log = append(log, "outer 1")
		if _, err := inner.Resume(); err != nil {
			return err
		}
		log = append(log, "outer 2")
		t.Suspend()
		if _, err := inner.Resume(); err != nil {
			return err
		}
		log = append(log, "outer 3")
		return nil
	})

	if _, err := outer.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := outer.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer 1", "inner 1", "outer 2", "inner 2", "outer 3"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected %v, got %v", want, log)
	}
}
