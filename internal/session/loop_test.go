package session

import (
	"errors"
	"io"
	"log"
	"testing"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop(log.New(io.Discard, "", 0))
	defer l.Stop()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		if !l.Post(func() { got = append(got, i) }) {
			t.Fatal("Post rejected")
		}
	}
	if err := l.Call(func() {}); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestLoopRecoversPanic(t *testing.T) {
	l := NewLoop(log.New(io.Discard, "", 0))
	defer l.Stop()

	if err := l.Call(func() { panic("boom") }); err != nil {
		t.Errorf("Call with panicking task = %v, want nil", err)
	}
	ran := false
	if err := l.Call(func() { ran = true }); err != nil || !ran {
		t.Errorf("loop did not survive a panic: err=%v ran=%v", err, ran)
	}
}

func TestLoopAfterStop(t *testing.T) {
	l := NewLoop(log.New(io.Discard, "", 0))
	l.Stop()
	l.Stop()
	if l.Post(func() {}) {
		t.Error("Post accepted after Stop")
	}
	if err := l.Call(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Call after Stop = %v, want ErrClosed", err)
	}
}
