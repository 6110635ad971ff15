package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arogyalabs/carefind/engine/domain"
)

func userTurn(text string) domain.Turn {
	return domain.Turn{Role: domain.RoleUser, Text: text}
}

func TestAppendAndHistory(t *testing.T) {
	s := New(time.Minute)
	s.Append("s1", userTurn("hi"))
	s.Append("s1", domain.Turn{Role: domain.RoleAssistant, Text: "hello"})

	h := s.History("s1")
	if len(h) != 2 || h[0].Text != "hi" || h[1].Role != domain.RoleAssistant {
		t.Fatalf("history = %+v", h)
	}
	if s.Len("s1") != 2 {
		t.Fatalf("len = %d", s.Len("s1"))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := New(time.Minute)
	s.Append("a", userTurn("one"))
	if got := s.History("b"); len(got) != 0 {
		t.Fatalf("session b = %+v", got)
	}
}

func TestAppendIfEmpty(t *testing.T) {
	s := New(time.Minute)
	if !s.AppendIfEmpty("s1", userTurn("greeting")) {
		t.Fatal("first AppendIfEmpty should write")
	}
	if s.AppendIfEmpty("s1", userTurn("again")) {
		t.Fatal("second AppendIfEmpty should not write")
	}
	if s.Len("s1") != 1 {
		t.Fatalf("len = %d", s.Len("s1"))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := New(time.Minute)
	s.Append("s1", userTurn("original"))
	h := s.History("s1")
	h[0].Text = "mutated"
	if s.History("s1")[0].Text != "original" {
		t.Fatal("History exposed internal state")
	}
}

func TestExpiry(t *testing.T) {
	s := New(20 * time.Millisecond)
	s.Append("s1", userTurn("fleeting"))
	time.Sleep(50 * time.Millisecond)
	if s.Len("s1") != 0 {
		t.Fatal("session should have expired")
	}
}

func TestConcurrentAppendsPreserved(t *testing.T) {
	s := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append("shared", userTurn(fmt.Sprintf("turn-%d", i)))
		}(i)
	}
	wg.Wait()
	if got := s.Len("shared"); got != 50 {
		t.Fatalf("len = %d, want 50", got)
	}
}

func TestConcurrentGreetingInjectedOnce(t *testing.T) {
	s := New(time.Minute)
	var wrote int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AppendIfEmpty("s1", userTurn("greeting")) {
				mu.Lock()
				wrote++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wrote != 1 {
		t.Fatalf("greeting written %d times", wrote)
	}
}
