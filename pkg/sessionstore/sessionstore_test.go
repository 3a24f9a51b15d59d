package sessionstore

import (
	"testing"
	"time"
)

func TestAddAndGet(t *testing.T) {
	s := New(time.Minute)
	token, err := s.Add(map[string]any{"user": "alice"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	data := s.Get(token)
	if data == nil || data["user"] != "alice" {
		t.Fatalf("unexpected session data: %#v", data)
	}
}

func TestGetExpired(t *testing.T) {
	s := New(time.Millisecond)
	token, _ := s.Add(map[string]any{"x": 1})
	time.Sleep(5 * time.Millisecond)
	if data := s.Get(token); data != nil {
		t.Fatalf("expected expired session to be nil, got %#v", data)
	}
	if s.Has(token) {
		t.Fatalf("expected Has to report false after expiration")
	}
}

func TestDelete(t *testing.T) {
	s := New(time.Minute)
	token, _ := s.Add(map[string]any{"x": 1})
	s.Delete(token)
	if s.Get(token) != nil {
		t.Fatalf("expected session to be gone after Delete")
	}
}

func TestUnknownTokenReturnsNil(t *testing.T) {
	s := New(time.Minute)
	if s.Get("nonexistent") != nil {
		t.Fatalf("expected nil for unknown token")
	}
}

func TestLenForcesSweep(t *testing.T) {
	s := New(time.Millisecond)
	s.Add(map[string]any{"a": 1})
	s.Add(map[string]any{"b": 2})
	time.Sleep(5 * time.Millisecond)
	if n := s.Len(); n != 0 {
		t.Fatalf("expected Len to sweep expired entries, got %d", n)
	}
}
