package budget

import (
	"testing"
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/httperr"
)

func TestChargeBodyRejectsBeforeUnderflow(t *testing.T) {
	b := New(Limits{Timeout: time.Second, MaxBodySize: 10, MaxHeaderBytes: 100})
	if err := b.ChargeBody("read_body", 10); err != nil {
		t.Fatalf("exact allowance should succeed: %v", err)
	}
	b2 := New(Limits{Timeout: time.Second, MaxBodySize: 10, MaxHeaderBytes: 100})
	if err := b2.ChargeBody("read_body", 11); httperr.StatusOf(err) != 413 {
		t.Fatalf("expected 413 PayloadTooLarge, got %v", err)
	}
}

func TestChargeHeaderBytesExceedsLimit(t *testing.T) {
	b := New(Limits{Timeout: time.Second, MaxBodySize: 10, MaxHeaderBytes: 5})
	if err := b.ChargeHeaderBytes("read_line", 5); err != nil {
		t.Fatalf("exact limit should succeed: %v", err)
	}
	if err := b.ChargeHeaderBytes("read_line", 1); httperr.StatusOf(err) != 400 {
		t.Fatalf("expected 400 BadRequest over header budget, got %v", err)
	}
}

func TestChargeTimeExhausted(t *testing.T) {
	b := New(Limits{Timeout: 10 * time.Millisecond, MaxBodySize: 10, MaxHeaderBytes: 10})
	if err := b.ChargeTime("read_line", 20*time.Millisecond); httperr.StatusOf(err) != 408 {
		t.Fatalf("expected 408 RequestTimeout, got %v", err)
	}
}

func TestResetRestoresAllowances(t *testing.T) {
	b := New(Limits{Timeout: time.Second, MaxBodySize: 10, MaxHeaderBytes: 10})
	_ = b.ChargeBody("x", 10)
	b.Reset()
	if b.RemainingBody() != 10 {
		t.Fatalf("expected body allowance reset to 10, got %d", b.RemainingBody())
	}
}
