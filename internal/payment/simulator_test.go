package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProcess_EsewaCarriesBalanceDelta(t *testing.T) {
	sim := New(time.Millisecond)

	res, err := sim.Process(context.Background(), "20", "esewa")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.BalanceDelta != 20 {
		t.Fatalf("BalanceDelta = %v, want 20", res.BalanceDelta)
	}
	if !strings.HasPrefix(res.Reference, "ES-") {
		t.Fatalf("Reference = %q, want ES- prefix", res.Reference)
	}
	if !strings.Contains(res.Status, res.Reference) {
		t.Fatalf("Status %q should carry the transaction reference", res.Status)
	}
}

func TestProcess_OtherMethodsNoDelta(t *testing.T) {
	sim := New(time.Millisecond)

	for _, method := range []string{"khalti", "connectips"} {
		res, err := sim.Process(context.Background(), "15.25", method)
		if err != nil {
			t.Fatalf("%s: err: %v", method, err)
		}
		if res.BalanceDelta != 0 {
			t.Fatalf("%s: BalanceDelta = %v, want 0", method, res.BalanceDelta)
		}
		if res.Status == "" {
			t.Fatalf("%s: want method-specific status text", method)
		}
	}
}

func TestProcess_RejectsBeforeDelay(t *testing.T) {
	// a long delay proves rejection short-circuits it
	sim := New(time.Minute)

	cases := []struct{ amount, method string }{
		{"-5", "esewa"},
		{"0", "esewa"},
		{"", "esewa"},
		{"abc", "esewa"},
		{"NaN", "esewa"},
		{"Inf", "esewa"},
		{"-Inf", "esewa"},
		{"20", "paypal"},
	}
	for _, c := range cases {
		start := time.Now()
		_, err := sim.Process(context.Background(), c.amount, c.method)
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("Process(%q, %q) err = %v, want ErrRejected", c.amount, c.method, err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("rejection took %v, must not wait the delay", elapsed)
		}
	}
}

func TestProcess_ContextCancelsDelay(t *testing.T) {
	sim := New(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := sim.Process(ctx, "20", "esewa")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
