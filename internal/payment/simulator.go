// Package payment simulates wallet payments. It is an explicit stand-in:
// no gateway is ever contacted, every well-formed request is approved
// after a fixed artificial delay, and the transaction reference is
// fabricated locally.
package payment

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDelay matches the artificial processing time of the reference
// behavior.
const DefaultDelay = 2 * time.Second

// ErrRejected flags client-side rejection of the request; the simulated
// delay never ran and no balance change may be applied.
var ErrRejected = fmt.Errorf("payment rejected")

// Result is the outcome of a simulated payment. BalanceDelta is non-zero
// only for the esewa method, which tops up the card balance.
type Result struct {
	Method       string  `json:"method"`
	Reference    string  `json:"reference"`
	Status       string  `json:"status"`
	BalanceDelta float64 `json:"balanceDelta"`
}

type Simulator struct {
	delay time.Duration
}

func New(delay time.Duration) *Simulator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Simulator{delay: delay}
}

// Process validates the amount and method, waits the artificial delay, and
// returns an approved Result. A missing, non-numeric or non-positive
// amount and an unknown method are rejected immediately, before any delay.
func (s *Simulator) Process(ctx context.Context, amount, method string) (Result, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	// NaN fails every comparison and "Inf" parses cleanly, so both need
	// an explicit check on top of v <= 0
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Result{}, fmt.Errorf("please enter a valid amount: %w", ErrRejected)
	}

	var prefix, status string
	switch method {
	case "esewa":
		prefix = "ES"
	case "khalti":
		prefix, status = "KH", "Khalti payment processed successfully"
	case "connectips":
		prefix, status = "CI", "ConnectIPS payment processed successfully"
	default:
		return Result{}, fmt.Errorf("unknown payment method %q: %w", method, ErrRejected)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(s.delay):
	}

	res := Result{
		Method:    method,
		Reference: prefix + "-" + uuid.New().String(),
		Status:    status,
	}
	if method == "esewa" {
		res.BalanceDelta = v
		res.Status = fmt.Sprintf("Payment successful! Transaction ID: %s", res.Reference)
	}
	return res, nil
}
