package app

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "PostMoment",
			parameters: "/home/user/pics/a.jpg",
		},
		{
			name:       "empty parameters",
			operation:  "ListMoments",
			parameters: "",
		},
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters, now)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if !strings.HasPrefix(op.ID, "20260501T120000Z-") {
				t.Errorf("ID = %q, want timestamp prefix", op.ID)
			}
		})
	}
}

func TestOperation_IDsAreUnique(t *testing.T) {
	now := time.Now()
	a, b := NewOperation("x", "", now), NewOperation("x", "", now)
	if a.ID == b.ID {
		t.Errorf("two operations started together share ID %q", a.ID)
	}
}

func TestOperation_Finish(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "success", err: nil, want: false},
		{name: "error", err: errors.New("boom"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("x", "", time.Now())
			op.Finish(tt.err)
			if got := op.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
