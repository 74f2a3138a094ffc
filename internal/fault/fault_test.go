// internal/fault/fault_test.go
package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(PecFault, "framer", "mismatch"))

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", InvalidCommand, InvalidCommand},
		{"wrapper", New(InvalidData, "fan", "duty 120 > 100"), InvalidData},
		{"foreign error", errors.New("boom"), InvalidData},
		{"fmt wrapped wrapper", wrapped, PecFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.err); got != tt.want {
				t.Fatalf("Of()=%q want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsAsFindsWrapper(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(PecFault, "framer", "mismatch"))

	var e *E
	if !errors.As(err, &e) {
		t.Fatalf("errors.As failed")
	}
	if e.Code() != PecFault {
		t.Fatalf("code=%q want %q", e.Code(), PecFault)
	}
	if got := e.Error(); got != "framer: pec_fault: mismatch" {
		t.Fatalf("Error()=%q", got)
	}
}
