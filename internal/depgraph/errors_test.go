package depgraph

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := map[string]error{
		"invalid_input":      InvalidInput("simulate", "vendor is required"),
		"malformed_document": Malformed("load", "vendors[0]: missing name"),
		"graph_unavailable":  Unavailable("stats", errors.New("dial tcp: refused")),
		"identity_conflict":  Conflict("verify", 2),
		"internal":           errors.New("boom"),
	}
	for want, err := range cases {
		if got := KindOf(err); got != want {
			t.Errorf("expected %s, got %s (%v)", want, got, err)
		}
	}
}

func TestUnavailable(t *testing.T) {
	if Unavailable("op", nil) != nil {
		t.Error("expected nil for nil cause")
	}

	cause := errors.New("connection reset")
	err := Unavailable("blast radius", cause)
	if !errors.Is(err, ErrGraphUnavailable) || !errors.Is(err, cause) {
		t.Errorf("expected kind and cause to match, got %v", err)
	}
	if again := Unavailable("outer", err); again != err {
		t.Errorf("expected already-kinded error to pass through, got %v", again)
	}

	wrapped := fmt.Errorf("simulate: %w", err)
	if KindOf(wrapped) != "graph_unavailable" {
		t.Errorf("expected kind through wrapping, got %s", KindOf(wrapped))
	}
}

func TestError_Message(t *testing.T) {
	err := InvalidInput("simulate", "duration must be positive, got %v", -1)
	want := "simulate: invalid input: duration must be positive, got -1"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
