package nn

import (
	"errors"
	"math"
	"testing"
)

func TestGetActivationBuiltIns(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "identity", in: 1.5, want: 1.5},
		{name: "sigmoid", in: 0, want: 0.5},
		{name: "gauss", in: 0, want: 1},
		{name: "relu", in: -2, want: 0},
		{name: "abs", in: -2, want: 2},
		{name: "square", in: 3, want: 9},
		{name: "sawtooth", in: 2.25, want: 0.25},
		{name: "pulse", in: 0.5, want: 1},
		{name: "pulse", in: 1.5, want: -1},
	}
	for _, tc := range cases {
		fn, err := GetActivation(tc.name)
		if err != nil {
			t.Fatalf("get activation %s: %v", tc.name, err)
		}
		if got := fn(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%s(%f): got=%f want=%f", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestGetActivationNotFound(t *testing.T) {
	_, err := GetActivation("missing")
	if !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got: %v", err)
	}
}

func TestValidateActivations(t *testing.T) {
	if err := ValidateActivations([]string{"sin", "gauss", "identity"}); err != nil {
		t.Fatalf("validate known names: %v", err)
	}
	if err := ValidateActivations([]string{"sin", "softplus"}); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got: %v", err)
	}
}

func TestListActivationsSorted(t *testing.T) {
	names := ListActivations()
	if len(names) < 10 {
		t.Fatalf("expected built-in activations, got: %+v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("expected sorted names, got: %+v", names)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(4, -3, 3); got != 3 {
		t.Fatalf("unexpected clamp high: %f", got)
	}
	if got := Clamp(-4, -3, 3); got != -3 {
		t.Fatalf("unexpected clamp low: %f", got)
	}
	if got := Clamp(1, -3, 3); got != 1 {
		t.Fatalf("unexpected clamp passthrough: %f", got)
	}
}
