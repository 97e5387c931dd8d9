package evo

import (
	"context"
	"errors"

	"cppnevo/internal/genome"
)

var (
	ErrNoMutationChoice  = errors.New("no mutation choice available")
	ErrCapacityExhausted = errors.New("no valid connection found within attempt budget")
	ErrEvaluatorFailure  = errors.New("external evaluator failure")
)

// ErrInvariantViolation is shared with the genome package so errors.Is
// matches failures raised by either layer.
var ErrInvariantViolation = genome.ErrInvariantViolation

// Operator mutates a genome in place. Callers hand operators a genome they
// own, usually a freshly cloned child.
type Operator interface {
	Name() string
	Apply(ctx context.Context, g *genome.Genome) error
}

// ContextualOperator can declare whether it has anything to act on, letting
// the Mutator record a no-op without calling Apply.
type ContextualOperator interface {
	Operator
	Applicable(g *genome.Genome) bool
}

// IsNoop reports whether err is one of the recoverable mutation outcomes
// that leave the genome untouched.
func IsNoop(err error) bool {
	return errors.Is(err, ErrNoMutationChoice) ||
		errors.Is(err, ErrCapacityExhausted) ||
		errors.Is(err, ErrInvariantViolation)
}
