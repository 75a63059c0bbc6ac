package providers

import "context"

// SequenceProvider hands out values of named monotonic sequences
type SequenceProvider interface {
	// Next returns the next formatted value of the sequence identified by code.
	// An empty value with a nil error means the sequence is not defined.
	Next(ctx context.Context, code string) (string, error)
}
