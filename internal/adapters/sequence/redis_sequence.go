// Package sequence provides sequence providers backed by stores other than
// PostgreSQL.
package sequence

import (
	"context"
	"fmt"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	redisclient "github.com/zatekoja/clinicbooking/internal/infrastructure/clients/redis"
)

const keyPrefix = "sequence:"

// RedisSequence draws sequence values with INCR. Only codes registered at
// construction are defined; INCR is atomic, so concurrent callers always get
// distinct numbers.
type RedisSequence struct {
	client    *redisclient.Client
	sequences map[string]entities.Sequence
}

// NewRedisSequence creates a Redis backed sequence provider for the given
// sequence definitions
func NewRedisSequence(client *redisclient.Client, sequences ...entities.Sequence) *RedisSequence {
	defs := make(map[string]entities.Sequence, len(sequences))
	for _, seq := range sequences {
		defs[seq.Code] = seq
	}
	return &RedisSequence{client: client, sequences: defs}
}

var _ providers.SequenceProvider = (*RedisSequence)(nil)

// Next returns the next value of code, or an empty value for an unknown code
func (s *RedisSequence) Next(ctx context.Context, code string) (string, error) {
	seq, ok := s.sequences[code]
	if !ok {
		return "", nil
	}

	counter, err := s.client.Client().IncrBy(ctx, keyPrefix+code, increment(seq)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to advance sequence %s: %w", code, err)
	}

	return seq.Format(drawn(seq, counter)), nil
}

func increment(seq entities.Sequence) int64 {
	if seq.NumberIncrement <= 0 {
		return 1
	}
	return seq.NumberIncrement
}

// drawn maps the raw counter onto the numbering that starts at NumberNext.
// The first INCRBY on a missing key returns the increment itself.
func drawn(seq entities.Sequence, counter int64) int64 {
	start := seq.NumberNext
	if start <= 0 {
		start = 1
	}
	return start + counter - increment(seq)
}
