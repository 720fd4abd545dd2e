// Package draw implements winner selection for giveaways.
package draw

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"giveaway-bot/internal/model"
)

// ErrInvalidRange is returned by an index source asked for a non-positive range.
var ErrInvalidRange = errors.New("random range must be positive")

// IntnFunc returns a uniformly distributed integer in [0, n).
type IntnFunc func(n int) (int, error)

// CryptoIntn draws indexes from crypto/rand so results cannot be predicted
// from earlier draws.
func CryptoIntn(n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidRange
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

// Select draws min(k, len(participants)) winners uniformly at random without
// replacement. The returned order is the draw order. The input slice is not modified.
func Select(participants []model.Participant, k int, intn IntnFunc) ([]model.Participant, error) {
	if intn == nil {
		intn = CryptoIntn
	}

	remaining := append(make([]model.Participant, 0, len(participants)), participants...)
	winners := make([]model.Participant, 0, min(max(k, 0), len(remaining)))

	for len(winners) < k && len(remaining) > 0 {
		idx, err := intn(len(remaining))
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(remaining) {
			return nil, fmt.Errorf("random index %d out of range [0, %d)", idx, len(remaining))
		}
		winners = append(winners, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	return winners, nil
}
