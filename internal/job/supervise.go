package job

import (
	"fmt"

	"github.com/rs/zerolog"
)

// runSupervised is the per-user isolation boundary: whatever one user's
// evaluation does, including panicking on malformed data, comes back as
// an error and cannot take down the run.
func runSupervised(log zerolog.Logger, userID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runSupervised: panic evaluating user %s: %v", userID, r)
			log.Error().
				Str("user_id", userID).
				Interface("panic", r).
				Msg("Panic recovered during user evaluation")
		}
	}()
	return fn()
}
