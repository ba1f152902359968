package player

import (
	"context"

	"podradio/internal/domain"
)

// Unavailable is the playback facade used when no player binary exists on
// the host. Every control command fails with a domain error instead of the
// server refusing to start; subscription management stays usable.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Play(ctx context.Context, mediaURL string) error {
	return domain.NewCommandError(domain.CodePlayerFailure, "Playback failed").WithDetails(u.Reason)
}

func (u Unavailable) Pause() error {
	return domain.NewCommandError(domain.CodePlayerFailure, "Player control failed").WithDetails(u.Reason)
}

func (u Unavailable) Stop() error {
	return nil
}

func (u Unavailable) IsPlaying() bool {
	return false
}
