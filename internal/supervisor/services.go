// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package supervisor

import (
	"context"

	"github.com/trackbridge/trackbridge/internal/logging"
)

// StartStopper is the lifecycle shape of the Jellyfin manager: start
// background work, then stop it on demand.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// StartStopService adapts a StartStopper to suture.Service. Serve blocks
// until the context is cancelled, then calls Stop.
type StartStopService struct {
	Name    string
	Service StartStopper
}

// Serve implements suture.Service.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.Service.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	if err := s.Service.Stop(); err != nil {
		logging.Warn().Err(err).Str("service", s.Name).Msg("Service stop failed")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *StartStopService) String() string {
	return s.Name
}
