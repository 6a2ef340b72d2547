// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package bridge

import (
	"github.com/google/uuid"

	"github.com/trackbridge/trackbridge/internal/models"
)

// SyncTopic is the in-process queue topic carrying sync jobs from event
// handling to the dispatch workers.
const SyncTopic = "sync.jobs"

// Job kinds.
const (
	JobProgress = "progress"
	JobSeen     = "seen"
)

// SyncJob is the queue envelope for one outbound MediaTracker call. Exactly
// one of Progress or Seen is set, matching Kind.
type SyncJob struct {
	Kind     string                  `json:"kind"`
	UserID   uuid.UUID               `json:"userId"`
	Progress *models.ProgressPayload `json:"progress,omitempty"`
	Seen     *models.SeenPayload     `json:"seen,omitempty"`
}
