// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
bridge.go - Session Event Pipeline

This file wires the whole sync path together: Jellyfin session snapshots come
in, get translated into per-user observations, pass through the debounce
filter, and the survivors are queued as sync jobs. A pool of workers drains
the queue and performs the outbound MediaTracker calls.

The inbound half (HandleSessions) never blocks on the network: queueing is
the only hand-off. The outbound half never retries: a failed call is logged
and dropped, the next accepted observation supersedes it anyway.
*/

package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/trackbridge/trackbridge/internal/debounce"
	"github.com/trackbridge/trackbridge/internal/dispatch"
	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/metrics"
	"github.com/trackbridge/trackbridge/internal/models"
	"github.com/trackbridge/trackbridge/internal/translate"
)

// Dispatcher performs outbound MediaTracker calls. Implemented by
// dispatch.Client.
type Dispatcher interface {
	UpdateProgress(ctx context.Context, userID uuid.UUID, payload models.ProgressPayload) error
	MarkSeen(ctx context.Context, userID uuid.UUID, payload models.SeenPayload) error
}

// Config tunes the bridge pipeline.
type Config struct {
	// Workers is the number of concurrent dispatch workers.
	Workers int

	// QueueSize is the sync queue buffer length.
	QueueSize int

	// DispatchTimeout bounds one outbound call made by a worker.
	DispatchTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		DispatchTimeout: 30 * time.Second,
	}
}

// Bridge connects Jellyfin session events to MediaTracker sync calls.
type Bridge struct {
	cfg        Config
	store      *debounce.Store
	translator *translate.Translator
	dispatcher Dispatcher
	queue      *gochannel.GoChannel

	now func() time.Time

	startedMu sync.Mutex
	started   chan struct{}
}

// New creates a Bridge. The queue is in-process; jobs not yet dispatched at
// shutdown are lost, which is acceptable because playback state is
// re-observed continuously.
func New(cfg Config, store *debounce.Store, translator *translate.Translator, dispatcher Dispatcher) *Bridge {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}

	queue := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.QueueSize),
	}, logging.NewWatermillAdapter())

	return &Bridge{
		cfg:        cfg,
		store:      store,
		translator: translator,
		dispatcher: dispatcher,
		queue:      queue,
		now:        time.Now,
		started:    make(chan struct{}),
	}
}

// SetTranslator injects the translator after construction. The bridge and
// the Jellyfin manager reference each other, so one side is wired late; call
// this before any events flow.
func (b *Bridge) SetTranslator(tr *translate.Translator) {
	b.translator = tr
}

// HandleSessions processes one batch of session snapshots from an event
// source. Sessions without active playback are ignored. All filtering state
// is touched here, synchronously; only the surviving sync jobs cross the
// queue to the workers.
func (b *Bridge) HandleSessions(ctx context.Context, sessions []models.JellyfinSession, source string) {
	now := b.now()

	// One sweep per event batch, before any admission decisions.
	b.store.Cleanup(now)
	entries, _ := b.store.Len()
	metrics.DebounceEntries.Set(float64(entries))

	for i := range sessions {
		session := &sessions[i]
		if !session.IsActive() {
			continue
		}
		metrics.EventsReceived.WithLabelValues(source).Inc()
		b.handleSession(ctx, session, now)
	}
}

func (b *Bridge) handleSession(ctx context.Context, session *models.JellyfinSession, now time.Time) {
	action := session.Action()

	result, err := b.translator.Translate(ctx, session, action, now)
	if err != nil {
		b.recordRejection(session, err)
		return
	}

	for _, obs := range result.Observations {
		key := debounce.Key{UserID: obs.UserID, ItemID: result.Viewable.ItemID}

		if !b.store.Admit(key, obs) {
			metrics.ObservationsSkipped.Inc()
			continue
		}

		metrics.ObservationsAccepted.Inc()
		payload := translate.BuildProgressPayload(result.Viewable, obs.Action, obs.Progress, result.DurationMS, result.Device)
		b.enqueue(SyncJob{Kind: JobProgress, UserID: obs.UserID, Progress: &payload})

		logging.Debug().
			Str("user_id", obs.UserID.String()).
			Str("item", result.Viewable.Title).
			Str("action", string(obs.Action)).
			Float64("progress", obs.Progress).
			Msg("Progress update queued")

		// Only accepted observations are considered for a seen notification.
		// The marker is recorded before the job is queued and never rolled
		// back, so a user is marked at most once per watch.
		if b.store.TryMarkSeen(key, obs.Progress) {
			metrics.SeenMarks.Inc()
			seen := translate.BuildSeenPayload(result.Viewable, result.DurationMS)
			b.enqueue(SyncJob{Kind: JobSeen, UserID: obs.UserID, Seen: &seen})

			logging.Info().
				Str("user_id", obs.UserID.String()).
				Str("item", result.Viewable.Title).
				Msg("Marking item as seen")
		}
	}
}

// recordRejection logs a translation failure at a severity matching how
// routine it is. Unsupported media (music, live TV) is everyday noise.
func (b *Bridge) recordRejection(session *models.JellyfinSession, err error) {
	switch {
	case errors.Is(err, translate.ErrUnsupportedMediaKind):
		metrics.EventsRejected.WithLabelValues("unsupported_kind").Inc()
		logging.Debug().Err(err).Str("session_id", session.ID).Msg("Ignoring session")
	case errors.Is(err, translate.ErrIncompleteEvent):
		metrics.EventsRejected.WithLabelValues("incomplete").Inc()
		logging.Debug().Err(err).Str("session_id", session.ID).Msg("Ignoring session")
	case errors.Is(err, translate.ErrMissingExternalIDs):
		metrics.EventsRejected.WithLabelValues("missing_ids").Inc()
		logging.Warn().Err(err).Str("session_id", session.ID).Msg("Cannot sync item without external ids")
	default:
		metrics.EventsRejected.WithLabelValues("resolver").Inc()
		logging.Error().Err(err).Str("session_id", session.ID).Msg("Failed to translate session")
	}
}

func (b *Bridge) enqueue(job SyncJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal sync job")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.queue.Publish(SyncTopic, msg); err != nil {
		logging.Error().Err(err).Msg("Failed to queue sync job")
		return
	}
	metrics.QueueDepth.Inc()
}

// Serve runs the dispatch workers until the context is cancelled. It
// satisfies suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	msgs, err := b.queue.Subscribe(ctx, SyncTopic)
	if err != nil {
		return err
	}

	b.startedMu.Lock()
	select {
	case <-b.started:
	default:
		close(b.started)
	}
	b.startedMu.Unlock()

	logging.Info().Int("workers", b.cfg.Workers).Msg("Sync dispatch workers starting")

	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				b.processMessage(ctx, msg)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Started returns a channel closed once the workers are subscribed. Event
// sources wait on it so no job is published into a queue with no consumer.
func (b *Bridge) Started() <-chan struct{} {
	return b.started
}

// Close shuts the queue down. Call after the supervisor tree has stopped.
func (b *Bridge) Close() error {
	return b.queue.Close()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string {
	return "sync-bridge"
}

func (b *Bridge) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()
	metrics.QueueDepth.Dec()

	var job SyncJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed sync job")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.DispatchTimeout)
	defer cancel()

	var err error
	switch job.Kind {
	case JobProgress:
		if job.Progress == nil {
			logging.Error().Str("message_id", msg.UUID).Msg("Progress job without payload")
			return
		}
		err = b.dispatcher.UpdateProgress(callCtx, job.UserID, *job.Progress)
	case JobSeen:
		if job.Seen == nil {
			logging.Error().Str("message_id", msg.UUID).Msg("Seen job without payload")
			return
		}
		err = b.dispatcher.MarkSeen(callCtx, job.UserID, *job.Seen)
	default:
		logging.Error().Str("kind", job.Kind).Msg("Unknown sync job kind")
		return
	}

	if err != nil {
		// Fire-and-forget: log and move on, the next event supersedes this one.
		if errors.Is(err, dispatch.ErrMissingConfiguration) {
			logging.Debug().Err(err).Str("user_id", job.UserID.String()).Msg("Skipping sync for unconfigured user")
			return
		}
		logging.Warn().Err(err).
			Str("kind", job.Kind).
			Str("user_id", job.UserID.String()).
			Msg("Sync dispatch failed")
	}
}
