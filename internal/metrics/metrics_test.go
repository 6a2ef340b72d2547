// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBreakerState(t *testing.T) {
	cases := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"open", 1},
		{"half-open", 2},
		{"something-else", 0},
	}

	for _, tc := range cases {
		t.Run(tc.state, func(t *testing.T) {
			RecordBreakerState("jellyfin", tc.state)
			got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("jellyfin"))
			if got != tc.want {
				t.Errorf("state %q recorded as %v, want %v", tc.state, got, tc.want)
			}
		})
	}
}

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(ObservationsAccepted)
	ObservationsAccepted.Inc()
	ObservationsAccepted.Inc()
	if got := testutil.ToFloat64(ObservationsAccepted); got != before+2 {
		t.Errorf("counter = %v, want %v", got, before+2)
	}

	EventsRejected.WithLabelValues("incomplete").Inc()
	if got := testutil.ToFloat64(EventsRejected.WithLabelValues("incomplete")); got < 1 {
		t.Errorf("labeled counter not incremented: %v", got)
	}
}

func TestMetricsLint(t *testing.T) {
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, p := range problems {
		t.Errorf("metric %s: %s", p.Metric, p.Text)
	}
}
