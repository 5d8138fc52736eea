// Package metrics holds the Prometheus collectors exported on the overlay
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lectern"

var (
	// SpeechRequests counts synthesis calls by backend and outcome
	// (ok, empty, credential, error, cached).
	SpeechRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "speech_requests_total",
		Help:      "Speech synthesis requests by backend and outcome.",
	}, []string{"backend", "outcome"})

	// SpeechLatency observes synthesis round-trip time.
	SpeechLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "speech_request_seconds",
		Help:      "Speech synthesis round-trip time.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"backend"})

	// PlaybackSessions counts ended playback sessions by how they ended.
	PlaybackSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_sessions_total",
		Help:      "Playback sessions by end reason (completed, stopped).",
	}, []string{"reason"})

	// LectureRuns counts lecture runs by strategy and result.
	LectureRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lecture_runs_total",
		Help:      "Lecture runs by strategy and result (finished, stopped, failed).",
	}, []string{"strategy", "result"})

	// SubtitleIndex is the subtitle line currently displayed.
	SubtitleIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subtitle_index",
		Help:      "Index of the subtitle segment currently displayed.",
	})

	// OverlayClients is the number of connected websocket viewers.
	OverlayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overlay_clients",
		Help:      "Connected overlay websocket clients.",
	})
)
