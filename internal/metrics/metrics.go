package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed conversation turns by terminal status.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_turns_total",
		Help: "Conversation turns by terminal status.",
	}, []string{"status"})

	// ToolCallsTotal counts dispatched tool calls by tool and outcome.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_tool_calls_total",
		Help: "Dispatched tool calls by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// ModelRoundSeconds observes model-collaborator round-trip latency.
	ModelRoundSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assist_model_round_seconds",
		Help:    "Latency of one model inference round.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// RoundsPerTurn observes how many model rounds a turn needed.
	RoundsPerTurn = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assist_rounds_per_turn",
		Help:    "Model rounds used per conversation turn.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
)
