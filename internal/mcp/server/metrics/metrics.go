package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coursedb_mcp_build_info",
			Help: "Build information of the course database MCP server",
		},
		[]string{"version", "commit", "date"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursedb_mcp_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursedb_mcp_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
		[]string{"tool_name"},
	)

	QueryRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coursedb_mcp_query_rows_returned",
			Help:    "Number of rows returned per executed query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6), // 1 to ~1k
		},
	)
)
