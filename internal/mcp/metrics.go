// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_mcp_connects_total",
			Help: "MCP session connect attempts by outcome",
		},
		[]string{"server", "outcome"},
	)

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "squash_mcp_active_sessions",
		Help: "MCP sessions currently connected",
	})

	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_mcp_tool_calls_total",
			Help: "MCP tool calls by outcome",
		},
		[]string{"server", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "squash_mcp_tool_call_duration_seconds",
			Help:    "Duration of MCP tool calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server"},
	)
)
