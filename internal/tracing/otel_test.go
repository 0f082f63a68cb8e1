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

package tracing

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/squash/pkg/errors"
)

func setupTest(t *testing.T, cfg Config) (*Provider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	cfg.ServiceName = "squash-test"
	cfg.ServiceVersion = "1.0.0"
	cfg.Registerer = promclient.NewRegistry()
	p, err := Setup(context.Background(), cfg, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, exporter
}

func TestSetup_RecordsSpans(t *testing.T) {
	p, exporter := setupTest(t, Config{Exporter: "none"})

	ctx, parent := p.Tracer("test").Start(context.Background(), "pipeline.run")
	_, child := p.Tracer("test").Start(ctx, "pipeline.route", trace.WithAttributes(attribute.String("stage", "route")))
	child.End()
	parent.End()
	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "pipeline.route", spans[0].Name)
	assert.Equal(t, "pipeline.run", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.NotNil(t, p.Metrics())
	assert.NotNil(t, p.MetricsHandler())
}

func TestCreateExporter(t *testing.T) {
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: Config{Exporter: "none"}, wantNil: true},
		{name: "empty", cfg: Config{}, wantNil: true},
		{name: "stdout", cfg: Config{Exporter: "stdout"}},
		{name: "otlp http", cfg: Config{Exporter: "otlp-http", Endpoint: "localhost:4318", Insecure: true}},
		{name: "otlp grpc", cfg: Config{Exporter: "otlp-grpc", Endpoint: "localhost:4317", Insecure: true}},
		{name: "otlp grpc tls", cfg: Config{Exporter: "otlp-grpc", Endpoint: "collector:4317"}},
		{name: "unknown", cfg: Config{Exporter: "zipkin"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := CreateExporter(context.Background(), tt.cfg)
			if tt.wantErr {
				var cfgErr *errors.ConfigError
				require.True(t, stderrors.As(err, &cfgErr))
				assert.Equal(t, "TRACE_EXPORTER", cfgErr.Key)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, exp)
				return
			}
			require.NotNil(t, exp)
			_ = exp.Shutdown(context.Background())
		})
	}
}

func TestSetup_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	p, err := Setup(context.Background(), Config{
		ServiceName: "squash-test",
		Exporter:    "stdout",
		Registerer:  promclient.NewRegistry(),
	})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "pipeline.review")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pipeline.review")
}

func TestSampler(t *testing.T) {
	never := NewSampler(0.000001)
	assert.Contains(t, never.Description(), "ErrorAwareSampler")
	assert.Contains(t, NewSampler(1).Description(), "AlwaysOnSampler")

	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		Name:          "pipeline.run",
		Attributes:    []attribute.KeyValue{attribute.Bool(AttrRunError, true)},
	}
	assert.Equal(t, sdktrace.RecordAndSample, never.ShouldSample(params).Decision)
}
