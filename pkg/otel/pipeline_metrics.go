package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// pipelineMetrics holds the singleton instance
	pipelineMetrics *PipelineMetrics
	// meter is the global meter for pipeline metrics
	meter = otel.GetMeterProvider().Meter(instrumentationName)
)

// PipelineMetrics holds metrics for the trade pipeline
type PipelineMetrics struct {
	// Total orders submitted to the pipeline
	ordersSubmittedTotal metric.Int64Counter
	// Trades reaching a terminal status, by status and failure stage
	tradesTerminalTotal metric.Int64Counter
	// Round-trip latency of one stage dispatch, by stage
	stageLatency metric.Float64Histogram
}

// GetPipelineMetrics returns the PipelineMetrics singleton
func GetPipelineMetrics() *PipelineMetrics {
	if pipelineMetrics == nil {
		ordersSubmittedTotal, err := meter.Int64Counter(
			"pipeline.orders_submitted.total",
			metric.WithDescription("Total number of orders submitted"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &PipelineMetrics{}
		}
		tradesTerminalTotal, err := meter.Int64Counter(
			"pipeline.trades_terminal.total",
			metric.WithDescription("Trades that reached a terminal status"),
			metric.WithUnit("{trade}"),
		)
		if err != nil {
			return &PipelineMetrics{}
		}
		stageLatency, err := meter.Float64Histogram(
			"pipeline.stage.latency",
			metric.WithDescription("Round-trip latency of a stage dispatch"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return &PipelineMetrics{}
		}

		pipelineMetrics = &PipelineMetrics{
			ordersSubmittedTotal: ordersSubmittedTotal,
			tradesTerminalTotal:  tradesTerminalTotal,
			stageLatency:         stageLatency,
		}
	}

	return pipelineMetrics
}

// RecordOrderSubmitted increments the submitted-orders counter
func (m *PipelineMetrics) RecordOrderSubmitted(ctx context.Context) {
	if m.ordersSubmittedTotal == nil {
		return
	}
	m.ordersSubmittedTotal.Add(ctx, 1)
}

// RecordTerminalTrade counts a trade reaching SETTLED or FAILED
func (m *PipelineMetrics) RecordTerminalTrade(ctx context.Context, status string, failureStage string) {
	if m.tradesTerminalTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("trade.status", status),
	}
	if failureStage != "" {
		attrs = append(attrs, attribute.String("trade.failure_stage", failureStage))
	}
	m.tradesTerminalTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStageLatency records the round-trip time for one stage dispatch
func (m *PipelineMetrics) RecordStageLatency(ctx context.Context, stage string, d time.Duration) {
	if m.stageLatency == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("pipeline.stage", stage),
	}
	m.stageLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attrs...))
}
