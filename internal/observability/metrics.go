package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RelayMetrics holds the relay's own instruments: open transports, fan-out
// volume, and delivery failures.
type RelayMetrics struct {
	openConnections metric.Int64UpDownCounter
	broadcastCount  metric.Int64Counter
	deliveryCount   metric.Int64Counter
	sendFailures    metric.Int64Counter
	answersRecorded metric.Int64Counter
}

// NewRelayMetrics creates the relay metric instruments
func NewRelayMetrics() (*RelayMetrics, error) {
	meter := otel.Meter(instrumentationName)

	openConnections, err := meter.Int64UpDownCounter(
		"relay.connections.open",
		metric.WithDescription("Number of open player transports"),
		metric.WithUnit("{connections}"),
	)
	if err != nil {
		return nil, err
	}

	broadcastCount, err := meter.Int64Counter(
		"relay.broadcast.count",
		metric.WithDescription("Total number of fan-out broadcasts"),
		metric.WithUnit("{broadcasts}"),
	)
	if err != nil {
		return nil, err
	}

	deliveryCount, err := meter.Int64Counter(
		"relay.broadcast.deliveries",
		metric.WithDescription("Total per-recipient deliveries attempted by broadcasts"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, err
	}

	sendFailures, err := meter.Int64Counter(
		"relay.send.failures",
		metric.WithDescription("Total failed sends to player transports"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, err
	}

	answersRecorded, err := meter.Int64Counter(
		"relay.answers.recorded",
		metric.WithDescription("Total answers buffered for the host"),
		metric.WithUnit("{answers}"),
	)
	if err != nil {
		return nil, err
	}

	return &RelayMetrics{
		openConnections: openConnections,
		broadcastCount:  broadcastCount,
		deliveryCount:   deliveryCount,
		sendFailures:    sendFailures,
		answersRecorded: answersRecorded,
	}, nil
}

// ConnectionOpened records a new transport
func (m *RelayMetrics) ConnectionOpened(ctx context.Context) {
	m.openConnections.Add(ctx, 1)
}

// ConnectionClosed records a transport going away
func (m *RelayMetrics) ConnectionClosed(ctx context.Context) {
	m.openConnections.Add(ctx, -1)
}

// RecordBroadcast records one fan-out and its per-recipient outcome
func (m *RelayMetrics) RecordBroadcast(ctx context.Context, eventType string, succeeded, failed int) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	m.broadcastCount.Add(ctx, 1, attrs)
	m.deliveryCount.Add(ctx, int64(succeeded+failed), attrs)
	if failed > 0 {
		m.sendFailures.Add(ctx, int64(failed), attrs)
	}
}

// RecordSendFailure records one failed direct send
func (m *RelayMetrics) RecordSendFailure(ctx context.Context, eventType string) {
	m.sendFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordAnswer records one buffered answer
func (m *RelayMetrics) RecordAnswer(ctx context.Context) {
	m.answersRecorded.Add(ctx, 1)
}
