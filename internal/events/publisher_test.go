package events

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := []kafka.Header{{Key: "event-type", Value: []byte(TypeCouponRedeemed)}}
	prop := propagation.TraceContext{}
	prop.Inject(ctx, headerCarrier{headers: &headers})

	require.Len(t, headers, 2)
	assert.Contains(t, headerCarrier{headers: &headers}.Keys(), "traceparent")

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), headerCarrier{headers: &headers}))
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Equal(t, spanID, extracted.SpanID())
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	var headers []kafka.Header
	c := headerCarrier{headers: &headers}
	c.Set("k", "1")
	c.Set("k", "2")

	assert.Len(t, headers, 1)
	assert.Equal(t, "2", c.Get("k"))
	assert.Equal(t, "", c.Get("missing"))
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	err := p.PublishRedeemed(context.Background(), CouponRedeemed{
		CouponCode:     "SAVE10",
		UserID:         "u1",
		OrderID:        "o1",
		DiscountAmount: decimal.RequireFromString("12.5"),
		CurrentUsage:   3,
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	entries := logs.FilterMessage(TypeCouponRedeemed).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "o1", fields["order_id"])
	assert.Equal(t, "12.50", fields["discount_amount"])
}
