package booking_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/warp/agency-booking/booking"
	"github.com/warp/agency-booking/booking/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const clerk booking.Actor = "clerk-1"

// today is the fixed "now" of every service under test.
var today = booking.NewDay(2026, time.March, 2)

type fixture struct {
	svc      *booking.Service
	mem      *store.Memory
	agency   booking.AgencyID
	customer booking.CustomerID
}

func newFixture(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	a, err := mem.SaveAgency(ctx, booking.Agency{Name: "Central", Active: true})
	require.NoError(t, err)
	c, err := mem.SaveCustomer(ctx, booking.Customer{FullName: "Ada Lovelace"})
	require.NoError(t, err)

	opts = append([]booking.Option{
		booking.WithClock(func() time.Time { return today.Time.Add(9 * time.Hour) }),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	return &fixture{
		svc:      booking.NewService(mem, opts...),
		mem:      mem,
		agency:   a.ID,
		customer: c.ID,
	}
}

func (f *fixture) setQuota(t *testing.T, max int) {
	t.Helper()
	_, err := f.svc.SetAgencyQuota(context.Background(), f.agency, max, clerk)
	require.NoError(t, err)
}

func (f *fixture) book(t *testing.T, day booking.Day) booking.Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), booking.CreateInput{
		AgencyID:   f.agency,
		CustomerID: f.customer,
		Desired:    day,
	}, clerk)
	require.NoError(t, err)
	return appt
}

func token(t *testing.T, day booking.Day, seq int) booking.Token {
	t.Helper()
	tok, err := booking.NewToken(day, seq)
	require.NoError(t, err)
	return tok
}

func statusPtr(s booking.Status) *booking.Status { return &s }
func dayPtr(d booking.Day) *booking.Day          { return &d }
func strPtr(s string) *string                    { return &s }

var (
	spansOnce sync.Once
	spans     *tracetest.SpanRecorder
)

// recordSpans points the global tracer provider at an in-memory recorder.
// Tracers handed out before the first SetTracerProvider only follow that
// first call, so the recorder is shared by every test.
func recordSpans() *tracetest.SpanRecorder {
	spansOnce.Do(func() {
		spans = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	})
	return spans
}
