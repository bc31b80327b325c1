package node

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/internal/encoder"
	"github.com/wlamlab/wlam_node/internal/environment"
	"github.com/wlamlab/wlam_node/internal/model"
	"github.com/wlamlab/wlam_node/internal/radio"
	"github.com/wlamlab/wlam_node/internal/scheduler"
	"github.com/wlamlab/wlam_node/internal/stats"
)

type captureSink struct {
	packets []*model.UplinkPacket
}

func (c *captureSink) Publish(pkt *model.UplinkPacket) error {
	c.packets = append(c.packets, pkt)
	return nil
}

type intervals struct {
	temperature time.Duration
	gas         time.Duration
	humidity    time.Duration
	counter     time.Duration
}

const (
	testBaseBytes    = 8
	testCounterBytes = 4
)

func newTestDriver(t *testing.T, iv intervals, horizon time.Duration) (*Driver, *captureSink) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))

	timers := scheduler.NewTimerSet(rng)
	for _, sc := range []struct {
		kind      model.SensorKind
		period    time.Duration
		isCounter bool
	}{
		{model.Temperature, iv.temperature, false},
		{model.Gas, iv.gas, false},
		{model.Humidity, iv.humidity, false},
		{model.Counter, iv.counter, true},
	} {
		if err := timers.Configure(sc.kind, 0, sc.period, 0, sc.isCounter); err != nil {
			t.Fatalf("configure %v: %v", sc.kind, err)
		}
	}

	gen := environment.New(environment.Params{
		BaseTemperature:      20,
		AmplitudeTemperature: 5,
		BaseHumidity:         60,
		AmplitudeHumidity:    10,
		BaseGas:              0.4,
		AmplitudeGas:         0.2,
	}, rng)
	builder, err := encoder.NewBuilder(gen, "test-node", testBaseBytes, testCounterBytes)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	binder := radio.NewBinder(&model.RadioParameters{
		TxPowerDbm:        14,
		CenterFrequencyHz: 868e6,
		SpreadingFactor:   7,
		BandwidthHz:       125e3,
		CodingRate:        1,
	}, zap.NewNop())

	sink := &captureSink{}
	d := NewDriver(timers, builder, binder, sink, stats.Nop{}, InstantClock{}, horizon, zap.NewNop())
	return d, sink
}

func TestTemperatureOnlyEmitsCoupledPacket(t *testing.T) {
	d, sink := newTestDriver(t, intervals{temperature: 10 * time.Second}, 10*time.Second)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.packets) != 1 {
		t.Fatalf("packets = %d, want 1", len(sink.packets))
	}

	pkt := sink.packets[0]
	if pkt.CreatedAt != 10*time.Second {
		t.Fatalf("packet at %v, want 10s", pkt.CreatedAt)
	}
	if want := model.BitTemperature | model.BitHumidity; pkt.Bitmap != want {
		t.Fatalf("bitmap = %v, want %v", pkt.Bitmap, want)
	}
	if pkt.Temperature == nil || pkt.Humidity == nil {
		t.Fatalf("coupled values missing: %+v", pkt)
	}
	if math.IsNaN(*pkt.Temperature) || math.IsNaN(*pkt.Humidity) {
		t.Fatalf("coupled values NaN")
	}
	if pkt.Gas != nil || pkt.Counter != nil {
		t.Fatalf("disabled sensors present in packet: %+v", pkt)
	}
	if want := testBaseBytes + 1 + encoder.TimestampBytes + 2*encoder.FloatFieldBytes; pkt.SizeBytes != want {
		t.Fatalf("size = %d, want %d", pkt.SizeBytes, want)
	}
	if pkt.Radio == nil || pkt.Radio.SpreadingFactor != 7 {
		t.Fatalf("packet not stamped: %+v", pkt.Radio)
	}
}

func TestAllSensorsMergeIntoOnePacket(t *testing.T) {
	iv := intervals{
		temperature: 5 * time.Second,
		gas:         5 * time.Second,
		humidity:    5 * time.Second,
		counter:     5 * time.Second,
	}
	d, sink := newTestDriver(t, iv, 5*time.Second)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.packets) != 1 {
		t.Fatalf("all sensors due at once must merge into one packet, got %d", len(sink.packets))
	}

	pkt := sink.packets[0]
	want := model.BitTemperature | model.BitGas | model.BitHumidity | model.BitCounter
	if pkt.Bitmap != want {
		t.Fatalf("bitmap = %v, want %v", pkt.Bitmap, want)
	}
	if pkt.Counter == nil || *pkt.Counter != 1 {
		t.Fatalf("counter = %v, want 1", pkt.Counter)
	}
	wantSize := testBaseBytes + 1 + encoder.TimestampBytes + 3*encoder.FloatFieldBytes + testCounterBytes
	if pkt.SizeBytes != wantSize {
		t.Fatalf("size = %d, want %d", pkt.SizeBytes, wantSize)
	}
}

func TestIndependentSensorsOnlyMergeWhenDueTimesCoincide(t *testing.T) {
	iv := intervals{gas: 6 * time.Second, humidity: 10 * time.Second}
	d, sink := newTestDriver(t, iv, 12*time.Second)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []struct {
		at     time.Duration
		bitmap model.Bitmap
	}{
		{6 * time.Second, model.BitGas},
		{10 * time.Second, model.BitHumidity},
		{12 * time.Second, model.BitGas},
	}
	if len(sink.packets) != len(want) {
		t.Fatalf("packets = %d, want %d", len(sink.packets), len(want))
	}
	for i, w := range want {
		pkt := sink.packets[i]
		if pkt.CreatedAt != w.at || pkt.Bitmap != w.bitmap {
			t.Fatalf("packet %d at %v bitmap %v, want %v %v",
				i, pkt.CreatedAt, pkt.Bitmap, w.at, w.bitmap)
		}
	}
}

func TestCounterStrictlyIncreasesAcrossPackets(t *testing.T) {
	d, sink := newTestDriver(t, intervals{counter: 2 * time.Second}, 10*time.Second)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.packets) != 5 {
		t.Fatalf("packets = %d, want 5", len(sink.packets))
	}
	for i, pkt := range sink.packets {
		if pkt.Counter == nil || *pkt.Counter != uint64(i+1) {
			t.Fatalf("packet %d: counter = %v, want %d", i, pkt.Counter, i+1)
		}
	}
}

func TestAllDisabledNodeGoesDormant(t *testing.T) {
	d, sink := newTestDriver(t, intervals{}, 0)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("dormant node did not return")
	}
	if len(sink.packets) != 0 {
		t.Fatalf("dormant node emitted %d packets", len(sink.packets))
	}
}

func TestCancellationReleasesPendingWake(t *testing.T) {
	d, sink := newTestDriver(t, intervals{temperature: time.Hour}, 0)
	// Real-time clock: the pending wake is an hour out, so Run must only
	// return through cancellation.
	d.clock = ScaledClock{Factor: 1}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancellation did not release the pending wake")
	}
	if len(sink.packets) != 0 {
		t.Fatalf("no packet expected before the first wake, got %d", len(sink.packets))
	}
}

func TestNoPacketWithEmptyBitmapOnSpuriousWake(t *testing.T) {
	d, sink := newTestDriver(t, intervals{gas: 5 * time.Second}, 0)
	// Force a wake with nothing due.
	d.fire(time.Second)
	if len(sink.packets) != 0 {
		t.Fatalf("spurious wake emitted a packet")
	}
}
