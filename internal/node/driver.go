package node

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/internal/encoder"
	"github.com/wlamlab/wlam_node/internal/model"
	"github.com/wlamlab/wlam_node/internal/radio"
	"github.com/wlamlab/wlam_node/internal/scheduler"
	"github.com/wlamlab/wlam_node/internal/stats"
)

// Sink receives fully-formed, stamped uplink packets.
type Sink interface {
	Publish(pkt *model.UplinkPacket) error
}

// Driver is the node's top-level loop: Idle until the next wake, then one
// Firing pass over every due sensor, at most one packet out, back to Idle.
// The firing path runs to completion before any other event is considered.
type Driver struct {
	timers  *scheduler.TimerSet
	builder *encoder.Builder
	binder  *radio.Binder
	sink    Sink
	rec     stats.Recorder
	clock   Clock
	log     *zap.Logger

	// maxSim stops the run once the next wake would pass this horizon;
	// zero means no horizon.
	maxSim time.Duration

	now model.SimTime
}

func NewDriver(timers *scheduler.TimerSet, builder *encoder.Builder, binder *radio.Binder,
	sink Sink, rec stats.Recorder, clock Clock, maxSim time.Duration, log *zap.Logger) *Driver {
	if rec == nil {
		rec = stats.Nop{}
	}
	return &Driver{
		timers:  timers,
		builder: builder,
		binder:  binder,
		sink:    sink,
		rec:     rec,
		clock:   clock,
		maxSim:  maxSim,
		log:     log,
	}
}

// Now returns the driver's current simulated time.
func (d *Driver) Now() model.SimTime { return d.now }

// Run executes wake cycles until every sensor is disabled, the simulation
// horizon is reached, or the context is cancelled. A cancellation releases
// the pending wake and leaves no partial firing state behind.
func (d *Driver) Run(ctx context.Context) error {
	for {
		wake := d.timers.EarliestDue()
		if wake == model.Never {
			d.log.Info("all sensors disabled, node dormant",
				zap.Duration("sim_time", d.now))
			return nil
		}
		if d.maxSim > 0 && wake > d.maxSim {
			d.log.Info("simulation horizon reached",
				zap.Duration("sim_time", d.now),
				zap.Duration("horizon", d.maxSim))
			return nil
		}
		if err := d.clock.Sleep(ctx, wake-d.now); err != nil {
			d.log.Info("pending wake cancelled", zap.Duration("sim_time", d.now))
			return err
		}
		d.now = wake
		d.fire(wake)
	}
}

// fire processes every slot due at the wake instant and emits at most one
// packet. All due sensors merge into the same packet; none produces its own.
func (d *Driver) fire(now model.SimTime) {
	due := d.timers.CollectDueAndAdvance(now)
	if len(due) == 0 {
		// Spurious wake; nothing to send, just reschedule.
		d.log.Debug("spurious wake", zap.Duration("sim_time", now))
		return
	}

	reading, err := d.builder.Build(now, due, d.timers.CounterValue())
	if err != nil {
		if !errors.Is(err, encoder.ErrNothingDue) {
			d.log.Error("packet build failed", zap.Error(err))
		}
		return
	}

	d.record(due, reading)

	pkt := model.NewUplinkPacket(uuid.NewString(), reading)
	d.binder.Stamp(pkt)
	if err := d.sink.Publish(pkt); err != nil {
		d.log.Error("uplink publish failed",
			zap.String("packet_id", pkt.PacketID), zap.Error(err))
		return
	}
	d.rec.PacketSent(reading.Bitmap, reading.SizeBytes)
}

// record feeds observations back into the slots and out to the stats sink.
// A humidity value pulled in by the temperature coupling is reported but
// does not touch humidity's own slot.
func (d *Driver) record(due []model.SensorKind, r *model.AggregatedReading) {
	for _, kind := range due {
		switch kind {
		case model.Temperature:
			d.timers.Observe(model.Temperature, r.Temperature)
			d.rec.Observe(model.Temperature, r.Temperature)
			d.rec.Observe(model.Humidity, r.Humidity)
		case model.Gas:
			d.timers.Observe(model.Gas, r.Gas)
			d.rec.Observe(model.Gas, r.Gas)
		case model.Humidity:
			d.timers.Observe(model.Humidity, r.Humidity)
			d.rec.Observe(model.Humidity, r.Humidity)
		case model.Counter:
			d.rec.Observe(model.Counter, float64(r.Counter))
		}
	}
}
