package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/wlamlab/wlam_node/internal/environment"
	"github.com/wlamlab/wlam_node/internal/model"
)

// Fixed field widths of the wire layout. The timestamp and the three sensing
// values are 8-byte fields; the counter width is configured separately.
const (
	TimestampBytes  = 8
	FloatFieldBytes = 8
)

// ErrNothingDue signals a firing batch with no due sensor: the encoder
// refuses to produce an empty-bitmap packet.
var ErrNothingDue = errors.New("encoder: no sensor due, nothing to send")

// Builder turns a due-set into one AggregatedReading with exact size
// accounting.
type Builder struct {
	gen               *environment.Generator
	nodeID            string
	basePayloadBytes  int
	counterFieldBytes int
}

func NewBuilder(gen *environment.Generator, nodeID string, basePayloadBytes, counterFieldBytes int) (*Builder, error) {
	if basePayloadBytes < 0 {
		return nil, fmt.Errorf("encoder: negative base payload size %d", basePayloadBytes)
	}
	if counterFieldBytes < 0 || counterFieldBytes > 8 {
		return nil, fmt.Errorf("encoder: counter field size %d outside [0,8]", counterFieldBytes)
	}
	return &Builder{
		gen:               gen,
		nodeID:            nodeID,
		basePayloadBytes:  basePayloadBytes,
		counterFieldBytes: counterFieldBytes,
	}, nil
}

// PayloadSize computes the exact wire size of a packet carrying the given
// bitmap: base overhead, one bitmap byte, the timestamp, then one fixed-width
// field per set bit.
func PayloadSize(bitmap model.Bitmap, basePayloadBytes, counterFieldBytes int) int {
	size := basePayloadBytes + 1 + TimestampBytes
	if bitmap.Has(model.Temperature) {
		size += FloatFieldBytes
	}
	if bitmap.Has(model.Gas) {
		size += FloatFieldBytes
	}
	if bitmap.Has(model.Humidity) {
		size += FloatFieldBytes
	}
	if bitmap.Has(model.Counter) {
		size += counterFieldBytes
	}
	return size
}

// Build samples every due kind at the given instant and merges the results
// into one reading. Firing Temperature always samples Humidity as well (the
// two share a sensing element); Humidity's own timer is not involved.
// When the due set is empty, Build returns ErrNothingDue.
func (b *Builder) Build(now model.SimTime, due []model.SensorKind, counterValue uint64) (*model.AggregatedReading, error) {
	r := &model.AggregatedReading{
		NodeID:      b.nodeID,
		CreatedAt:   now,
		Temperature: math.NaN(),
		Gas:         math.NaN(),
		Humidity:    math.NaN(),
	}

	// Kind order matters: a humidity sample from the temperature coupling is
	// overwritten when humidity's own timer fired in the same batch.
	for _, kind := range due {
		switch kind {
		case model.Temperature:
			r.Temperature = b.gen.Temperature(now)
			r.Humidity = b.gen.Humidity(now)
			r.Bitmap |= model.BitTemperature | model.BitHumidity
		case model.Gas:
			r.Gas = b.gen.Gas(now)
			r.Bitmap |= model.BitGas
		case model.Humidity:
			r.Humidity = b.gen.Humidity(now)
			r.Bitmap |= model.BitHumidity
		case model.Counter:
			r.Counter = counterValue
			r.Bitmap |= model.BitCounter
		}
	}

	if r.Bitmap.Empty() {
		return nil, ErrNothingDue
	}

	r.SizeBytes = PayloadSize(r.Bitmap, b.basePayloadBytes, b.counterFieldBytes)
	r.Frame = b.encodeFrame(r)
	return r, nil
}

// encodeFrame lays out the payload proper: bitmap byte, big-endian timestamp,
// then the present fields in bit order. The base overhead is accounted for in
// SizeBytes but lives outside this frame.
func (b *Builder) encodeFrame(r *model.AggregatedReading) []byte {
	frame := make([]byte, 0, r.SizeBytes-b.basePayloadBytes)
	frame = append(frame, byte(r.Bitmap))
	frame = binary.BigEndian.AppendUint64(frame, uint64(r.CreatedAt))
	if r.Bitmap.Has(model.Temperature) {
		frame = binary.BigEndian.AppendUint64(frame, math.Float64bits(r.Temperature))
	}
	if r.Bitmap.Has(model.Gas) {
		frame = binary.BigEndian.AppendUint64(frame, math.Float64bits(r.Gas))
	}
	if r.Bitmap.Has(model.Humidity) {
		frame = binary.BigEndian.AppendUint64(frame, math.Float64bits(r.Humidity))
	}
	if r.Bitmap.Has(model.Counter) && b.counterFieldBytes > 0 {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], r.Counter)
		frame = append(frame, buf[8-b.counterFieldBytes:]...)
	}
	return frame
}
