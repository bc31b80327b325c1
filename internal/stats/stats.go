package stats

import "github.com/wlamlab/wlam_node/internal/model"

// Recorder receives the node's named measurement events. Calls are
// fire-and-forget: they return nothing and must never influence scheduling.
type Recorder interface {
	// Observe records a sampled value (the counter is reported as a float).
	Observe(kind model.SensorKind, value float64)
	// PacketSent records an emitted uplink packet and its exact size.
	PacketSent(bitmap model.Bitmap, sizeBytes int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Observe(model.SensorKind, float64) {}
func (Nop) PacketSent(model.Bitmap, int) {}

// Multi fans events out to several recorders.
type Multi []Recorder

func (m Multi) Observe(kind model.SensorKind, value float64) {
	for _, r := range m {
		r.Observe(kind, value)
	}
}

func (m Multi) PacketSent(bitmap model.Bitmap, sizeBytes int) {
	for _, r := range m {
		r.PacketSent(bitmap, sizeBytes)
	}
}
