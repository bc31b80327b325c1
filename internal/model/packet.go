package model

import (
	"math"
	"time"
)

// AggregatedReading is the transient result of one firing batch: whatever
// subset of sensors was due at a single wake instant, merged into one record.
// It is built, encoded and sent within the same cycle, never persisted.
type AggregatedReading struct {
	NodeID    string
	CreatedAt SimTime
	Bitmap    Bitmap

	// Sampled values; NaN when the corresponding bit is not set.
	Temperature float64
	Gas         float64
	Humidity    float64
	Counter     uint64

	// SizeBytes is the exact wire size including the base header overhead.
	// It feeds downstream airtime accounting and must never be estimated.
	SizeBytes int

	// Frame is the encoded payload (everything except the base overhead).
	Frame []byte
}

// RadioParameters is the node's current LoRa transmit configuration.
// It is replaced as a whole on reconfiguration, never mutated field by field.
type RadioParameters struct {
	TxPowerDbm        float64
	CenterFrequencyHz float64
	SpreadingFactor   int
	BandwidthHz       float64
	CodingRate        int
}

// MilliwattsFromDbm converts a dBm power level to linear milliwatts.
func MilliwattsFromDbm(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// RadioStamp is the transmission metadata attached to an outgoing packet,
// with power already converted to linear mW for the radio.
type RadioStamp struct {
	SpreadingFactor   int     `json:"spreading_factor"`
	BandwidthHz       float64 `json:"bandwidth_hz"`
	CenterFrequencyHz float64 `json:"center_frequency_hz"`
	PowerMw           float64 `json:"power_mw"`
	CodingRate        int     `json:"coding_rate"`
}

// UplinkPacket is the JSON envelope handed to the radio sink. Optional values
// are pointers because absent readings are NaN internally and NaN does not
// survive JSON encoding.
type UplinkPacket struct {
	PacketID   string        `json:"packet_id"`
	NodeID     string        `json:"node_id"`
	CreatedAt  time.Duration `json:"created_at_ns"`
	Bitmap     Bitmap        `json:"bitmap"`
	BitmapTags string        `json:"bitmap_tags"`

	Temperature *float64 `json:"temperature,omitempty"`
	Gas         *float64 `json:"gas,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Counter     *uint64  `json:"counter,omitempty"`

	SizeBytes int    `json:"size_bytes"`
	Frame     []byte `json:"frame"`

	// Radio is nil when the node has no bound radio; such a packet cannot
	// be transmitted correctly but is still produced locally.
	Radio *RadioStamp `json:"radio,omitempty"`
}

// NewUplinkPacket wraps a reading into its wire envelope.
func NewUplinkPacket(id string, r *AggregatedReading) *UplinkPacket {
	p := &UplinkPacket{
		PacketID:   id,
		NodeID:     r.NodeID,
		CreatedAt:  r.CreatedAt,
		Bitmap:     r.Bitmap,
		BitmapTags: r.Bitmap.String(),
		SizeBytes:  r.SizeBytes,
		Frame:      r.Frame,
	}
	if r.Bitmap.Has(Temperature) {
		v := r.Temperature
		p.Temperature = &v
	}
	if r.Bitmap.Has(Gas) {
		v := r.Gas
		p.Gas = &v
	}
	if r.Bitmap.Has(Humidity) {
		v := r.Humidity
		p.Humidity = &v
	}
	if r.Bitmap.Has(Counter) {
		v := r.Counter
		p.Counter = &v
	}
	return p
}
