package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wlamlab/wlam_node/internal/model"
)

// Prom exposes the node's measurement events as Prometheus metrics.
type Prom struct {
	readings    *prometheus.GaugeVec
	counterVal  prometheus.Gauge
	packets     *prometheus.CounterVec
	packetBytes prometheus.Counter
}

// NewProm builds and registers the node metrics on the given registerer.
func NewProm(reg prometheus.Registerer) *Prom {
	readings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wlam_sensor_reading",
		Help: "Last sampled value per sensor kind.",
	}, []string{"kind"})
	counterVal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wlam_counter_value",
		Help: "Current value of the monotonic event counter.",
	})
	packets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wlam_uplink_packets_total",
		Help: "Uplink packets emitted, labelled by presence bitmap.",
	}, []string{"bitmap"})
	packetBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wlam_uplink_bytes_total",
		Help: "Exact accounted bytes of emitted uplink packets.",
	})

	reg.MustRegister(readings, counterVal, packets, packetBytes)

	return &Prom{
		readings:    readings,
		counterVal:  counterVal,
		packets:     packets,
		packetBytes: packetBytes,
	}
}

func (p *Prom) Observe(kind model.SensorKind, value float64) {
	if kind.IsCounter() {
		p.counterVal.Set(value)
		return
	}
	p.readings.WithLabelValues(kind.String()).Set(value)
}

func (p *Prom) PacketSent(bitmap model.Bitmap, sizeBytes int) {
	p.packets.WithLabelValues(bitmap.String()).Inc()
	p.packetBytes.Add(float64(sizeBytes))
}
