package stats

import (
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/wlamlab/wlam_node/internal/model"
)

// Influx writes measurement events as time-series points through the
// non-blocking WriteAPI. Write errors arrive on an async channel and are
// only logged; a broken stats sink must not affect the firing path.
type Influx struct {
	api    api.WriteAPI
	nodeID string
}

func NewInflux(w api.WriteAPI, nodeID string) *Influx {
	i := &Influx{api: w, nodeID: nodeID}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				log.Printf("influx write error: %v", err)
			}
		}
	}()
	return i
}

func (i *Influx) Observe(kind model.SensorKind, value float64) {
	p := influxdb2.NewPoint("sensor_reading",
		map[string]string{
			"node_id": i.nodeID,
			"kind":    kind.String(),
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now())
	i.api.WritePoint(p)
}

func (i *Influx) PacketSent(bitmap model.Bitmap, sizeBytes int) {
	p := influxdb2.NewPoint("uplink_packet",
		map[string]string{
			"node_id": i.nodeID,
			"bitmap":  bitmap.String(),
		},
		map[string]interface{}{
			"size_bytes": int64(sizeBytes),
			"count":      int64(1),
		},
		time.Now())
	i.api.WritePoint(p)
}
