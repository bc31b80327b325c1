package radio

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/internal/model"
	"github.com/wlamlab/wlam_node/pkg/broker"
)

// UplinkSink delivers stamped packets to the radio side over MQTT. Publishes
// run through a circuit breaker so a flapping broker sheds load instead of
// stalling every firing cycle behind publish timeouts.
type UplinkSink struct {
	pub broker.IPublisher
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
}

func NewUplinkSink(pub broker.IPublisher, log *zap.Logger) *UplinkSink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "uplink",
		Interval: 60 * time.Second,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &UplinkSink{pub: pub, cb: cb, log: log}
}

// Publish serializes the packet and hands it to the broker.
func (u *UplinkSink) Publish(pkt *model.UplinkPacket) error {
	payload, err := json.Marshal(pkt)
	if err != nil {
		return fmt.Errorf("uplink: marshal packet %s: %w", pkt.PacketID, err)
	}
	_, err = u.cb.Execute(func() (any, error) {
		return nil, u.pub.PublishMessage(string(payload))
	})
	if err != nil {
		return fmt.Errorf("uplink: publish packet %s: %w", pkt.PacketID, err)
	}
	u.log.Debug("uplink packet published",
		zap.String("packet_id", pkt.PacketID),
		zap.String("bitmap", pkt.BitmapTags),
		zap.Int("size_bytes", pkt.SizeBytes))
	return nil
}

// Close releases the underlying publisher.
func (u *UplinkSink) Close() {
	u.pub.Close()
}
