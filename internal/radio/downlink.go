package radio

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/pkg/broker"
)

// Downlink accepts inbound messages from the radio side and discards them.
// No downlink protocol is defined for this node; the subscription exists so
// the broker session matches what a real device would hold open.
type Downlink struct {
	consumer broker.IConsumer
	log      *zap.Logger
}

func NewDownlink(consumer broker.IConsumer, log *zap.Logger) *Downlink {
	d := &Downlink{consumer: consumer, log: log}
	consumer.SetHandler(d.handle)
	return d
}

// Run blocks consuming downlink messages until the context is cancelled.
func (d *Downlink) Run(ctx context.Context) {
	d.consumer.ConsumeMessage(ctx)
}

func (d *Downlink) handle(topic string, msg mqtt.Message) error {
	d.log.Debug("downlink message discarded",
		zap.String("topic", topic),
		zap.Int("bytes", len(msg.Payload())))
	return nil
}
