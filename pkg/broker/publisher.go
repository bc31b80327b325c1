package broker

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the outgoing half of the broker session.
type IPublisher interface {
	PublishMessage(message string) error
	Close()
}

// Publisher publishes messages on a fixed topic with a fixed QoS.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// PublishMessage publishes one message and waits for the token.
func (p *Publisher) PublishMessage(message string) error {
	token := p.client.Publish(p.topic, p.qos, false, message)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	return nil
}

// Close gracefully closes the MQTT connection for the publisher.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("MQTT client disconnected")
	}
}
