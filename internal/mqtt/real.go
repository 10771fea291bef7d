package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// bufferCapacity is the number of messages kept while the broker is unreachable.
const bufferCapacity = 256

// ackTimeout bounds how long a publish waits for the broker to acknowledge.
const ackTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    zerolog.Logger

	// mu covers the connected check together with buf, so a message is
	// either sent or buffered before the next onConnect drains.
	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. The connection is
// established in the background; the controller does not wait for it.
func NewRealPublisher(broker, clientID string, log zerolog.Logger) *RealPublisher {
	p := newPublisher(log)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(log zerolog.Logger) *RealPublisher {
	return &RealPublisher{
		log: log,
		buf: newRingBuffer(bufferCapacity, log),
	}
}

// Publish sends an event transition to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker, giving in-flight publishes a second.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// send never waits for the broker: it runs on the control loop, where a
// stalled acknowledgement would hold up blink timing. Delivery failures are
// logged by awaitAck.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go p.awaitAck(msg.topic, token)
	return nil
}

func (p *RealPublisher) awaitAck(topic string, token paho.Token) {
	if !token.WaitTimeout(ackTimeout) {
		p.log.Warn().Str("topic", topic).Msg("publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

// onConnect runs on paho's goroutine after every (re)connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info().Int("buffered", len(pending)).Msg("mqtt connected")

	reconnected, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
	c.Publish(TopicSystem, 1, false, reconnected)

	for _, msg := range pending {
		p.awaitAck(msg.topic, c.Publish(msg.topic, msg.qos, msg.retained, msg.payload))
	}
}
