package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultBufferSize is how many messages are held while the broker is unreachable.
const DefaultBufferSize = 256

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configure a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int

	// OnActivity receives the payload of every message on the activity topic.
	OnActivity func(payload string)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    *zap.SugaredLogger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the broker in opts. If the broker
// does not answer within the connect timeout the publisher is still returned
// and keeps retrying.
func NewRealPublisher(opts Options, log *zap.SugaredLogger) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "topre-kscan"
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := newPublisher(nil, NewTopics(opts.TopicPrefix), opts.BufferSize, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnw("connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			p.log.Infow("connected", "broker", opts.Broker)
			p.onConnect(c, opts.OnActivity)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// The client keeps retrying in the background; publishes are buffered.
		p.log.Warnw("broker not reachable yet, buffering", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(client paho.Client, topics Topics, bufferSize int, log *zap.SugaredLogger) *RealPublisher {
	log = log.Named("mqtt")
	return &RealPublisher{
		client: client,
		topics: topics,
		log:    log,
		buf:    newRingBuffer(bufferSize, log),
	}
}

// onConnect subscribes to the activity topic and flushes buffered messages.
func (p *RealPublisher) onConnect(c paho.Client, onActivity func(string)) {
	if onActivity != nil {
		c.Subscribe(p.topics.Activity, 1, func(_ paho.Client, m paho.Message) {
			onActivity(string(m.Payload()))
		})
	}

	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Publish sends a key change event. QoS 0, not retained.
func (p *RealPublisher) Publish(event KeyEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event. QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes m, or buffers it while the connection is down. The
// connection check and the push share mu with the drain in onConnect, so a
// message is either published or replayed on the next connect.
func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
