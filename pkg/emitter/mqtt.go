// Package emitter publishes frame reports and alerts to an MQTT broker so
// caregivers or other services can follow a session remotely.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-wayfinder/pkg/session"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Topic suffixes under <prefix>/<session_id>/.
const (
	TopicFrames = "frames"
	TopicAlerts = "alerts"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 64
)

// Publisher is the part of mqtt.Client the emitter uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Config configures the emitter.
type Config struct {
	Broker    string // host:port
	Prefix    string
	SessionID string
	QoS       byte

	ConnectTimeout time.Duration // default 5s
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
	Dropped   uint64            `json:"dropped"`
}

type outbound struct {
	topic   string
	payload []byte
}

// Emitter publishes asynchronously from a queue so observing a frame
// never waits on the network.
type Emitter struct {
	cfg    Config
	client Publisher
	logger *slog.Logger
	queue  chan outbound

	connected atomic.Bool
	errs      atomic.Uint64
	dropped   atomic.Uint64

	mu        sync.Mutex
	published map[string]uint64
	closeFn   func()
}

// New creates an emitter around an existing publisher (tests, shared clients).
func New(cfg Config, client Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		cfg:       cfg,
		client:    client,
		logger:    logger.With("component", "emitter", "broker", cfg.Broker),
		queue:     make(chan outbound, queueSize),
		published: make(map[string]uint64),
	}
	e.connected.Store(client != nil)
	return e
}

// Connect dials the broker with auto-reconnect and returns a ready emitter.
func Connect(cfg Config, logger *slog.Logger) (*Emitter, error) {
	e := New(cfg, nil, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("wayfinder-" + cfg.SessionID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.connected.Store(true)
		e.logger.Info("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.connected.Store(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	// with connect retry enabled an unfinished token keeps retrying in the
	// background until disconnected
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.client = client
	e.connected.Store(true)
	e.closeFn = func() { client.Disconnect(250) }
	return e, nil
}

// Topic returns the full topic for a suffix.
func (e *Emitter) Topic(suffix string) string {
	return fmt.Sprintf("%s/%s/%s", e.cfg.Prefix, e.cfg.SessionID, suffix)
}

// Observe implements session.Observer. Only processed frames are published.
func (e *Emitter) Observe(v session.View) {
	if !v.Processed {
		return
	}
	e.enqueue(TopicFrames, v.Result.Report())
	for _, a := range v.Result.Alerts {
		e.enqueue(TopicAlerts, a)
	}
}

func (e *Emitter) enqueue(suffix string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.errs.Add(1)
		return
	}
	select {
	case e.queue <- outbound{topic: e.Topic(suffix), payload: payload}:
	default:
		e.dropped.Add(1)
	}
}

// Run drains the queue until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.queue:
			if err := e.publish(msg.topic, msg.payload); err != nil {
				e.logger.Debug("publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (e *Emitter) publish(topic string, payload []byte) error {
	if !e.connected.Load() || e.client == nil {
		e.errs.Add(1)
		return ErrNotConnected
	}

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.errs.Add(1)
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.errs.Add(1)
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
	return nil
}

// Stats returns emitter statistics.
func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	e.mu.Unlock()

	return Stats{
		Connected: e.connected.Load(),
		Published: published,
		Errors:    e.errs.Load(),
		Dropped:   e.dropped.Load(),
	}
}

// Close disconnects from the broker.
func (e *Emitter) Close() error {
	if e.closeFn != nil {
		e.closeFn()
		e.logger.Info("mqtt disconnected")
	}
	e.connected.Store(false)
	return nil
}

var _ session.Observer = (*Emitter)(nil)
