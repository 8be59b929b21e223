// Package telemetry publishes status lines and simulation state to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/armsim/pkg/sim"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 30 * time.Second
)

// Config holds the broker connection and topic settings. An empty Broker
// disables telemetry.
type Config struct {
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	TopicPrefix   string        `yaml:"topic_prefix"`
	QoS           byte          `yaml:"qos"`
	StateInterval time.Duration `yaml:"state_interval"`
}

// DefaultConfig returns telemetry settings with the broker unset.
func DefaultConfig() Config {
	return Config{
		ClientID:      "armsim",
		TopicPrefix:   "armsim",
		QoS:           0,
		StateInterval: 100 * time.Millisecond,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Validate checks the topic and QoS settings.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.QoS > 2 {
		return errors.Errorf("invalid mqtt qos %d", c.QoS)
	}
	if c.TopicPrefix == "" || strings.ContainsAny(c.TopicPrefix, "#+") {
		return errors.Errorf("invalid mqtt topic prefix %q", c.TopicPrefix)
	}
	if c.StateInterval < 0 {
		return errors.New("mqtt state interval must not be negative")
	}
	return nil
}

// StatusTopic is where status lines are published.
func (c Config) StatusTopic() string { return c.TopicPrefix + "/status" }

// StateTopic is where retained state snapshots are published.
func (c Config) StateTopic() string { return c.TopicPrefix + "/state" }

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Publisher is a status sink and a simulation observer that forwards to MQTT.
// Publishing never blocks the caller; failures are logged.
type Publisher struct {
	cfg    Config
	client Client
	clock  clock.Clock
	logger *zap.Logger

	mu        sync.Mutex
	lastState time.Time
	closed    bool
	wg        sync.WaitGroup
}

// Connect dials the broker in cfg and returns a publisher on top of it.
func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("connect to %s: timeout after %v", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect to %s", cfg.Broker)
	}
	logger.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("prefix", cfg.TopicPrefix))

	return NewPublisher(cfg, client, clock.New(), logger), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(cfg Config, client Client, clk clock.Clock, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, client: client, clock: clk, logger: logger}
}

// publish is a no-op once Close has started. The closed check and wg.Add
// share mu so Close never waits on a counter that is still growing.
func (p *Publisher) publish(topic string, retained bool, payload []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)
	go func() {
		defer p.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Debug("mqtt publish timeout", zap.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

// Report publishes a status line. It implements status.Sink.
func (p *Publisher) Report(msg string) {
	p.publish(p.cfg.StatusTopic(), false, []byte(msg))
}

// Observe publishes st as retained JSON, at most once per state interval.
// It implements sim.Observer.
func (p *Publisher) Observe(st sim.State) {
	now := p.clock.Now()
	p.mu.Lock()
	if p.closed || !p.lastState.IsZero() && now.Sub(p.lastState) < p.cfg.StateInterval {
		p.mu.Unlock()
		return
	}
	p.lastState = now
	p.mu.Unlock()

	payload, err := json.Marshal(st)
	if err != nil {
		p.logger.Warn("marshal state", zap.Error(err))
		return
	}
	p.publish(p.cfg.StateTopic(), true, payload)
}

// Close stops further publishing, waits for pending publishes and
// disconnects. Calling it again is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
