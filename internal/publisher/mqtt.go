package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"printer_monitor/internal/config"
	"printer_monitor/internal/logger"
	"printer_monitor/internal/models"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout  = 10 * time.Second
	mqttPublishTimeout  = 2 * time.Second
	mqttCommandTimeout  = 5 * time.Second
	mqttDisconnectQuiet = 250 // milliseconds
	mqttKeepAlive       = 60 * time.Second
	mqttQueueSize       = 256
	maxQoS              = 2
)

var (
	ErrMQTTNotConnected   = errors.New("mqtt: client not connected")
	ErrMQTTConnect        = errors.New("mqtt: connection failed")
	ErrMQTTPublish        = errors.New("mqtt: publish failed")
	ErrMQTTSubscribe      = errors.New("mqtt: subscribe failed")
	ErrInvalidCommandBody = errors.New("mqtt: invalid command payload")
)

// CommandHandler executes commands received from the broker.
type CommandHandler interface {
	SetSwitch(ctx context.Context, deviceID string, on bool) error
	Reset(ctx context.Context, deviceID string) error
}

// mqttClient is the subset of pahomqtt.Client used here.
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher mirrors state events to retained topics and accepts
// switch/reset commands.
// Events are queued and sent in order by a single worker goroutine.
// A full queue drops the event.
type MQTTPublisher struct {
	client mqttClient
	topics Topics
	qos    byte
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
	queue  chan mqttMessage
	done   chan struct{}
}

type mqttMessage struct {
	topic   string
	payload []byte
}

// DialMQTT connects to the configured broker with auto-reconnect enabled.
func DialMQTT(cfg config.MQTTConfig) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetWill(strings.TrimSuffix(cfg.TopicPrefix, "/")+"/status", "offline", 1, true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}
	return client, nil
}

func NewMQTTPublisher(client mqttClient, prefix string, qos int, log *logger.Logger) *MQTTPublisher {
	if qos < 0 || qos > maxQoS {
		qos = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &MQTTPublisher{
		client: client,
		topics: Topics{Prefix: prefix},
		qos:    byte(qos),
		log:    log.Named("mqtt"),
		queue:  make(chan mqttMessage, mqttQueueSize),
		done:   make(chan struct{}),
	}
	go p.worker()
	return p
}

// Publish queues ev as a retained message and returns without waiting for
// the broker. Failures are logged.
func (p *MQTTPublisher) Publish(ev models.StateEvent) {
	payload, err := eventPayload(ev)
	if err != nil {
		p.log.Warnw("mqtt_encode_failed", "event", ev.Type, "device_id", ev.DeviceID, "error", err)
		return
	}
	msg := mqttMessage{topic: p.topics.Event(ev), payload: payload}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.log.Warnw("mqtt_queue_full", "topic", msg.topic)
	}
}

func (p *MQTTPublisher) worker() {
	defer close(p.done)
	for msg := range p.queue {
		if err := p.publish(msg.topic, msg.payload); err != nil {
			p.log.Debugw("mqtt_publish_failed", "topic", msg.topic, "error", err)
		}
	}
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return ErrMQTTNotConnected
	}
	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrMQTTPublish, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTPublish, err)
	}
	return nil
}

// SubscribeCommands routes <prefix>/<id>/switch/set and <prefix>/<id>/reset
// messages to h.
func (p *MQTTPublisher) SubscribeCommands(h CommandHandler) error {
	if !p.client.IsConnected() {
		return ErrMQTTNotConnected
	}
	for _, topic := range []string{p.topics.SwitchSet(), p.topics.Reset()} {
		token := p.client.Subscribe(topic, p.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			p.handleCommand(h, msg.Topic(), msg.Payload())
		})
		if !token.WaitTimeout(mqttConnectTimeout) {
			return fmt.Errorf("%w: %s: timeout", ErrMQTTSubscribe, topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMQTTSubscribe, topic, err)
		}
	}
	return nil
}

func (p *MQTTPublisher) handleCommand(h CommandHandler, topic string, payload []byte) {
	deviceID, command, ok := p.topics.ParseCommand(topic)
	if !ok {
		p.log.Debugw("mqtt_unknown_topic", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mqttCommandTimeout)
	defer cancel()

	var err error
	switch command {
	case commandSwitchSet:
		var on bool
		on, err = parseSwitchPayload(payload)
		if err == nil {
			err = h.SetSwitch(ctx, deviceID, on)
		}
	case commandReset:
		err = h.Reset(ctx, deviceID)
	}
	if err != nil {
		p.log.Warnw("mqtt_command_failed", "device_id", deviceID, "command", command, "error", err)
	}
}

// Close disconnects from the broker.
// Close sends the queued events, then disconnects. It is safe to call twice.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.client.Disconnect(mqttDisconnectQuiet)
}

func parseSwitchPayload(b []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidCommandBody, b)
}

// eventPayload renders the retained body for an event. Removal events clear
// the retained message with an empty body.
func eventPayload(ev models.StateEvent) ([]byte, error) {
	switch ev.Type {
	case models.EventReachable, models.EventActive, models.EventControlAck:
		if ev.Value == nil {
			return nil, fmt.Errorf("event %s without value", ev.Type)
		}
		return []byte(strconv.FormatBool(*ev.Value)), nil
	case models.EventConsumable:
		return json.Marshal(struct {
			Name  string `json:"name"`
			Level int    `json:"level"`
		}{ev.Name, ev.Level})
	case models.EventDeviceAdded:
		return json.Marshal(struct {
			Name string `json:"name"`
		}{ev.DeviceName})
	case models.EventConsumableRemoved, models.EventDeviceRemoved:
		return []byte{}, nil
	case models.EventActivationCount:
		return []byte(strconv.Itoa(ev.Count)), nil
	default:
		return []byte(strconv.FormatInt(ev.Seconds, 10)), nil
	}
}
