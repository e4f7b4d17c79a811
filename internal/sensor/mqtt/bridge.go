// Package mqtt bridges a remote device publishing readings over MQTT into the
// sensor collaborator interfaces.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/sensor"
)

const (
	qos              = 1
	subscribeTimeout = 10 * time.Second
)

// Config holds broker and topic settings.
type Config struct {
	Broker           string
	ClientID         string
	Username         string
	Password         string
	TopicPrefix      string // topics are <prefix>/<device>/location and /acceleration
	DeviceID         string
	HasAccelerometer bool
}

// client is the part of paho.Client the bridge uses.
type client interface {
	IsConnected() bool
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

type locationSub struct {
	interval  time.Duration
	delivered time.Time
}

// Bridge implements sensor.LocationProvider and sensor.MotionSensorSource.
type Bridge struct {
	client            client
	disconnect        func()
	locationTopic     string
	accelerationTopic string
	hasAccelerometer  bool
	logger            *logger.Logger
	now               func() time.Time

	// regMu serializes subscribe/unsubscribe round trips. mu guards the
	// listener maps and is the only lock message callbacks take.
	regMu sync.Mutex

	mu           sync.Mutex
	locListeners map[sensor.LocationListener]*locationSub
	accListeners map[sensor.AccelerationListener]sensor.SamplingRate
	lastFix      *model.Location
}

// NewBridge connects to the broker. Topics are subscribed lazily.
func NewBridge(cfg Config, logger *logger.Logger) (*Bridge, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("MQTT client connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warning("MQTT connection lost: %v", err)
	})

	c := paho.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	b := newBridge(c, cfg, logger)
	b.disconnect = func() { c.Disconnect(250) }
	return b, nil
}

func newBridge(c client, cfg Config, logger *logger.Logger) *Bridge {
	base := cfg.TopicPrefix + "/" + cfg.DeviceID
	return &Bridge{
		client:            c,
		locationTopic:     base + "/location",
		accelerationTopic: base + "/acceleration",
		hasAccelerometer:  cfg.HasAccelerometer,
		logger:            logger,
		now:               time.Now,
		locListeners:      make(map[sensor.LocationListener]*locationSub),
		accListeners:      make(map[sensor.AccelerationListener]sensor.SamplingRate),
	}
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.disconnect != nil {
		b.disconnect()
		b.logger.Info("MQTT client disconnected")
	}
}

// RequestLocationUpdates adds listener, subscribing to the location topic
// when it is the first one.
func (b *Bridge) RequestLocationUpdates(req sensor.LocationRequest, listener sensor.LocationListener) error {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	if !b.client.IsConnected() {
		return sensor.ErrProviderUnavailable
	}

	b.mu.Lock()
	first := len(b.locListeners) == 0
	b.locListeners[listener] = &locationSub{interval: req.Interval}
	b.mu.Unlock()

	if !first {
		return nil
	}
	if err := b.subscribe(b.locationTopic, b.handleLocation); err != nil {
		b.mu.Lock()
		delete(b.locListeners, listener)
		b.mu.Unlock()
		return err
	}
	return nil
}

// RemoveLocationUpdates drops listener, unsubscribing after the last one.
func (b *Bridge) RemoveLocationUpdates(listener sensor.LocationListener) error {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.mu.Lock()
	_, ok := b.locListeners[listener]
	delete(b.locListeners, listener)
	last := ok && len(b.locListeners) == 0
	b.mu.Unlock()

	if !last {
		return nil
	}
	return b.unsubscribe(b.locationTopic)
}

// LastLocation returns the most recent fix received on the location topic.
func (b *Bridge) LastLocation(ctx context.Context) (*model.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastFix == nil {
		return nil, sensor.ErrNoFix
	}
	fix := *b.lastFix
	return &fix, nil
}

// HasAccelerometer reports the configured hardware flag of the device.
func (b *Bridge) HasAccelerometer() bool {
	return b.hasAccelerometer
}

// RegisterListener adds an acceleration listener. The device controls its own
// publish rate, so rate is recorded but not enforced.
func (b *Bridge) RegisterListener(listener sensor.AccelerationListener, rate sensor.SamplingRate) error {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	if !b.client.IsConnected() {
		return sensor.ErrProviderUnavailable
	}

	b.mu.Lock()
	first := len(b.accListeners) == 0
	b.accListeners[listener] = rate
	b.mu.Unlock()

	if !first {
		return nil
	}
	if err := b.subscribe(b.accelerationTopic, b.handleAcceleration); err != nil {
		b.mu.Lock()
		delete(b.accListeners, listener)
		b.mu.Unlock()
		return err
	}
	return nil
}

// UnregisterListener drops an acceleration listener.
func (b *Bridge) UnregisterListener(listener sensor.AccelerationListener) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.mu.Lock()
	_, ok := b.accListeners[listener]
	delete(b.accListeners, listener)
	last := ok && len(b.accListeners) == 0
	b.mu.Unlock()

	if last {
		if err := b.unsubscribe(b.accelerationTopic); err != nil {
			b.logger.Warning("Failed to unsubscribe from %s: %v", b.accelerationTopic, err)
		}
	}
}

func (b *Bridge) subscribe(topic string, handler func([]byte)) error {
	token := b.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("%w: subscribe to %s timed out", sensor.ErrProviderUnavailable, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sensor.ErrProviderUnavailable, err)
	}
	b.logger.Info("Subscribed to topic: %s", topic)
	return nil
}

func (b *Bridge) unsubscribe(topic string) error {
	token := b.client.Unsubscribe(topic)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("unsubscribe from %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", topic, err)
	}
	b.logger.Info("Unsubscribed from topic: %s", topic)
	return nil
}

type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Time      int64    `json:"time"` // ms since epoch, 0 means "now"
}

type accelerationPayload struct {
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Z    *float64 `json:"z"`
	Time int64    `json:"time"`
}

func parseLocation(payload []byte, now time.Time) (model.Location, error) {
	var p locationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Location{}, fmt.Errorf("failed to decode location: %w", err)
	}
	if p.Latitude == nil || p.Longitude == nil {
		return model.Location{}, fmt.Errorf("location payload missing coordinates")
	}
	if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
		return model.Location{}, fmt.Errorf("location out of range: %f,%f", *p.Latitude, *p.Longitude)
	}
	at := now
	if p.Time > 0 {
		at = time.UnixMilli(p.Time)
	}
	return model.Location{Latitude: *p.Latitude, Longitude: *p.Longitude, Time: at}, nil
}

func parseAcceleration(payload []byte, now time.Time) (model.Acceleration, error) {
	var p accelerationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Acceleration{}, fmt.Errorf("failed to decode acceleration: %w", err)
	}
	if p.X == nil || p.Y == nil || p.Z == nil {
		return model.Acceleration{}, fmt.Errorf("acceleration payload missing an axis")
	}
	at := now
	if p.Time > 0 {
		at = time.UnixMilli(p.Time)
	}
	return model.Acceleration{X: *p.X, Y: *p.Y, Z: *p.Z, Time: at}, nil
}

// handleLocation records the fix and delivers it to every listener whose
// interval has elapsed.
func (b *Bridge) handleLocation(payload []byte) {
	now := b.now()
	fix, err := parseLocation(payload, now)
	if err != nil {
		b.logger.Warning("Dropping location message: %v", err)
		return
	}

	b.mu.Lock()
	b.lastFix = &fix
	due := make([]sensor.LocationListener, 0, len(b.locListeners))
	for l, sub := range b.locListeners {
		if sub.delivered.IsZero() || now.Sub(sub.delivered) >= sub.interval {
			sub.delivered = now
			due = append(due, l)
		}
	}
	b.mu.Unlock()

	for _, l := range due {
		l.OnLocation(fix)
	}
}

func (b *Bridge) handleAcceleration(payload []byte) {
	sample, err := parseAcceleration(payload, b.now())
	if err != nil {
		b.logger.Warning("Dropping acceleration message: %v", err)
		return
	}

	b.mu.Lock()
	listeners := make([]sensor.AccelerationListener, 0, len(b.accListeners))
	for l := range b.accListeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l.OnAcceleration(sample.X, sample.Y, sample.Z, sample.Time)
	}
}
