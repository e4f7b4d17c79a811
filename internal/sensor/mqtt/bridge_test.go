package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/sensor"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	subscribeErr error
	subscribed   map[string]paho.MessageHandler
	unsubscribed []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, subscribed: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return doneToken{err: c.subscribeErr}
	}
	c.subscribed[topic] = callback
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscribed, t)
		c.unsubscribed = append(c.unsubscribed, t)
	}
	return doneToken{}
}

func (c *fakeClient) isSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscribed[topic]
	return ok
}

type recordingListener struct {
	mu    sync.Mutex
	fixes []model.Location
}

func (l *recordingListener) OnLocation(loc model.Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fixes = append(l.fixes, loc)
}

type recordingAccListener struct {
	samples [][3]float64
}

func (l *recordingAccListener) OnAcceleration(x, y, z float64, _ time.Time) {
	l.samples = append(l.samples, [3]float64{x, y, z})
}

func testBridge(c *fakeClient) *Bridge {
	return newBridge(c, Config{TopicPrefix: "sensorlog", DeviceID: "pixel", HasAccelerometer: true}, logger.Discard())
}

func TestParseLocation(t *testing.T) {
	now := time.UnixMilli(5000)

	tests := []struct {
		name    string
		payload string
		want    model.Location
		wantErr bool
	}{
		{"with time", `{"latitude":52.1,"longitude":21.2,"time":1000}`, model.Location{Latitude: 52.1, Longitude: 21.2, Time: time.UnixMilli(1000)}, false},
		{"without time", `{"latitude":1,"longitude":2}`, model.Location{Latitude: 1, Longitude: 2, Time: now}, false},
		{"missing longitude", `{"latitude":1}`, model.Location{}, true},
		{"out of range", `{"latitude":91,"longitude":0}`, model.Location{}, true},
		{"garbage", `not json`, model.Location{}, true},
	}

	for _, tt := range tests {
		got, err := parseLocation([]byte(tt.payload), now)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (got.Latitude != tt.want.Latitude || got.Longitude != tt.want.Longitude || !got.Time.Equal(tt.want.Time)) {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.want, got)
		}
	}
}

func TestParseAcceleration(t *testing.T) {
	got, err := parseAcceleration([]byte(`{"x":0.1,"y":0.2,"z":9.8}`), time.UnixMilli(7))
	if err != nil {
		t.Fatalf("parseAcceleration failed: %v", err)
	}
	if got.X != 0.1 || got.Y != 0.2 || got.Z != 9.8 || got.Time.UnixMilli() != 7 {
		t.Errorf("Unexpected sample %+v", got)
	}

	if _, err := parseAcceleration([]byte(`{"x":0.1,"y":0.2}`), time.Now()); err == nil {
		t.Error("Expected error for missing axis")
	}
}

func TestBridge_SubscribesOnFirstAndUnsubscribesOnLast(t *testing.T) {
	c := newFakeClient()
	b := testBridge(c)
	topic := "sensorlog/pixel/location"

	first, second := &recordingListener{}, &recordingListener{}
	if err := b.RequestLocationUpdates(sensor.LocationRequest{Interval: time.Second}, first); err != nil {
		t.Fatalf("RequestLocationUpdates failed: %v", err)
	}
	if err := b.RequestLocationUpdates(sensor.LocationRequest{Interval: time.Second}, second); err != nil {
		t.Fatalf("RequestLocationUpdates failed: %v", err)
	}
	if !c.isSubscribed(topic) {
		t.Fatalf("Expected subscription to %s", topic)
	}

	if err := b.RemoveLocationUpdates(first); err != nil {
		t.Fatalf("RemoveLocationUpdates failed: %v", err)
	}
	if !c.isSubscribed(topic) {
		t.Error("Topic should stay subscribed while a listener remains")
	}

	if err := b.RemoveLocationUpdates(second); err != nil {
		t.Fatalf("RemoveLocationUpdates failed: %v", err)
	}
	if c.isSubscribed(topic) {
		t.Error("Topic should be unsubscribed after the last listener")
	}

	// Removing an unknown listener is harmless.
	if err := b.RemoveLocationUpdates(first); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(c.unsubscribed) != 1 {
		t.Errorf("Expected one unsubscribe, got %v", c.unsubscribed)
	}
}

func TestBridge_ThrottlesLocationToInterval(t *testing.T) {
	c := newFakeClient()
	b := testBridge(c)
	clock := time.UnixMilli(0)
	b.now = func() time.Time { return clock }

	l := &recordingListener{}
	if err := b.RequestLocationUpdates(sensor.LocationRequest{Interval: 5 * time.Second}, l); err != nil {
		t.Fatalf("RequestLocationUpdates failed: %v", err)
	}

	b.handleLocation([]byte(`{"latitude":1,"longitude":1}`))
	clock = clock.Add(2 * time.Second)
	b.handleLocation([]byte(`{"latitude":2,"longitude":2}`))
	clock = clock.Add(3 * time.Second)
	b.handleLocation([]byte(`{"latitude":3,"longitude":3}`))

	if len(l.fixes) != 2 {
		t.Fatalf("Expected 2 delivered fixes, got %d", len(l.fixes))
	}
	if l.fixes[0].Latitude != 1 || l.fixes[1].Latitude != 3 {
		t.Errorf("Unexpected fixes %+v", l.fixes)
	}

	last, err := b.LastLocation(context.Background())
	if err != nil {
		t.Fatalf("LastLocation failed: %v", err)
	}
	if last.Latitude != 3 {
		t.Errorf("LastLocation should track every message, got %+v", last)
	}
}

func TestBridge_LastLocationWithoutFix(t *testing.T) {
	b := testBridge(newFakeClient())
	if _, err := b.LastLocation(context.Background()); !errors.Is(err, sensor.ErrNoFix) {
		t.Errorf("Expected ErrNoFix, got %v", err)
	}
}

func TestBridge_DisconnectedOrFailedSubscribe(t *testing.T) {
	c := newFakeClient()
	c.connected = false
	b := testBridge(c)

	if err := b.RequestLocationUpdates(sensor.LocationRequest{}, &recordingListener{}); !errors.Is(err, sensor.ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}

	c.connected = true
	c.subscribeErr = errors.New("not authorized")
	if err := b.RegisterListener(&recordingAccListener{}, sensor.SamplingNormal); !errors.Is(err, sensor.ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
	if len(b.accListeners) != 0 {
		t.Error("Failed registration must not keep the listener")
	}
}

func TestBridge_AccelerationDelivery(t *testing.T) {
	c := newFakeClient()
	b := testBridge(c)

	l := &recordingAccListener{}
	if err := b.RegisterListener(l, sensor.SamplingNormal); err != nil {
		t.Fatalf("RegisterListener failed: %v", err)
	}

	b.handleAcceleration([]byte(`{"x":1,"y":2,"z":3}`))
	b.handleAcceleration([]byte(`{"x":1}`))

	if len(l.samples) != 1 || l.samples[0] != [3]float64{1, 2, 3} {
		t.Errorf("Unexpected samples %v", l.samples)
	}

	b.UnregisterListener(l)
	if c.isSubscribed("sensorlog/pixel/acceleration") {
		t.Error("Acceleration topic should be unsubscribed")
	}
}
