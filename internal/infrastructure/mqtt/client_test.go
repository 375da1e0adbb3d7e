package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graymapper-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		LocalPrefix: "te",
	}
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeToken implements pahomqtt.Token with a fixed outcome.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(complete bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

var _ pahomqtt.Message = (*fakeMessage)(nil)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// =============================================================================
// Client Tests (no broker required)
// =============================================================================

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	if c.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "c8y/s/us", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "c8y/s/us", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "c8y/s/us", []byte("501,c8y_Restart"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishMessages_StopsAtFirstFailure(t *testing.T) {
	c := &Client{}
	msgs := []Message{
		NewStringMessage("c8y/s/us", "501,c8y_Restart"),
		NewStringMessage("c8y/s/us", "503,c8y_Restart"),
	}

	err := c.PublishMessages(msgs)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishMessages() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("te/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("te/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("te/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestWrapHandler_DeliversMessage(t *testing.T) {
	c := &Client{}
	var gotTopic, gotPayload string

	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = string(payload)
		return nil
	})
	wrapped(nil, &fakeMessage{topic: "te/device/main///cmd/restart/c8y-mapper-1", payload: []byte(`{"status":"init"}`)})

	if gotTopic != "te/device/main///cmd/restart/c8y-mapper-1" {
		t.Errorf("topic = %q", gotTopic)
	}
	if gotPayload != `{"status":"init"}` {
		t.Errorf("payload = %q", gotPayload)
	}
}

func TestWrapHandler_LogsErrorAndRecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.wrapHandler(func(string, []byte) error {
		return errors.New("boom")
	})(nil, &fakeMessage{topic: "te/x"})

	c.wrapHandler(func(string, []byte) error {
		panic("handler panic")
	})(nil, &fakeMessage{topic: "te/y"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one entry", logger.errors)
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "mapper", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graymapper-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "mapper" {
		t.Errorf("Username = %q", opts.Username)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or wrong minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("te", "c8y"))

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "te/device/main/service/graymapper/status/health" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var payload map[string]any
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != healthDown {
		t.Errorf("will status = %v, want %q", payload["status"], healthDown)
	}
}

// =============================================================================
// Topic and Message Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("te", "c8y")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Command", topics.Command("device/main//", "restart", "c8y-mapper-1"), "te/device/main///cmd/restart/c8y-mapper-1"},
		{"CommandMetadata", topics.CommandMetadata("device/child1//", "config_snapshot"), "te/device/child1///cmd/config_snapshot"},
		{"AllCommands", topics.AllCommands(), "te/+/+/+/+/cmd/+/+"},
		{"AllCommandMetadata", topics.AllCommandMetadata(), "te/+/+/+/+/cmd/+"},
		{"MapperHealth", topics.MapperHealth(), "te/device/main/service/graymapper/status/health"},
		{"CloudSmartREST", topics.CloudSmartREST(), "c8y/s/us"},
		{"CloudSmartRESTChild", topics.CloudSmartRESTChild("test-device:device:child1"), "c8y/s/us/test-device:device:child1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestNewTopics_Defaults(t *testing.T) {
	topics := NewTopics("", "")
	if topics.Local != DefaultLocalPrefix || topics.Cloud != DefaultCloudPrefix {
		t.Errorf("NewTopics defaults = %+v", topics)
	}
	if !topics.IsLocal("te/device/main///cmd/restart") {
		t.Error("IsLocal() = false for local topic")
	}
	if topics.IsLocal("c8y/s/us") {
		t.Error("IsLocal() = true for cloud topic")
	}
}

func TestMessage(t *testing.T) {
	msg := NewStringMessage("c8y/s/us", "501,c8y_Restart")
	if msg.QoS != 1 || msg.Retain {
		t.Errorf("NewStringMessage defaults = qos %d retain %v", msg.QoS, msg.Retain)
	}
	if msg.PayloadString() != "501,c8y_Restart" {
		t.Errorf("PayloadString() = %q", msg.PayloadString())
	}

	clear := NewMessage("te/device/main///cmd/restart/c8y-mapper-1", nil).WithRetain()
	if !clear.IsClear() {
		t.Error("IsClear() = false for empty retained message")
	}
	if msg.IsClear() {
		t.Error("IsClear() = true for regular message")
	}
	if got := msg.WithQoS(2).QoS; got != 2 {
		t.Errorf("WithQoS(2).QoS = %d", got)
	}
}

func TestAwait(t *testing.T) {
	brokerErr := errors.New("not authorized")

	tests := []struct {
		name    string
		token   pahomqtt.Token
		wantErr []error
	}{
		{"acknowledged", newFakeToken(true, nil), nil},
		{"rejected", newFakeToken(true, brokerErr), []error{ErrPublishFailed, brokerErr}},
		{"timed out", newFakeToken(false, nil), []error{ErrPublishFailed, ErrTimeout}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := await(tt.token, 10*time.Millisecond, ErrPublishFailed)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("await() error = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("await() error = %v, want %v in chain", err, want)
				}
			}
		})
	}
}
