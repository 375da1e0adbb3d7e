package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/cloudhttp"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
)

// timeline records side effects across mocks in the order they happened.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(event string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, event)
}

func (tl *timeline) snapshot() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.events...)
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []mqtt.Message
	tl       *timeline
	err      error
}

func (m *mockPublisher) PublishMessage(msg mqtt.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	if m.tl != nil {
		m.tl.add("publish " + msg.Topic)
	}
	return nil
}

func (m *mockPublisher) published() []mqtt.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mqtt.Message(nil), m.messages...)
}

// onTopic returns the payloads published on topic in order.
func (m *mockPublisher) onTopic(topic string) []string {
	var out []string
	for _, msg := range m.published() {
		if msg.Topic == topic {
			out = append(out, msg.PayloadString())
		}
	}
	return out
}

type mockUploader struct {
	mu       sync.Mutex
	requests []transfer.UploadRequest
	bodies   []string
	tl       *timeline
	err      error
	delay    time.Duration
}

func (m *mockUploader) Upload(ctx context.Context, _ string, req transfer.UploadRequest) (transfer.Response, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return transfer.Response{}, ctx.Err()
		}
	}

	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)
	if m.tl != nil {
		m.tl.add("upload " + req.URL)
	}
	if m.err != nil {
		return transfer.Response{}, m.err
	}
	return transfer.Response{Location: req.URL}, nil
}

type mockDownloader struct {
	mu       sync.Mutex
	requests []transfer.DownloadRequest
	err      error
}

func (m *mockDownloader) Download(_ context.Context, _ string, req transfer.DownloadRequest) (transfer.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return transfer.Response{}, m.err
	}
	return transfer.Response{Location: req.Path}, nil
}

type mockCloud struct {
	mu           sync.Mutex
	events       []cloudhttp.Event
	softwareList []smartrest.SoftwareModule
	tl           *timeline
	eventErr     error
	softwareErr  error
	block        bool
	hold         chan struct{}
	panicOnEvent bool
	nextID       int
}

func (m *mockCloud) CreateEvent(ctx context.Context, ev cloudhttp.Event) (string, error) {
	if m.panicOnEvent {
		panic("cloud exploded")
	}
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.hold != nil {
		<-m.hold
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventErr != nil {
		return "", m.eventErr
	}
	m.nextID++
	m.events = append(m.events, ev)
	if m.tl != nil {
		m.tl.add("event " + ev.Type)
	}
	return fmt.Sprintf("%d", m.nextID), nil
}

func (m *mockCloud) EventBinaryURL(eventID string) string {
	return "http://cloud/event/events/" + eventID + "/binaries"
}

func (m *mockCloud) UpdateSoftwareList(_ context.Context, _ string, modules []smartrest.SoftwareModule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.softwareErr != nil {
		return m.softwareErr
	}
	m.softwareList = modules
	return nil
}

type mockLogStore struct {
	content map[string]string
}

func (m *mockLogStore) Read(path string) ([]byte, error) {
	if c, ok := m.content[path]; ok {
		return []byte(c), nil
	}
	return nil, errors.New("no such log")
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) ObserveOperation(kind, _ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, kind+":"+outcome)
}

func (m *mockRecorder) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// testEnv bundles a handler with its mocks.
type testEnv struct {
	handler    *Handler
	publisher  *mockPublisher
	uploader   *mockUploader
	downloader *mockDownloader
	cloud      *mockCloud
	logs       *mockLogStore
	recorder   *mockRecorder
	tl         *timeline
}

func newTestEnv(mutate func(*Options)) *testEnv {
	tl := &timeline{}
	env := &testEnv{
		publisher:  &mockPublisher{tl: tl},
		uploader:   &mockUploader{tl: tl},
		downloader: &mockDownloader{},
		cloud:      &mockCloud{tl: tl},
		logs:       &mockLogStore{content: map[string]string{}},
		recorder:   &mockRecorder{},
		tl:         tl,
	}
	opts := Options{
		Publisher:       env.publisher,
		Uploader:        env.uploader,
		Downloader:      env.downloader,
		Cloud:           env.cloud,
		Logs:            env.logs,
		Recorder:        env.recorder,
		Topics:          mqtt.NewTopics("te", "c8y"),
		AutoLogUpload:   config.AutoLogUploadOnFailure,
		SoftwareAPI:     config.SoftwareAPIAdvanced,
		FileTransferDir: "/var/graymapper/file-transfer",
		FileTransferURL: "http://127.0.0.1:8000/te/v1/files",
		Timeout:         5 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	env.handler = NewHandler(opts)
	return env
}

var (
	mainSnap = entity.Snapshot{
		TopicID:      entity.MainDevice,
		ExternalID:   "gw",
		PublishTopic: "c8y/s/us",
	}
	childSnap = entity.Snapshot{
		TopicID:      "device/child1//",
		ExternalID:   "gw:device:child1",
		PublishTopic: "c8y/s/us/gw:device:child1",
	}
)

// command builds the triggering message of an operation state.
func command(snap entity.Snapshot, kind Kind, cmdID, payload string) mqtt.Message {
	topic := mqtt.NewTopics("te", "c8y").Command(snap.TopicID.String(), kind.String(), cmdID)
	return mqtt.NewStringMessage(topic, payload).WithRetain()
}

// run dispatches one operation state and waits for it to finish.
func (env *testEnv) run(kind Kind, snap entity.Snapshot, cmdID, payload string) mqtt.Message {
	msg := command(snap, kind, cmdID, payload)
	env.handler.HandleOperation(kind, snap, cmdID, msg)
	env.handler.Wait()
	return msg
}
