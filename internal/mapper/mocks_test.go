package mapper

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/operations"
)

// mockBus records subscriptions and published messages.
type mockBus struct {
	mu            sync.Mutex
	subscriptions map[string]mqtt.MessageHandler
	messages      []mqtt.Message
	subscribeErr  error
	publishErr    error

	// delays holds a per-topic publish latency, set before use.
	delays map[string]time.Duration
}

func newMockBus() *mockBus {
	return &mockBus{subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (m *mockBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockBus) PublishMessage(msg mqtt.Message) error {
	if d := m.delays[msg.Topic]; d > 0 {
		time.Sleep(d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockBus) published() []mqtt.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mqtt.Message(nil), m.messages...)
}

func (m *mockBus) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// memRepo is an in-memory entity.Repository.
type memRepo struct {
	mu       sync.Mutex
	entities map[entity.TopicID]entity.Entity
}

func newMemRepo() *memRepo {
	return &memRepo{entities: make(map[entity.TopicID]entity.Entity)}
}

func (m *memRepo) List(_ context.Context) ([]entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	return out, nil
}

func (m *memRepo) GetByTopicID(_ context.Context, id entity.TopicID) (*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; ok {
		return &e, nil
	}
	return nil, entity.ErrEntityNotFound
}

func (m *memRepo) Create(_ context.Context, e *entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[e.TopicID]; ok {
		return entity.ErrEntityExists
	}
	m.entities[e.TopicID] = *e
	return nil
}

func (m *memRepo) Delete(_ context.Context, id entity.TopicID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
	return nil
}

// dispatched is one recorded HandleOperation call.
type dispatched struct {
	kind  operations.Kind
	snap  entity.Snapshot
	cmdID string
	msg   mqtt.Message
}

// mockDispatcher records operations instead of running them.
type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	ids   *operations.IDGenerator
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{ids: operations.NewIDGenerator("")}
}

func (m *mockDispatcher) HandleOperation(kind operations.Kind, snap entity.Snapshot, cmdID string, msg mqtt.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatched{kind: kind, snap: snap, cmdID: cmdID, msg: msg})
}

func (m *mockDispatcher) SoftwareListRequest(id entity.TopicID) mqtt.Message {
	topic := mqtt.NewTopics("te", "c8y").Command(id.String(), "software_list", m.ids.New())
	return mqtt.NewStringMessage(topic, `{"status":"init"}`).WithRetain()
}

func (m *mockDispatcher) IDs() *operations.IDGenerator {
	return m.ids
}

func (m *mockDispatcher) all() []dispatched {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatched(nil), m.calls...)
}

type mockObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockObserver) ObserveMessage(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockObserver) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

// recordingLogger keeps error and warning messages.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "error" {
			if err, ok := args[i+1].(error); ok {
				msg += ": " + err.Error()
			}
		}
	}
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
