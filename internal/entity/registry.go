package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// DefaultChildType is the device type announced for auto-registered children.
const DefaultChildType = "thin-edge.io-child"

// defaultServiceType is announced for auto-registered services.
const defaultServiceType = "service"

// Logger defines the logging interface used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Registry.
type Options struct {
	Repo Repository

	// MainExternalID is the cloud identity of the main device.
	MainExternalID string

	// ChildType is announced for auto-registered child devices.
	ChildType string

	// AutoRegister registers unknown child devices and services on first sight.
	AutoRegister bool

	Topics mqtt.Topics
}

// Registry maps local topic ids to cloud identities with an in-memory cache
// in front of the Repository.
//
// All public methods are thread-safe.
type Registry struct {
	repo         Repository
	mainXID      string
	childType    string
	autoRegister bool
	topics       mqtt.Topics

	cache   map[TopicID]*Entity
	byXID   map[string]TopicID
	cacheMu sync.RWMutex

	logger Logger
}

// NewRegistry creates a registry that already knows the main device.
func NewRegistry(opts Options) *Registry {
	childType := opts.ChildType
	if childType == "" {
		childType = DefaultChildType
	}

	r := &Registry{
		repo:         opts.Repo,
		mainXID:      opts.MainExternalID,
		childType:    childType,
		autoRegister: opts.AutoRegister,
		topics:       opts.Topics,
		logger:       noopLogger{},
	}
	r.resetCache()
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// MainExternalID returns the cloud identity of the main device.
func (r *Registry) MainExternalID() string {
	return r.mainXID
}

// resetCache must be called with cacheMu held or before the registry is shared.
func (r *Registry) resetCache() {
	main := &Entity{
		TopicID:    MainDevice,
		ExternalID: r.mainXID,
		Type:       TypeMainDevice,
	}
	r.cache = map[TopicID]*Entity{MainDevice: main}
	r.byXID = map[string]TopicID{r.mainXID: MainDevice}
}

// RefreshCache reloads all persisted entities into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.resetCache()
	for i := range entities {
		e := entities[i]
		if e.Type == TypeMainDevice {
			// The configured identity wins over a stale row.
			continue
		}
		r.cache[e.TopicID] = &e
		r.byXID[e.ExternalID] = e.TopicID
	}

	r.logger.Info("entity cache refreshed", "count", len(r.cache))
	return nil
}

// Lookup returns a copy of the registered entity.
// Returns ErrEntityNotFound if the entity is unknown.
func (r *Registry) Lookup(id TopicID) (Entity, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	e, ok := r.cache[id]
	if !ok {
		return Entity{}, ErrEntityNotFound
	}
	return *e, nil
}

// SnapshotByExternalID returns the snapshot of an already registered entity.
func (r *Registry) SnapshotByExternalID(xid string) (Snapshot, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	id, ok := r.byXID[xid]
	if !ok {
		return Snapshot{}, ErrEntityNotFound
	}
	return r.snapshotOf(r.cache[id]), nil
}

// Children returns the snapshots of all registered child devices, ordered by external id.
func (r *Registry) Children() []Snapshot {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var out []Snapshot
	for _, e := range r.cache {
		if e.Type == TypeChildDevice {
			out = append(out, r.snapshotOf(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

// Count returns the number of cached entities including the main device.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Snapshot resolves a topic id to an entity snapshot.
//
// Unknown default-scheme child devices and services are registered when
// auto-registration is on. The returned messages announce the new entities
// to the cloud and must be published before anything addressed to them.
//
// Errors are conversion errors: AutoRegistrationDisabled,
// ChildNotRegistered, or an entity store failure.
func (r *Registry) Snapshot(ctx context.Context, id TopicID) (Snapshot, []mqtt.Message, error) {
	r.cacheMu.RLock()
	e, ok := r.cache[id]
	var snap Snapshot
	if ok {
		snap = r.snapshotOf(e)
	}
	r.cacheMu.RUnlock()
	if ok {
		return snap, nil, nil
	}

	if !r.autoRegister {
		return Snapshot{}, nil, conversion.AutoRegistrationDisabled(string(id))
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	return r.register(ctx, id)
}

// register must be called with cacheMu held.
func (r *Registry) register(ctx context.Context, id TopicID) (Snapshot, []mqtt.Message, error) {
	if e, ok := r.cache[id]; ok {
		return r.snapshotOf(e), nil, nil
	}

	if name, ok := id.DeviceName(); ok {
		e := &Entity{
			TopicID:     id,
			ExternalID:  r.mainXID + ":device:" + name,
			Type:        TypeChildDevice,
			Parent:      MainDevice,
			DisplayName: name,
		}
		if err := r.persist(ctx, e); err != nil {
			return Snapshot{}, nil, err
		}
		msg := mqtt.NewStringMessage(
			r.topics.CloudSmartREST(),
			smartrest.ChildDevice(e.ExternalID, name, r.childType),
		)
		r.logger.Info("child device registered", "topic_id", string(id), "external_id", e.ExternalID)
		return r.snapshotOf(e), []mqtt.Message{msg}, nil
	}

	if parentID, name, ok := id.ServiceName(); ok {
		parent, msgs, err := r.register(ctx, parentID)
		if err != nil {
			return Snapshot{}, nil, err
		}
		deviceName, _ := parentID.DeviceName()
		e := &Entity{
			TopicID:     id,
			ExternalID:  r.mainXID + ":device:" + deviceName + ":service:" + name,
			Type:        TypeService,
			Parent:      parentID,
			DisplayName: name,
		}
		if err := r.persist(ctx, e); err != nil {
			return Snapshot{}, nil, err
		}
		msgs = append(msgs, mqtt.NewStringMessage(
			parent.PublishTopic,
			smartrest.Service(e.ExternalID, defaultServiceType, name, "up"),
		))
		r.logger.Info("service registered", "topic_id", string(id), "external_id", e.ExternalID)
		return r.snapshotOf(e), msgs, nil
	}

	return Snapshot{}, nil, conversion.ChildNotRegistered(string(id))
}

// persist must be called with cacheMu held.
func (r *Registry) persist(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return conversion.FromEntityStore(err)
	}
	if err := r.repo.Create(ctx, e); err != nil && !errors.Is(err, ErrEntityExists) {
		return conversion.FromEntityStore(err)
	}
	r.cache[e.TopicID] = e
	r.byXID[e.ExternalID] = e.TopicID
	return nil
}

func (r *Registry) snapshotOf(e *Entity) Snapshot {
	topic := r.topics.CloudSmartREST()
	if e.Type != TypeMainDevice {
		topic = r.topics.CloudSmartRESTChild(e.ExternalID)
	}
	return Snapshot{
		TopicID:      e.TopicID,
		ExternalID:   e.ExternalID,
		PublishTopic: topic,
	}
}
