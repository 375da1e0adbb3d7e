package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-mapper/internal/capability"
	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/operations"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// Message outcomes reported to the Observer.
const (
	OutcomeConverted = "converted"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

const subscribeQoS = 1

// Logger defines the logging interface used by the converter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BusClient is the subset of the MQTT client the converter uses.
type BusClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishMessage(msg mqtt.Message) error
}

// Entities resolves topic ids to entity snapshots.
type Entities interface {
	Snapshot(ctx context.Context, id entity.TopicID) (entity.Snapshot, []mqtt.Message, error)
	SnapshotByExternalID(xid string) (entity.Snapshot, error)
	Children() []entity.Snapshot
}

// Capabilities registers cloud capabilities of entities.
type Capabilities interface {
	RegisterOperation(snap entity.Snapshot, op smartrest.Operation) ([]mqtt.Message, error)
	ValueList(snap entity.Snapshot, op smartrest.Operation, types []string) (mqtt.Message, error)
	Announce(snap entity.Snapshot) (mqtt.Message, error)
	Refresh(snap entity.Snapshot) ([]mqtt.Message, error)
}

// Dispatcher runs operation routines.
type Dispatcher interface {
	HandleOperation(kind operations.Kind, snap entity.Snapshot, cmdID string, msg mqtt.Message)
	SoftwareListRequest(id entity.TopicID) mqtt.Message
	IDs() *operations.IDGenerator
}

// Observer counts converted messages by outcome.
type Observer interface {
	ObserveMessage(outcome string)
}

// Options configures a Converter.
type Options struct {
	Client       BusClient
	Entities     Entities
	Capabilities Capabilities
	Dispatcher   Dispatcher

	// Observer is optional.
	Observer Observer

	Topics mqtt.Topics

	// MaxPayloadSize rejects larger command payloads. Zero disables the check.
	MaxPayloadSize int
}

// Converter turns local operation messages into cloud records and
// operation routines.
type Converter struct {
	client       BusClient
	entities     Entities
	capabilities Capabilities
	dispatcher   Dispatcher
	observer     Observer
	topics       mqtt.Topics
	maxPayload   int

	ctx    context.Context
	ctxMu  sync.RWMutex
	logger Logger
}

// NewConverter creates a converter. Call Start to subscribe.
func NewConverter(opts Options) (*Converter, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	if opts.Entities == nil || opts.Capabilities == nil || opts.Dispatcher == nil {
		return nil, ErrCollaboratorRequired
	}

	return &Converter{
		client:       opts.Client,
		entities:     opts.Entities,
		capabilities: opts.Capabilities,
		dispatcher:   opts.Dispatcher,
		observer:     opts.Observer,
		topics:       opts.Topics,
		maxPayload:   opts.MaxPayloadSize,
		ctx:          context.Background(),
		logger:       noopLogger{},
	}, nil
}

// SetLogger sets the logger for the converter.
func (c *Converter) SetLogger(logger Logger) {
	c.logger = logger
}

// Start announces startup capabilities and subscribes to operation topics.
// ctx bounds entity store calls made while converting messages.
func (c *Converter) Start(ctx context.Context) error {
	c.ctxMu.Lock()
	c.ctx = ctx
	c.ctxMu.Unlock()

	c.Init()

	for _, topic := range []string{c.topics.AllCommandMetadata(), c.topics.AllCommands()} {
		if err := c.client.Subscribe(topic, subscribeQoS, c.HandleMessage); err != nil {
			return conversion.BusClientFailure(fmt.Errorf("subscribe to %s: %w", topic, err))
		}
		c.logger.Info("subscribed to operations", "topic", topic)
	}
	return nil
}

// Init publishes the capabilities already on disk for the main device and
// every known child, then asks the main device agent for its software list.
func (c *Converter) Init() {
	main, regs, err := c.entities.Snapshot(c.context(), entity.MainDevice)
	if err != nil {
		c.logger.Error("cannot resolve main device", "error", err)
		return
	}
	msgs := regs

	for _, snap := range append([]entity.Snapshot{main}, c.entities.Children()...) {
		msg, err := c.capabilities.Announce(snap)
		if err != nil {
			c.logger.Warn("cannot announce capabilities", "external_id", snap.ExternalID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	msgs = append(msgs, c.dispatcher.SoftwareListRequest(entity.MainDevice))

	c.publish("", msgs)
}

// Reannounce publishes a fresh capability record for the device whose
// markers changed on disk. An empty externalID names the main device.
func (c *Converter) Reannounce(externalID string) {
	var (
		snap entity.Snapshot
		err  error
	)
	if externalID == "" {
		snap, _, err = c.entities.Snapshot(c.context(), entity.MainDevice)
	} else {
		snap, err = c.entities.SnapshotByExternalID(externalID)
	}
	if err != nil {
		c.logger.Warn("capabilities changed for unknown device", "external_id", externalID, "error", err)
		return
	}

	msgs, err := c.capabilities.Refresh(snap)
	if err != nil {
		c.logger.Warn("cannot refresh capabilities", "external_id", snap.ExternalID, "error", err)
		return
	}
	c.publish("", msgs)
}

// HandleMessage converts one bus message and publishes the output.
// Conversion failures are logged and isolated to the message; only
// infrastructure failures are returned.
func (c *Converter) HandleMessage(topic string, payload []byte) error {
	msgs, err := c.Convert(c.context(), topic, payload)
	if err != nil {
		wrapped := conversion.Wrap(topic, err)
		c.logger.Error("message conversion failed", "error", wrapped)
		c.observe(OutcomeFailed)
		if conversion.IsInfrastructure(err) {
			return wrapped
		}
		return nil
	}

	if msgs == nil {
		c.observe(OutcomeIgnored)
	} else {
		c.observe(OutcomeConverted)
	}
	c.publish(topic, msgs)
	return nil
}

// Convert returns the messages produced for one bus message. Messages
// addressed to new entities come first. Commands are dispatched as a side
// effect: registration records for a new entity are published before the
// operation routine starts, and the routine publishes its own records.
//
// A nil slice with a nil error means the message was ignored.
func (c *Converter) Convert(ctx context.Context, topic string, payload []byte) ([]mqtt.Message, error) {
	ch, err := entity.ParseCommandTopic(c.topics.Local, topic)
	if err != nil {
		return nil, conversion.FromPayload(err)
	}
	if len(payload) == 0 {
		// Cleared command or withdrawn capability.
		return nil, nil
	}

	if ch.IsMetadata() {
		return c.convertMetadata(ctx, ch, payload)
	}
	return c.convertCommand(ctx, ch, topic, payload)
}

// metadata is the body of a capability metadata message.
type metadata struct {
	Types []string `json:"types"`
}

func (c *Converter) convertMetadata(ctx context.Context, ch entity.Channel, payload []byte) ([]mqtt.Message, error) {
	var meta metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, conversion.FromSerialization(fmt.Errorf("%w: %w", ErrInvalidMetadata, err))
	}

	kind := operations.ParseKind(ch.Operation)
	op, ok := kind.CloudOperation()
	if !ok {
		return nil, nil
	}

	snap, msgs, err := c.entities.Snapshot(ctx, ch.Entity)
	if err != nil {
		return nil, err
	}

	announced, err := c.capabilities.RegisterOperation(snap, op)
	if err != nil {
		c.logger.Warn("cannot register capability",
			"external_id", snap.ExternalID, "operation", string(op), "error", err)
		return nonNil(msgs), nil
	}
	msgs = append(msgs, announced...)

	if kind.HasValueList() {
		list, err := c.capabilities.ValueList(snap, op, meta.Types)
		if err != nil {
			return nil, conversion.FromRegistration(err)
		}
		msgs = append(msgs, list)
	}
	return nonNil(msgs), nil
}

func (c *Converter) convertCommand(ctx context.Context, ch entity.Channel, topic string, payload []byte) ([]mqtt.Message, error) {
	if c.maxPayload > 0 && len(payload) > c.maxPayload {
		return nil, conversion.SizeExceeded(topic, len(payload), c.maxPayload)
	}

	kind := operations.ParseKind(ch.Operation)
	if kind != operations.KindHealth && !kind.IsCustom() && !c.dispatcher.IDs().IsGenerated(ch.CmdID) {
		// Started by another mapper or by a local user.
		c.logger.Debug("ignoring foreign command", "topic", topic, "cmd_id", ch.CmdID)
		return nil, nil
	}

	snap, regs, err := c.entities.Snapshot(ctx, ch.Entity)
	if err != nil {
		return nil, err
	}

	// The routine publishes on its own goroutine, so a new entity must be
	// registered with the cloud before it starts.
	if _, err := c.publishAll(regs); err != nil {
		return nil, conversion.FromInfrastructure(
			conversion.BusClientFailure(fmt.Errorf("register %s: %w", snap.ExternalID, err)))
	}

	c.dispatcher.HandleOperation(kind, snap, ch.CmdID, mqtt.NewMessage(topic, payload).WithRetain())
	return []mqtt.Message{}, nil
}

func (c *Converter) publish(source string, msgs []mqtt.Message) {
	if sent, err := c.publishAll(msgs); err != nil {
		c.logger.Error("failed to publish converted message",
			"source", source, "topic", msgs[sent].Topic, "dropped", len(msgs)-sent,
			"error", conversion.BusClientFailure(err))
	}
}

// publishAll publishes msgs in order and stops at the first failure,
// returning how many were sent.
func (c *Converter) publishAll(msgs []mqtt.Message) (int, error) {
	for i, m := range msgs {
		if err := c.client.PublishMessage(m); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}

func (c *Converter) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveMessage(outcome)
	}
}

func (c *Converter) context() context.Context {
	c.ctxMu.RLock()
	defer c.ctxMu.RUnlock()
	return c.ctx
}

// nonNil distinguishes a handled message with no output from an ignored one.
func nonNil(msgs []mqtt.Message) []mqtt.Message {
	if msgs == nil {
		return []mqtt.Message{}
	}
	return msgs
}

var (
	_ Entities     = (*entity.Registry)(nil)
	_ Capabilities = (*capability.Registrar)(nil)
	_ Dispatcher   = (*operations.Handler)(nil)
)
