package capability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

const (
	dirPermissions    = 0o755
	markerPermissions = 0o644
)

// Logger defines the logging interface used by the registrar.
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

// Observer receives the size of every supported-operations announcement.
type Observer interface {
	ObserveCapabilities(externalID string, operations int)
}

// Options configures a Registrar.
type Options struct {
	// OperationsDir is the marker root of the main device.
	OperationsDir string

	// Observer is optional.
	Observer Observer
}

// Registrar creates capability markers and builds the matching cloud records.
//
// All public methods are thread-safe.
type Registrar struct {
	root     string
	observer Observer
	logger   Logger

	mu sync.Mutex
	// announced holds the last 114 payload per marker directory.
	announced map[string]string
	// valueLists holds the last value list per device and operation.
	valueLists map[string][]string
}

// NewRegistrar creates a registrar rooted at opts.OperationsDir.
func NewRegistrar(opts Options) *Registrar {
	return &Registrar{
		root:       opts.OperationsDir,
		observer:   opts.Observer,
		logger:     noopLogger{},
		announced:  make(map[string]string),
		valueLists: make(map[string][]string),
	}
}

// SetLogger sets the logger for the registrar.
func (r *Registrar) SetLogger(logger Logger) {
	r.logger = logger
}

// Root returns the marker directory of the main device.
func (r *Registrar) Root() string {
	return r.root
}

// DeviceDir returns the marker directory of the device behind snap.
func (r *Registrar) DeviceDir(snap entity.Snapshot) string {
	if snap.IsMainDevice() {
		return r.root
	}
	return filepath.Join(r.root, snap.ExternalID)
}

// RegisterOperation makes sure the marker for op exists for the device.
//
// The call that creates the marker returns one supported-operations record
// listing every marker of the device. Later calls for the same operation
// return nothing. Filesystem failures are reported as I/O conversion errors
// wrapping ErrMarker.
func (r *Registrar) RegisterOperation(snap entity.Snapshot, op smartrest.Operation) ([]mqtt.Message, error) {
	if err := validOperation(string(op)); err != nil {
		return nil, conversion.FromRegistration(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.DeviceDir(snap)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, markerError(dir, err)
	}

	path := filepath.Join(dir, string(op))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, nil
		}
		return nil, markerError(path, err)
	}
	if err := f.Close(); err != nil {
		return nil, markerError(path, err)
	}

	r.logger.Info("operation registered", "external_id", snap.ExternalID, "operation", string(op))

	msg, err := r.announce(snap, dir)
	if err != nil {
		return nil, err
	}
	return []mqtt.Message{msg}, nil
}

// Announce returns the supported-operations record from the markers on disk.
// It is used at startup and always produces a record.
func (r *Registrar) Announce(snap entity.Snapshot) (mqtt.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.announce(snap, r.DeviceDir(snap))
}

// Refresh re-reads the markers of a device and returns a supported-operations
// record only when the list differs from the last one announced.
func (r *Registrar) Refresh(snap entity.Snapshot) ([]mqtt.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.DeviceDir(snap)
	ops, err := listMarkers(dir)
	if err != nil {
		return nil, err
	}
	payload := smartrest.SupportedOperations(ops)
	if last, ok := r.announced[dir]; ok && last == payload {
		return nil, nil
	}

	msg, err := r.announce(snap, dir)
	if err != nil {
		return nil, err
	}
	return []mqtt.Message{msg}, nil
}

// SupportedOperations lists the marker names of a device in lexicographic order.
func (r *Registrar) SupportedOperations(snap entity.Snapshot) ([]string, error) {
	return listMarkers(r.DeviceDir(snap))
}

// ValueList returns the type list record accompanying a capability:
// config types for the configuration operations, log types for log requests.
// It is produced on every metadata update whether or not the marker is new.
func (r *Registrar) ValueList(snap entity.Snapshot, op smartrest.Operation, types []string) (mqtt.Message, error) {
	var payload string
	switch op {
	case smartrest.OpUploadConfigFile, smartrest.OpDownloadConfigFile:
		payload = smartrest.SupportedConfigTypes(types)
	case smartrest.OpLogfileRequest:
		payload = smartrest.SupportedLogTypes(types)
	default:
		return mqtt.Message{}, fmt.Errorf("%w: %s", ErrNoValueList, op)
	}

	r.mu.Lock()
	r.valueLists[valueListKey(snap.ExternalID, op)] = slices.Sorted(slices.Values(types))
	r.mu.Unlock()

	return mqtt.NewStringMessage(snap.PublishTopic, payload), nil
}

// ValueTypes returns the last value list seen for a device and operation.
func (r *Registrar) ValueTypes(externalID string, op smartrest.Operation) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.valueLists[valueListKey(externalID, op)])
}

// announce must be called with mu held.
func (r *Registrar) announce(snap entity.Snapshot, dir string) (mqtt.Message, error) {
	ops, err := listMarkers(dir)
	if err != nil {
		return mqtt.Message{}, err
	}

	payload := smartrest.SupportedOperations(ops)
	r.announced[dir] = payload
	if r.observer != nil {
		r.observer.ObserveCapabilities(snap.ExternalID, len(ops))
	}
	return mqtt.NewStringMessage(snap.PublishTopic, payload), nil
}

// listMarkers returns regular, non-hidden file names in dir.
// A missing directory means no operations.
func listMarkers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, markerError(dir, err)
	}

	ops := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ops = append(ops, e.Name())
	}
	slices.Sort(ops)
	return ops, nil
}

func validOperation(op string) error {
	if op == "" || op == "." || op == ".." || strings.ContainsAny(op, `/\`) || strings.HasPrefix(op, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	return nil
}

func markerError(path string, err error) error {
	return conversion.FromIO(fmt.Errorf("%w %s: %w", ErrMarker, path, err))
}

func valueListKey(externalID string, op smartrest.Operation) string {
	return externalID + "/" + string(op)
}
