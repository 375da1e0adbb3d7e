package operations

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/cloudhttp"
	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/oplog"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
)

const defaultTimeout = time.Hour

// Logger defines the logging interface used by the handler.
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

// Publisher sends messages to the local bus.
type Publisher interface {
	PublishMessage(msg mqtt.Message) error
}

// CloudProxy is the subset of the cloud REST API routines need.
type CloudProxy interface {
	CreateEvent(ctx context.Context, ev cloudhttp.Event) (string, error)
	EventBinaryURL(eventID string) string
	UpdateSoftwareList(ctx context.Context, externalID string, modules []smartrest.SoftwareModule) error
}

// LogStore reads captured operation logs.
type LogStore interface {
	Read(path string) ([]byte, error)
}

var (
	_ CloudProxy          = (*cloudhttp.Client)(nil)
	_ LogStore            = (*oplog.Store)(nil)
	_ transfer.Uploader   = (*transfer.HTTPClient)(nil)
	_ transfer.Downloader = (*transfer.HTTPClient)(nil)
)

// Options configures a Handler.
type Options struct {
	Publisher  Publisher
	Uploader   transfer.Uploader
	Downloader transfer.Downloader
	Cloud      CloudProxy
	Logs       LogStore

	// Recorder is optional.
	Recorder Recorder

	Topics mqtt.Topics
	IDs    *IDGenerator

	// AutoLogUpload is one of the config.AutoLogUpload* policies.
	AutoLogUpload string

	// SoftwareAPI is config.SoftwareAPIAdvanced or config.SoftwareAPILegacy.
	SoftwareAPI string

	// FileTransferDir and FileTransferURL locate downloaded content for agents.
	FileTransferDir string
	FileTransferURL string

	// Timeout bounds one routine and one log upload.
	Timeout time.Duration
}

// Handler runs operation routines concurrently.
//
// All public methods are safe for concurrent use.
type Handler struct {
	publisher  Publisher
	uploader   transfer.Uploader
	downloader transfer.Downloader
	cloud      CloudProxy
	logs       LogStore
	recorder   Recorder

	topics          mqtt.Topics
	ids             *IDGenerator
	autoLogUpload   string
	softwareAPI     string
	fileTransferDir string
	fileTransferURL string
	timeout         time.Duration

	logger    Logger
	wg        sync.WaitGroup
	inFlight  atomic.Int64
	abandoned atomic.Int64
}

// NewHandler creates an operation handler.
func NewHandler(opts Options) *Handler {
	ids := opts.IDs
	if ids == nil {
		ids = NewIDGenerator("")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	policy := opts.AutoLogUpload
	if policy == "" {
		policy = config.AutoLogUploadOnFailure
	}
	api := opts.SoftwareAPI
	if api == "" {
		api = config.SoftwareAPIAdvanced
	}

	return &Handler{
		publisher:       opts.Publisher,
		uploader:        opts.Uploader,
		downloader:      opts.Downloader,
		cloud:           opts.Cloud,
		logs:            opts.Logs,
		recorder:        opts.Recorder,
		topics:          opts.Topics,
		ids:             ids,
		autoLogUpload:   policy,
		softwareAPI:     api,
		fileTransferDir: opts.FileTransferDir,
		fileTransferURL: opts.FileTransferURL,
		timeout:         timeout,
		logger:          noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// IDs returns the correlation id generator.
func (h *Handler) IDs() *IDGenerator {
	return h.ids
}

// InFlight returns the number of operations still being handled.
// Routines abandoned after the timeout are not counted; see Abandoned.
func (h *Handler) InFlight() int {
	return int(h.inFlight.Load())
}

// Abandoned returns the number of routines that outlived the timeout and
// have not returned yet. Their results are discarded when they do.
func (h *Handler) Abandoned() int {
	return int(h.abandoned.Load())
}

// Wait blocks until every operation started so far has been handled.
// It is a shutdown and test hook; it cancels nothing.
//
// An operation whose routine timed out counts as handled once its elapsed
// outcome is recorded, even if the routine goroutine is still running.
// Such routines are reported by Abandoned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HandleOperation runs the routine for kind in a new goroutine and returns
// immediately.
//
// The snapshot is owned by the goroutine. msg is the command message that
// triggered the call; its topic is the command topic of the operation.
func (h *Handler) HandleOperation(kind Kind, snap entity.Snapshot, cmdID string, msg mqtt.Message) {
	h.wg.Add(1)
	h.inFlight.Add(1)

	go func() {
		defer h.wg.Done()
		defer h.inFlight.Add(-1)
		defer func() {
			// Anything escaping the routine guard is a bug in result handling.
			if r := recover(); r != nil {
				h.logger.Error("operation handler panicked",
					"kind", kind.String(), "cmd_id", cmdID, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		start := time.Now()
		res, err := h.runRoutine(kind, snap, cmdID, msg)
		h.record(kind, snap, msg, res, err, time.Since(start))

		if err != nil {
			h.logger.Error("operation failed",
				"kind", kind.String(), "cmd_id", cmdID, "external_id", snap.ExternalID,
				"error", conversion.Wrap(msg.Topic, err))
			return
		}

		if res.IsLogBearing() {
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			if err := h.UploadOperationLog(ctx, snap.ExternalID, cmdID, kind, res.Command); err != nil {
				h.logger.Error("failed to upload operation log",
					"kind", kind.String(), "cmd_id", cmdID, "external_id", snap.ExternalID, "error", err)
			}
			cancel()
		}

		h.publish(kind, cmdID, res.Messages)
	}()
}

// runRoutine runs the routine under the handler timeout. A routine that
// outlives the timeout is abandoned and reported as elapsed.
func (h *Handler) runRoutine(kind Kind, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)

	const (
		running int32 = iota
		finished
		abandoned
	)
	var state atomic.Int32

	go func() {
		defer func() {
			if !state.CompareAndSwap(running, finished) {
				h.abandoned.Add(-1)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: conversion.FromUnexpected(fmt.Errorf("%w: %v", ErrPanic, r))}
			}
		}()
		res, err := h.dispatch(ctx, kind, snap, cmdID, msg)
		done <- outcome{res: res, err: err}
	}()

	settle := func(out outcome) (Result, error) {
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return Result{}, conversion.Elapsed(out.err)
		}
		return out.res, out.err
	}

	select {
	case out := <-done:
		return settle(out)
	case <-ctx.Done():
		h.abandoned.Add(1)
		if !state.CompareAndSwap(running, abandoned) {
			// Finished while the timeout fired.
			h.abandoned.Add(-1)
			return settle(<-done)
		}
		h.logger.Warn("operation routine abandoned after timeout",
			"kind", kind.String(), "cmd_id", cmdID, "timeout", h.timeout)
		return Result{}, conversion.Elapsed(ctx.Err())
	}
}

// dispatch selects the routine for kind.
func (h *Handler) dispatch(ctx context.Context, kind Kind, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	switch kind {
	case KindHealth:
		return Result{}, nil
	case KindRestart:
		return h.restart(snap, msg)
	case KindSoftwareList:
		return h.softwareList(ctx, snap, msg)
	case KindSoftwareUpdate:
		return h.softwareUpdate(snap, msg)
	case KindLogUpload:
		return h.logUpload(ctx, snap, cmdID, msg)
	case KindConfigSnapshot:
		return h.configSnapshot(ctx, snap, cmdID, msg)
	case KindConfigUpdate:
		return h.configUpdate(ctx, snap, cmdID, msg)
	case KindFirmwareUpdate:
		return h.firmwareUpdate(ctx, snap, cmdID, msg)
	default:
		// Custom operations are handled by their own workflows.
		return Result{}, nil
	}
}

// publish sends messages in order and stops at the first failure so a
// clear never overtakes a lost status record.
func (h *Handler) publish(kind Kind, cmdID string, msgs []mqtt.Message) {
	for i, m := range msgs {
		if err := h.publisher.PublishMessage(m); err != nil {
			h.logger.Error("failed to publish operation message",
				"kind", kind.String(), "cmd_id", cmdID, "topic", m.Topic,
				"dropped", len(msgs)-i, "error", conversion.BusClientFailure(err))
			return
		}
	}
}

func (h *Handler) record(kind Kind, snap entity.Snapshot, msg mqtt.Message, res Result, err error, elapsed time.Duration) {
	if h.recorder == nil {
		return
	}

	outcome := OutcomeNoop
	switch k, _ := conversion.KindOf(err); {
	case err != nil && k == conversion.KindElapsed:
		outcome = OutcomeElapsed
	case err != nil:
		outcome = OutcomeError
	case len(res.Messages) > 0:
		if cmd, perr := ParseCommand(msg.Payload); perr == nil {
			outcome = string(cmd.Status)
		}
	}
	h.recorder.ObserveOperation(kind.String(), snap.ExternalID, outcome, elapsed)
}
