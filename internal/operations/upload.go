package operations

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-mapper/internal/cloudhttp"
	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
)

// logUpload moves a log file the agent published to the file transfer
// service into the cloud as an event attachment.
func (h *Handler) logUpload(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	return h.uploadToEvent(ctx, snap, cmdID, msg, smartrest.OpLogfileRequest)
}

// configSnapshot moves a configuration file into the cloud as an event attachment.
func (h *Handler) configSnapshot(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	return h.uploadToEvent(ctx, snap, cmdID, msg, smartrest.OpUploadConfigFile)
}

// uploadToEvent creates an event typed after the log or config type and
// uploads the file behind tedgeUrl as its binary. The upload outcome becomes
// the terminal status; only a failure to create the event is an error.
func (h *Handler) uploadToEvent(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message, op smartrest.Operation) (Result, error) {
	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}
	if cmd.Status != StatusSuccessful {
		return statusOnly(snap, msg, cmd, op), nil
	}

	if cmd.TedgeURL == "" {
		return Result{}, conversion.FromPayload(fmt.Errorf("%w: tedgeUrl", ErrMissingField))
	}

	eventType := cmd.Type
	if eventType == "" {
		eventType = string(op)
	}
	eventID, err := h.cloud.CreateEvent(ctx, cloudhttp.Event{
		ExternalID: snap.ExternalID,
		Type:       eventType,
		Text:       eventType,
	})
	if err != nil {
		return Result{}, conversion.FromHTTPProxy(err)
	}

	binaryURL := h.cloud.EventBinaryURL(eventID)
	_, uploadErr := h.uploader.Upload(ctx, cmdID, transfer.UploadRequest{
		URL:         binaryURL,
		SourceURL:   cmd.TedgeURL,
		ContentType: "text/plain",
		FileName:    eventType,
	})
	if uploadErr != nil {
		h.logger.Warn("upload failed", "cmd_id", cmdID, "url", binaryURL, "error", conversion.FromTransfer(uploadErr))
	}

	return newResult(cmd,
		mqtt.NewStringMessage(snap.PublishTopic, smartrest.TranslateUpload(uploadErr, binaryURL, op)),
		clearMessage(msg.Topic),
	), nil
}
