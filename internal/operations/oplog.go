package operations

import (
	"bytes"
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-mapper/internal/cloudhttp"
	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
)

// UploadOperationLog attaches the log captured for a command to a new
// "<kind>_op_log" event of the device, subject to the auto log upload
// policy. A skipped upload returns nil.
//
// The handler calls it before publishing a log-bearing Result and only
// logs its error.
func (h *Handler) UploadOperationLog(ctx context.Context, externalID, cmdID string, kind Kind, cmd *Command) error {
	if cmd == nil || cmd.LogPath == "" || !h.shouldUploadLog(cmd.Status) {
		return nil
	}

	content, err := h.logs.Read(cmd.LogPath)
	if err != nil {
		return conversion.FromIO(fmt.Errorf("reading log of %s: %w", cmdID, err))
	}

	eventType := kind.String() + "_op_log"
	eventID, err := h.cloud.CreateEvent(ctx, cloudhttp.Event{
		ExternalID: externalID,
		Type:       eventType,
		Text:       fmt.Sprintf("%s operation log", kind),
	})
	if err != nil {
		return conversion.FromHTTPProxy(err)
	}

	_, err = h.uploader.Upload(ctx, cmdID, transfer.UploadRequest{
		URL:         h.cloud.EventBinaryURL(eventID),
		Body:        bytes.NewReader(content),
		ContentType: "text/plain",
		FileName:    fmt.Sprintf("%s-%s.log", kind, cmdID),
	})
	if err != nil {
		return conversion.FromTransfer(err)
	}

	h.logger.Info("operation log uploaded", "kind", kind.String(), "cmd_id", cmdID, "event_id", eventID)
	return nil
}

func (h *Handler) shouldUploadLog(status Status) bool {
	switch h.autoLogUpload {
	case config.AutoLogUploadAlways:
		return true
	case config.AutoLogUploadOnFailure:
		return status == StatusFailed
	}
	return false
}
