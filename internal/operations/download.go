package operations

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
	"github.com/nerrad567/gray-logic-mapper/internal/transfer"
)

// configUpdate installs a configuration file from the cloud.
func (h *Handler) configUpdate(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	return h.downloadAndApply(ctx, snap, cmdID, msg, KindConfigUpdate, smartrest.OpDownloadConfigFile)
}

// firmwareUpdate installs a firmware image from the cloud. Success also
// updates the firmware shown in the inventory.
func (h *Handler) firmwareUpdate(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message) (Result, error) {
	res, err := h.downloadAndApply(ctx, snap, cmdID, msg, KindFirmwareUpdate, smartrest.OpFirmware)
	if err != nil {
		return Result{}, err
	}

	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}
	if cmd.Status == StatusSuccessful {
		info := mqtt.NewStringMessage(snap.PublishTopic, smartrest.FirmwareInfo(cmd.Name, cmd.Version, cmd.RemoteURL))
		res.Messages = append([]mqtt.Message{info}, res.Messages...)
	}
	return res, nil
}

// downloadAndApply caches cloud content for the agent on the first state
// and reports progress on the later ones.
//
// An init state with a remoteUrl and no tedgeUrl is answered by downloading
// the content into the file transfer directory and republishing the command
// with the local tedgeUrl. A failed download ends the operation.
func (h *Handler) downloadAndApply(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message, kind Kind, op smartrest.Operation) (Result, error) {
	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}

	if cmd.Status == StatusInit {
		if cmd.RemoteURL == "" || cmd.TedgeURL != "" {
			return Result{}, nil
		}
		return h.cacheDownload(ctx, snap, cmdID, msg, kind, op, cmd)
	}

	if cmd.Status.IsTerminal() {
		h.removeCached(snap, cmdID, kind)
	}
	return statusOnly(snap, msg, cmd, op), nil
}

func (h *Handler) cacheDownload(ctx context.Context, snap entity.Snapshot, cmdID string, msg mqtt.Message, kind Kind, op smartrest.Operation, cmd *Command) (Result, error) {
	path, localURL := h.cachedFile(snap, cmdID, kind)

	_, err := h.downloader.Download(ctx, cmdID, transfer.DownloadRequest{URL: cmd.RemoteURL, Path: path})
	if err != nil {
		h.logger.Warn("download failed", "cmd_id", cmdID, "url", cmd.RemoteURL, "error", err)
		return Result{Messages: []mqtt.Message{
			mqtt.NewStringMessage(snap.PublishTopic, smartrest.TranslateDownload(err, "", op)),
			clearMessage(msg.Topic),
		}}, nil
	}

	payload, err := withFields(msg.Payload, map[string]any{"tedgeUrl": localURL})
	if err != nil {
		return Result{}, err
	}
	return Result{Messages: []mqtt.Message{
		mqtt.NewMessage(msg.Topic, payload).WithRetain(),
	}}, nil
}

// cachedFile returns where content for the command is cached on disk and
// the file transfer URL serving it.
func (h *Handler) cachedFile(snap entity.Snapshot, cmdID string, kind Kind) (path, localURL string) {
	segments := []string{snap.ExternalID, kind.String(), cmdID}
	path = filepath.Join(append([]string{h.fileTransferDir}, segments...)...)

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	localURL = strings.TrimSuffix(h.fileTransferURL, "/") + "/" + strings.Join(escaped, "/")
	return path, localURL
}

func (h *Handler) removeCached(snap entity.Snapshot, cmdID string, kind Kind) {
	if h.fileTransferDir == "" {
		return
	}
	path, _ := h.cachedFile(snap, cmdID, kind)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("cannot remove cached download", "path", path, "error", err)
	}
}
