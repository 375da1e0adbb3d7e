package operations

import (
	"context"

	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// softwareList sends the installed software to the cloud, either as a
// SmartREST record or through the inventory REST API.
func (h *Handler) softwareList(ctx context.Context, snap entity.Snapshot, msg mqtt.Message) (Result, error) {
	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}

	switch cmd.Status {
	case StatusSuccessful:
		modules := cmd.SmartRESTModules()
		if h.softwareAPI == config.SoftwareAPILegacy {
			if err := h.cloud.UpdateSoftwareList(ctx, snap.ExternalID, modules); err != nil {
				return Result{}, conversion.FromHTTPProxy(err)
			}
			return newResult(cmd, clearMessage(msg.Topic)), nil
		}
		return newResult(cmd,
			mqtt.NewStringMessage(snap.PublishTopic, smartrest.SoftwareList(modules)),
			clearMessage(msg.Topic),
		), nil
	case StatusFailed:
		h.logger.Warn("software list request failed", "external_id", snap.ExternalID, "reason", cmd.Reason)
		return newResult(cmd, clearMessage(msg.Topic)), nil
	}
	return Result{}, nil
}

// softwareUpdate reports update progress. A successful update also asks the
// agent for a fresh software list.
func (h *Handler) softwareUpdate(snap entity.Snapshot, msg mqtt.Message) (Result, error) {
	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}

	res := statusOnly(snap, msg, cmd, smartrest.OpSoftwareUpdate)
	if cmd.Status == StatusSuccessful {
		res.Messages = append(res.Messages, h.SoftwareListRequest(snap.TopicID))
	}
	return res, nil
}

// SoftwareListRequest returns a new software_list command asking the agent
// of id for its installed software.
func (h *Handler) SoftwareListRequest(id entity.TopicID) mqtt.Message {
	topic := h.topics.Command(id.String(), KindSoftwareList.String(), h.ids.New())
	return mqtt.NewStringMessage(topic, `{"status":"init"}`).WithRetain()
}
