package operations

import (
	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// restart reports the progress of a device restart.
func (h *Handler) restart(snap entity.Snapshot, msg mqtt.Message) (Result, error) {
	cmd, err := ParseCommand(msg.Payload)
	if err != nil {
		return Result{}, err
	}
	return statusOnly(snap, msg, cmd, smartrest.OpRestart), nil
}

// statusOnly maps executing, successful and failed to the cloud status
// records of op. Terminal states also clear the local command.
func statusOnly(snap entity.Snapshot, msg mqtt.Message, cmd *Command, op smartrest.Operation) Result {
	switch cmd.Status {
	case StatusExecuting:
		return newResult(cmd, mqtt.NewStringMessage(snap.PublishTopic, smartrest.SetExecuting(op)))
	case StatusSuccessful:
		return newResult(cmd,
			mqtt.NewStringMessage(snap.PublishTopic, smartrest.Succeed(op)),
			clearMessage(msg.Topic),
		)
	case StatusFailed:
		return newResult(cmd,
			mqtt.NewStringMessage(snap.PublishTopic, smartrest.Fail(op, cmd.failureReason())),
			clearMessage(msg.Topic),
		)
	}
	return Result{}
}
