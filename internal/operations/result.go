package operations

import "github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"

// Result is what a routine produced for one command state.
type Result struct {
	// Messages are published in order.
	Messages []mqtt.Message

	// Command is set when a terminal state carries a log to upload first.
	Command *Command
}

// IsLogBearing reports whether the log upload must precede publication.
func (r Result) IsLogBearing() bool {
	return r.Command != nil && len(r.Messages) > 0
}

// newResult attaches cmd when it is terminal and carries a log path.
func newResult(cmd *Command, msgs ...mqtt.Message) Result {
	res := Result{Messages: msgs}
	if cmd != nil && cmd.Status.IsTerminal() && cmd.LogPath != "" {
		res.Command = cmd
	}
	return res
}
