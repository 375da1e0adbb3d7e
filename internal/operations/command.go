package operations

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-mapper/internal/conversion"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

// Status is the state of a local command.
type Status string

// Command states. Workflows may define more; routines ignore those.
const (
	StatusInit       Status = "init"
	StatusScheduled  Status = "scheduled"
	StatusExecuting  Status = "executing"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s ends the operation.
func (s Status) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// SoftwareList is the modules of one software type.
type SoftwareList struct {
	Type    string           `json:"type"`
	Modules []SoftwareModule `json:"modules"`
}

// SoftwareModule is one installed module.
type SoftwareModule struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Command is the state of a local command as published by agents.
// Fields unused by a kind stay empty.
type Command struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`

	// LogPath points at the log captured while running the command.
	LogPath string `json:"logPath,omitempty"`

	// TedgeURL is where the local file transfer service holds the content.
	TedgeURL string `json:"tedgeUrl,omitempty"`

	// RemoteURL is the cloud location of content to install.
	RemoteURL string `json:"remoteUrl,omitempty"`

	// Type is the log or config type.
	Type string `json:"type,omitempty"`

	// Name and Version describe a firmware.
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`

	CurrentSoftwareList []SoftwareList `json:"currentSoftwareList,omitempty"`
}

// ParseCommand decodes a command state.
func ParseCommand(payload []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, conversion.FromSerialization(fmt.Errorf("decoding command: %w", err))
	}
	if cmd.Status == "" {
		return nil, conversion.FromPayload(fmt.Errorf("%w: status", ErrMissingField))
	}
	return &cmd, nil
}

// SmartRESTModules flattens the software list into cloud modules, each
// carrying its software type.
func (c *Command) SmartRESTModules() []smartrest.SoftwareModule {
	var out []smartrest.SoftwareModule
	for _, list := range c.CurrentSoftwareList {
		for _, m := range list.Modules {
			out = append(out, smartrest.SoftwareModule{
				Name:    m.Name,
				Version: m.Version,
				Type:    list.Type,
				URL:     m.URL,
			})
		}
	}
	return out
}

// failureReason returns the agent's reason or a generic one.
func (c *Command) failureReason() string {
	if c.Reason != "" {
		return c.Reason
	}
	return "Operation failed"
}

// withFields returns payload with fields set, keeping every other field
// the agent published.
func withFields(payload []byte, fields map[string]any) ([]byte, error) {
	doc := make(map[string]any)
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, conversion.FromSerialization(fmt.Errorf("decoding command: %w", err))
	}
	for k, v := range fields {
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, conversion.FromSerialization(fmt.Errorf("encoding command: %w", err))
	}
	return out, nil
}

// clearMessage removes the retained command from the local bus.
func clearMessage(commandTopic string) mqtt.Message {
	return mqtt.NewMessage(commandTopic, nil).WithRetain()
}
