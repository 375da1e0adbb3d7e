package smartrest

import (
	"encoding/csv"
	"slices"
	"strconv"
	"strings"
)

// Template codes of upstream records.
const (
	CodeChildDevice          = 101
	CodeService              = 102
	CodeSupportedOperations  = 114
	CodeFirmware             = 115
	CodeSupportedLogTypes    = 118
	CodeSupportedConfigTypes = 119
	CodeSoftwareList         = 140
	CodeExecuting            = 501
	CodeFailed               = 502
	CodeSuccessful           = 503
)

// Operation is a cloud operation name.
type Operation string

// Cloud operations handled by the mapper.
const (
	OpRestart            Operation = "c8y_Restart"
	OpSoftwareUpdate     Operation = "c8y_SoftwareUpdate"
	OpLogfileRequest     Operation = "c8y_LogfileRequest"
	OpUploadConfigFile   Operation = "c8y_UploadConfigFile"
	OpDownloadConfigFile Operation = "c8y_DownloadConfigFile"
	OpFirmware           Operation = "c8y_Firmware"
)

func (o Operation) String() string {
	return string(o)
}

// SoftwareModule is one entry of a software list record.
type SoftwareModule struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Type    string `json:"type,omitempty"`
	URL     string `json:"url,omitempty"`
}

// SetExecuting returns the record moving op to EXECUTING.
func SetExecuting(op Operation) string {
	return record(CodeExecuting, string(op))
}

// Succeed returns the record moving op to SUCCESSFUL with optional parameters.
func Succeed(op Operation, params ...string) string {
	return record(CodeSuccessful, append([]string{string(op)}, params...)...)
}

// Fail returns the record moving op to FAILED with a human-readable reason.
func Fail(op Operation, reason string) string {
	return record(CodeFailed, string(op), reason)
}

// SupportedOperations returns the capability announcement for a device.
// Names are sorted so repeated announcements are identical.
func SupportedOperations(ops []string) string {
	return record(CodeSupportedOperations, sorted(ops)...)
}

// SupportedConfigTypes returns the config type value list.
func SupportedConfigTypes(types []string) string {
	return record(CodeSupportedConfigTypes, sorted(types)...)
}

// SupportedLogTypes returns the log type value list.
func SupportedLogTypes(types []string) string {
	return record(CodeSupportedLogTypes, sorted(types)...)
}

// FirmwareInfo returns the installed firmware record.
func FirmwareInfo(name, version, url string) string {
	return record(CodeFirmware, name, version, url)
}

// ChildDevice returns the child device registration record.
func ChildDevice(externalID, name, deviceType string) string {
	return record(CodeChildDevice, externalID, name, deviceType)
}

// Service returns the service registration record.
func Service(externalID, serviceType, name, status string) string {
	return record(CodeService, externalID, serviceType, name, status)
}

// SoftwareList returns the advanced software list record.
func SoftwareList(modules []SoftwareModule) string {
	fields := make([]string, 0, len(modules)*4)
	for _, m := range modules {
		fields = append(fields, m.Name, m.Version, m.Type, m.URL)
	}
	return record(CodeSoftwareList, fields...)
}

// record encodes one CSV line without the trailing newline.
func record(code int, fields ...string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// Writing to a strings.Builder cannot fail.
	_ = w.Write(append([]string{strconv.Itoa(code)}, fields...)) //nolint:errcheck // in-memory writer
	w.Flush()
	return strings.TrimSuffix(sb.String(), "\n")
}

func sorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}
