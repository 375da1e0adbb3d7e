package operations

import "github.com/nerrad567/gray-logic-mapper/internal/smartrest"

// Kind is the operation named in a command topic.
//
// The set is closed: any name not listed below is a custom operation.
type Kind string

// Operation kinds.
const (
	KindHealth         Kind = "health"
	KindRestart        Kind = "restart"
	KindSoftwareList   Kind = "software_list"
	KindSoftwareUpdate Kind = "software_update"
	KindLogUpload      Kind = "log_upload"
	KindConfigSnapshot Kind = "config_snapshot"
	KindConfigUpdate   Kind = "config_update"
	KindFirmwareUpdate Kind = "firmware_update"
)

// ParseKind returns the kind for an operation name.
func ParseKind(name string) Kind {
	return Kind(name)
}

func (k Kind) String() string {
	return string(k)
}

// IsCustom reports whether k is a vendor-defined operation.
func (k Kind) IsCustom() bool {
	switch k {
	case KindHealth, KindRestart, KindSoftwareList, KindSoftwareUpdate,
		KindLogUpload, KindConfigSnapshot, KindConfigUpdate, KindFirmwareUpdate:
		return false
	}
	return true
}

// CloudOperation returns the cloud operation announced for k.
// Health, software_list and custom operations have none.
func (k Kind) CloudOperation() (smartrest.Operation, bool) {
	switch k {
	case KindRestart:
		return smartrest.OpRestart, true
	case KindSoftwareUpdate:
		return smartrest.OpSoftwareUpdate, true
	case KindLogUpload:
		return smartrest.OpLogfileRequest, true
	case KindConfigSnapshot:
		return smartrest.OpUploadConfigFile, true
	case KindConfigUpdate:
		return smartrest.OpDownloadConfigFile, true
	case KindFirmwareUpdate:
		return smartrest.OpFirmware, true
	}
	return "", false
}

// HasValueList reports whether capability metadata of k carries a types list.
func (k Kind) HasValueList() bool {
	switch k {
	case KindLogUpload, KindConfigSnapshot, KindConfigUpdate:
		return true
	}
	return false
}
