package smartrest

import (
	"errors"
	"testing"
)

func TestStatusRecords(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"executing", SetExecuting(OpRestart), "501,c8y_Restart"},
		{"successful", Succeed(OpSoftwareUpdate), "503,c8y_SoftwareUpdate"},
		{"successful with reference", Succeed(OpLogfileRequest, "http://c8y/event/events/1/binaries"), "503,c8y_LogfileRequest,http://c8y/event/events/1/binaries"},
		{"failed", Fail(OpFirmware, "device rejected image"), "502,c8y_Firmware,device rejected image"},
		{"failed reason with comma", Fail(OpRestart, "timeout, giving up"), `502,c8y_Restart,"timeout, giving up"`},
		{"failed reason with quotes", Fail(OpRestart, `bad "state"`), `502,c8y_Restart,"bad ""state"""`},
		{"failed empty reason", Fail(OpRestart, ""), "502,c8y_Restart,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCapabilityRecords(t *testing.T) {
	ops := []string{"c8y_UploadConfigFile", "c8y_DownloadConfigFile"}

	if got := SupportedOperations(ops); got != "114,c8y_DownloadConfigFile,c8y_UploadConfigFile" {
		t.Errorf("SupportedOperations() = %q", got)
	}
	if ops[0] != "c8y_UploadConfigFile" {
		t.Error("SupportedOperations() must not reorder the caller's slice")
	}

	if got := SupportedConfigTypes([]string{"typeC", "typeA", "typeB"}); got != "119,typeA,typeB,typeC" {
		t.Errorf("SupportedConfigTypes() = %q", got)
	}
	if got := SupportedLogTypes([]string{"software-management", "mosquitto"}); got != "118,mosquitto,software-management" {
		t.Errorf("SupportedLogTypes() = %q", got)
	}
	if got := SupportedOperations(nil); got != "114" {
		t.Errorf("SupportedOperations(nil) = %q", got)
	}
}

func TestInventoryRecords(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"firmware", FirmwareInfo("core-image", "1.2.0", "http://fw/core.bin"), "115,core-image,1.2.0,http://fw/core.bin"},
		{"child device", ChildDevice("test-device:device:child1", "child1", "thin-edge.io-child"), "101,test-device:device:child1,child1,thin-edge.io-child"},
		{"service", Service("test-device:device:main:service:collectd", "service", "collectd", "up"), "102,test-device:device:main:service:collectd,service,collectd,up"},
		{
			"software list",
			SoftwareList([]SoftwareModule{
				{Name: "nginx", Version: "1.24", Type: "apt"},
				{Name: "agent", Version: "2.0", Type: "docker", URL: "http://repo/agent"},
			}),
			"140,nginx,1.24,apt,,agent,2.0,docker,http://repo/agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	cause := errors.New("503 Service Unavailable")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"upload ok", TranslateUpload(nil, "http://c8y/binaries/1", OpUploadConfigFile), "503,c8y_UploadConfigFile,http://c8y/binaries/1"},
		{"upload ok no reference", TranslateUpload(nil, "", OpUploadConfigFile), "503,c8y_UploadConfigFile"},
		{"upload failed", TranslateUpload(cause, "http://c8y/binaries/1", OpLogfileRequest), "502,c8y_LogfileRequest,Upload failed with 503 Service Unavailable"},
		{"download ok", TranslateDownload(nil, "", OpDownloadConfigFile), "503,c8y_DownloadConfigFile"},
		{"download failed", TranslateDownload(cause, "", OpFirmware), "502,c8y_Firmware,Download failed with 503 Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
