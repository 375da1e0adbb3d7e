package operations

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/mqtt"
)

func payloads(msgs []mqtt.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.PayloadString()
	}
	return out
}

func TestHandleOperation_Restart(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
		clear   bool
	}{
		{"executing", `{"status":"executing"}`, []string{"501,c8y_Restart"}, false},
		{"successful", `{"status":"successful"}`, []string{"503,c8y_Restart"}, true},
		{"failed", `{"status":"failed","reason":"reboot refused"}`, []string{"502,c8y_Restart,reboot refused"}, true},
		{"init ignored", `{"status":"init"}`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(nil)
			msg := env.run(KindRestart, mainSnap, "c8y-mapper-1", tt.payload)

			if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, tt.want) {
				t.Errorf("cloud records = %q, want %q", got, tt.want)
			}

			cleared := false
			for _, m := range env.publisher.published() {
				if m.Topic == msg.Topic && m.IsClear() {
					cleared = true
				}
			}
			if cleared != tt.clear {
				t.Errorf("cleared = %v, want %v", cleared, tt.clear)
			}
		})
	}
}

func TestHandleOperation_ClearFollowsStatus(t *testing.T) {
	env := newTestEnv(nil)
	msg := env.run(KindRestart, mainSnap, "c8y-mapper-1", `{"status":"successful"}`)

	got := env.publisher.published()
	if len(got) != 2 {
		t.Fatalf("published %d messages, want 2", len(got))
	}
	if got[0].Topic != "c8y/s/us" || got[1].Topic != msg.Topic || !got[1].IsClear() {
		t.Errorf("order = [%s %s], want status then clear", got[0].Topic, got[1].Topic)
	}
}

func TestHandleOperation_HealthAndCustomAreNoops(t *testing.T) {
	env := newTestEnv(nil)

	env.run(KindHealth, mainSnap, "1", `{"status":"successful"}`)
	env.run(ParseKind("vendor_reboot_sequence"), mainSnap, "2", `{"status":"successful"}`)

	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages, want 0", len(got))
	}
	want := []string{"health:noop", "vendor_reboot_sequence:noop"}
	if got := env.recorder.all(); !slices.Equal(got, want) {
		t.Errorf("recorded = %v, want %v", got, want)
	}
}

func TestHandleOperation_InvalidPayloadPublishesNothing(t *testing.T) {
	env := newTestEnv(nil)

	env.run(KindRestart, mainSnap, "c8y-mapper-1", `not json`)
	env.run(KindRestart, mainSnap, "c8y-mapper-2", `{"reason":"no status"}`)

	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages, want 0", len(got))
	}
	if got := env.recorder.all(); !slices.Equal(got, []string{"restart:error", "restart:error"}) {
		t.Errorf("recorded = %v", got)
	}
}

func TestHandleOperation_SoftwareUpdateRequestsList(t *testing.T) {
	env := newTestEnv(nil)
	msg := env.run(KindSoftwareUpdate, childSnap, "c8y-mapper-7", `{"status":"successful"}`)

	got := env.publisher.published()
	if len(got) != 3 {
		t.Fatalf("published %d messages, want 3", len(got))
	}
	if got[0].Topic != childSnap.PublishTopic || got[0].PayloadString() != "503,c8y_SoftwareUpdate" {
		t.Errorf("status = %s %q", got[0].Topic, got[0].PayloadString())
	}
	if got[1].Topic != msg.Topic || !got[1].IsClear() {
		t.Errorf("second message is not the clear: %s", got[1].Topic)
	}

	req := got[2]
	prefix := "te/device/child1///cmd/software_list/"
	if !strings.HasPrefix(req.Topic, prefix) {
		t.Fatalf("software list request topic = %q", req.Topic)
	}
	if id := strings.TrimPrefix(req.Topic, prefix); !env.handler.IDs().IsGenerated(id) {
		t.Errorf("request id %q not minted by the mapper", id)
	}
	if !req.Retain || req.PayloadString() != `{"status":"init"}` {
		t.Errorf("request = retain %v %q", req.Retain, req.PayloadString())
	}
}

const softwareListPayload = `{"status":"successful","currentSoftwareList":[
	{"type":"apt","modules":[{"name":"nginx","version":"1.24"},{"name":"collectd","version":"5.12"}]},
	{"type":"docker","modules":[{"name":"registry","version":"2"}]}]}`

func TestHandleOperation_SoftwareListAdvanced(t *testing.T) {
	env := newTestEnv(nil)
	env.run(KindSoftwareList, mainSnap, "c8y-mapper-3", softwareListPayload)

	want := []string{"140,nginx,1.24,apt,,collectd,5.12,apt,,registry,2,docker,"}
	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, want) {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestHandleOperation_SoftwareListLegacy(t *testing.T) {
	env := newTestEnv(func(o *Options) { o.SoftwareAPI = config.SoftwareAPILegacy })
	env.run(KindSoftwareList, mainSnap, "c8y-mapper-3", softwareListPayload)

	if got := env.publisher.onTopic("c8y/s/us"); len(got) != 0 {
		t.Errorf("legacy mode published SmartREST records: %q", got)
	}
	if len(env.cloud.softwareList) != 3 {
		t.Errorf("inventory update carried %d modules, want 3", len(env.cloud.softwareList))
	}
	if got := env.publisher.published(); len(got) != 1 || !got[0].IsClear() {
		t.Errorf("expected only the clear message, got %d", len(got))
	}
}

func TestHandleOperation_SoftwareListLegacyFailure(t *testing.T) {
	env := newTestEnv(func(o *Options) { o.SoftwareAPI = config.SoftwareAPILegacy })
	env.cloud.softwareErr = errors.New("proxy down")
	env.run(KindSoftwareList, mainSnap, "c8y-mapper-3", softwareListPayload)

	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages after proxy error, want 0", len(got))
	}
}

func TestHandleOperation_LogUpload(t *testing.T) {
	env := newTestEnv(nil)
	payload := `{"status":"successful","type":"mosquitto","tedgeUrl":"http://127.0.0.1:8000/te/v1/files/gw/log_upload/mosquitto-c8y-mapper-4"}`
	env.run(KindLogUpload, mainSnap, "c8y-mapper-4", payload)

	if len(env.cloud.events) != 1 || env.cloud.events[0].Type != "mosquitto" || env.cloud.events[0].ExternalID != "gw" {
		t.Fatalf("events = %+v", env.cloud.events)
	}
	if len(env.uploader.requests) != 1 {
		t.Fatalf("uploads = %d, want 1", len(env.uploader.requests))
	}
	up := env.uploader.requests[0]
	if up.URL != "http://cloud/event/events/1/binaries" || up.SourceURL != "http://127.0.0.1:8000/te/v1/files/gw/log_upload/mosquitto-c8y-mapper-4" {
		t.Errorf("upload request = %+v", up)
	}

	want := []string{"503,c8y_LogfileRequest,http://cloud/event/events/1/binaries"}
	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, want) {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestHandleOperation_ConfigSnapshotUploadFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.uploader.err = errors.New("connection reset")
	payload := `{"status":"successful","type":"tedge.toml","tedgeUrl":"http://127.0.0.1:8000/te/v1/files/gw/config_snapshot/tedge.toml-c8y-mapper-5"}`
	msg := env.run(KindConfigSnapshot, mainSnap, "c8y-mapper-5", payload)

	want := []string{"502,c8y_UploadConfigFile,Upload failed with connection reset"}
	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, want) {
		t.Errorf("records = %q, want %q", got, want)
	}
	if got := env.publisher.onTopic(msg.Topic); len(got) != 1 || got[0] != "" {
		t.Errorf("local command not cleared: %q", got)
	}
}

func TestHandleOperation_EventFailurePublishesNothing(t *testing.T) {
	env := newTestEnv(nil)
	env.cloud.eventErr = errors.New("proxy unavailable")
	payload := `{"status":"successful","type":"mosquitto","tedgeUrl":"http://x/f"}`
	env.run(KindLogUpload, mainSnap, "c8y-mapper-6", payload)

	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages, want 0", len(got))
	}
	if len(env.uploader.requests) != 0 {
		t.Error("uploaded without an event")
	}
}

func TestHandleOperation_ConfigUpdateCachesDownload(t *testing.T) {
	env := newTestEnv(nil)
	payload := `{"status":"init","type":"tedge.toml","remoteUrl":"https://cloud/inventory/binaries/9"}`
	msg := env.run(KindConfigUpdate, childSnap, "c8y-mapper-8", payload)

	if len(env.downloader.requests) != 1 {
		t.Fatalf("downloads = %d, want 1", len(env.downloader.requests))
	}
	wantPath := "/var/graymapper/file-transfer/gw:device:child1/config_update/c8y-mapper-8"
	if got := env.downloader.requests[0].Path; got != wantPath {
		t.Errorf("download path = %q, want %q", got, wantPath)
	}

	got := env.publisher.published()
	if len(got) != 1 || got[0].Topic != msg.Topic || !got[0].Retain {
		t.Fatalf("republished = %+v", got)
	}
	body := got[0].PayloadString()
	for _, want := range []string{
		`"tedgeUrl":"http://127.0.0.1:8000/te/v1/files/gw:device:child1/config_update/c8y-mapper-8"`,
		`"type":"tedge.toml"`,
		`"remoteUrl":"https://cloud/inventory/binaries/9"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("republished command %s missing %s", body, want)
		}
	}
}

func TestHandleOperation_ConfigUpdateDownloadFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.downloader.err = errors.New("404 Not Found")
	payload := `{"status":"init","type":"tedge.toml","remoteUrl":"https://cloud/inventory/binaries/9"}`
	msg := env.run(KindConfigUpdate, mainSnap, "c8y-mapper-8", payload)

	want := []string{"502,c8y_DownloadConfigFile,Download failed with 404 Not Found"}
	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, want) {
		t.Errorf("records = %q, want %q", got, want)
	}
	if got := env.publisher.onTopic(msg.Topic); len(got) != 1 || got[0] != "" {
		t.Errorf("local command not cleared: %q", got)
	}
}

func TestHandleOperation_ConfigUpdateInitWithLocalURLIgnored(t *testing.T) {
	env := newTestEnv(nil)
	payload := `{"status":"init","remoteUrl":"https://cloud/b/9","tedgeUrl":"http://127.0.0.1:8000/te/v1/files/x"}`
	env.run(KindConfigUpdate, mainSnap, "c8y-mapper-8", payload)

	if len(env.downloader.requests) != 0 || len(env.publisher.published()) != 0 {
		t.Error("already cached command handled again")
	}
}

func TestHandleOperation_FirmwareUpdateSuccess(t *testing.T) {
	env := newTestEnv(nil)
	payload := `{"status":"successful","name":"core-image","version":"1.2.0","remoteUrl":"https://cloud/fw/1"}`
	env.run(KindFirmwareUpdate, mainSnap, "c8y-mapper-9", payload)

	want := []string{"115,core-image,1.2.0,https://cloud/fw/1", "503,c8y_Firmware"}
	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, want) {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestHandleOperation_LogUploadedBeforePublish(t *testing.T) {
	env := newTestEnv(nil)
	env.logs.content["/var/log/agent/workflow-restart-c8y-mapper-10.log"] = "rebooting\n"
	payload := `{"status":"failed","reason":"timeout","logPath":"/var/log/agent/workflow-restart-c8y-mapper-10.log"}`
	env.run(KindRestart, mainSnap, "c8y-mapper-10", payload)

	events := env.tl.snapshot()
	want := []string{
		"event restart_op_log",
		"upload http://cloud/event/events/1/binaries",
		"publish c8y/s/us",
		"publish te/device/main///cmd/restart/c8y-mapper-10",
	}
	if !slices.Equal(events, want) {
		t.Errorf("timeline = %q, want %q", events, want)
	}
	if env.uploader.bodies[0] != "rebooting\n" {
		t.Errorf("uploaded log = %q", env.uploader.bodies[0])
	}
}

func TestHandleOperation_LogUploadFailureStillPublishes(t *testing.T) {
	env := newTestEnv(func(o *Options) { o.AutoLogUpload = config.AutoLogUploadAlways })
	env.logs.content["/logs/op.log"] = "done\n"
	env.uploader.err = errors.New("quota exceeded")
	env.run(KindRestart, mainSnap, "c8y-mapper-11", `{"status":"successful","logPath":"/logs/op.log"}`)

	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, []string{"503,c8y_Restart"}) {
		t.Errorf("records = %q", got)
	}
}

func TestHandleOperation_LogUploadPolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		status     string
		wantUpload bool
	}{
		{"always uploads success", config.AutoLogUploadAlways, "successful", true},
		{"on-failure skips success", config.AutoLogUploadOnFailure, "successful", false},
		{"on-failure uploads failure", config.AutoLogUploadOnFailure, "failed", true},
		{"never skips failure", config.AutoLogUploadNever, "failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(func(o *Options) { o.AutoLogUpload = tt.policy })
			env.logs.content["/logs/op.log"] = "x"
			env.run(KindRestart, mainSnap, "c8y-mapper-12", fmt.Sprintf(`{"status":%q,"logPath":"/logs/op.log"}`, tt.status))

			if got := len(env.uploader.requests) == 1; got != tt.wantUpload {
				t.Errorf("uploaded = %v, want %v", got, tt.wantUpload)
			}
			if got := len(env.publisher.published()); got != 2 {
				t.Errorf("published %d messages, want 2", got)
			}
		})
	}
}

func TestHandleOperation_Timeout(t *testing.T) {
	env := newTestEnv(func(o *Options) { o.Timeout = 50 * time.Millisecond })
	env.cloud.block = true
	env.run(KindLogUpload, mainSnap, "c8y-mapper-13", `{"status":"successful","type":"t","tedgeUrl":"http://x/f"}`)

	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages, want 0", len(got))
	}
	if got := env.recorder.all(); !slices.Equal(got, []string{"log_upload:elapsed"}) {
		t.Errorf("recorded = %v", got)
	}
}

func TestHandleOperation_AbandonedRoutineTracked(t *testing.T) {
	env := newTestEnv(func(o *Options) { o.Timeout = 20 * time.Millisecond })
	env.cloud.hold = make(chan struct{})

	env.run(KindLogUpload, mainSnap, "c8y-mapper-16", `{"status":"successful","type":"t","tedgeUrl":"http://x/f"}`)

	if got := env.handler.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d after Wait", got)
	}
	if got := env.handler.Abandoned(); got != 1 {
		t.Fatalf("Abandoned() = %d, want 1", got)
	}
	if got := env.recorder.all(); !slices.Equal(got, []string{"log_upload:elapsed"}) {
		t.Errorf("recorded = %v", got)
	}

	close(env.cloud.hold)
	deadline := time.Now().Add(2 * time.Second)
	for env.handler.Abandoned() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned routine never reported its return")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("late routine published %d messages", len(got))
	}
}

func TestHandleOperation_PanicIsolated(t *testing.T) {
	env := newTestEnv(nil)
	env.cloud.panicOnEvent = true

	env.run(KindLogUpload, mainSnap, "c8y-mapper-14", `{"status":"successful","type":"t","tedgeUrl":"http://x/f"}`)
	env.run(KindRestart, mainSnap, "c8y-mapper-15", `{"status":"executing"}`)

	if got := env.publisher.onTopic("c8y/s/us"); !slices.Equal(got, []string{"501,c8y_Restart"}) {
		t.Errorf("records = %q, want only the restart", got)
	}
	if got := env.recorder.all(); got[0] != "log_upload:error" {
		t.Errorf("recorded = %v", got)
	}
}

func TestHandleOperation_PublishFailureStopsResult(t *testing.T) {
	env := newTestEnv(nil)
	env.publisher.err = errors.New("not connected")
	env.run(KindRestart, mainSnap, "c8y-mapper-16", `{"status":"successful"}`)

	env.publisher.err = nil
	if got := env.publisher.published(); len(got) != 0 {
		t.Errorf("published %d messages after a failed publish", len(got))
	}
}

func TestHandleOperation_ConcurrentIsolation(t *testing.T) {
	env := newTestEnv(nil)
	env.uploader.delay = 20 * time.Millisecond

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmdID := fmt.Sprintf("c8y-mapper-%d", i)
			if i%5 == 0 {
				// Missing tedgeUrl: the routine errors.
				env.handler.HandleOperation(KindConfigSnapshot, mainSnap, cmdID,
					command(mainSnap, KindConfigSnapshot, cmdID, `{"status":"successful","type":"t"}`))
				return
			}
			env.handler.HandleOperation(KindLogUpload, childSnap, cmdID,
				command(childSnap, KindLogUpload, cmdID, `{"status":"successful","type":"t","tedgeUrl":"http://x/`+cmdID+`"}`))
		}(i)
	}
	wg.Wait()
	env.handler.Wait()

	if got := env.handler.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d after Wait", got)
	}

	// Each upload targets its own event binary, which names the status
	// record of the operation that made it.
	binaryURLs := make(map[string]string)
	env.uploader.mu.Lock()
	for _, req := range env.uploader.requests {
		binaryURLs[req.SourceURL] = req.URL
	}
	env.uploader.mu.Unlock()

	published := env.publisher.published()
	statuses := 0
	for i := 0; i < n; i++ {
		if i%5 == 0 {
			continue
		}
		cmdID := fmt.Sprintf("c8y-mapper-%d", i)
		binaryURL, ok := binaryURLs["http://x/"+cmdID]
		if !ok {
			t.Errorf("operation %d never uploaded", i)
			continue
		}
		status := "503,c8y_LogfileRequest," + binaryURL
		statusAt := slices.IndexFunc(published, func(m mqtt.Message) bool {
			return m.Topic == childSnap.PublishTopic && m.PayloadString() == status
		})
		cmdTopic := command(childSnap, KindLogUpload, cmdID, "").Topic
		clearAt := slices.IndexFunc(published, func(m mqtt.Message) bool { return m.Topic == cmdTopic })
		switch {
		case statusAt < 0:
			t.Errorf("operation %d never published %q", i, status)
		case clearAt < 0:
			t.Errorf("operation %d never cleared", i)
		case statusAt > clearAt:
			t.Errorf("operation %d cleared at %d before its status at %d", i, clearAt, statusAt)
		}
		statuses++
	}
	if got := len(env.publisher.onTopic(childSnap.PublishTopic)); got != statuses {
		t.Errorf("child status records = %d, want %d", got, statuses)
	}
	if got := env.publisher.onTopic("c8y/s/us"); len(got) != 0 {
		t.Errorf("failed operations published %q", got)
	}
}

func TestHandleOperation_DoesNotBlockCaller(t *testing.T) {
	env := newTestEnv(nil)
	env.cloud.block = true
	env.handler.timeout = time.Second

	start := time.Now()
	for i := 0; i < 10; i++ {
		cmdID := fmt.Sprintf("c8y-mapper-%d", i)
		env.handler.HandleOperation(KindLogUpload, mainSnap, cmdID,
			command(mainSnap, KindLogUpload, cmdID, `{"status":"successful","type":"t","tedgeUrl":"http://x/f"}`))
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("HandleOperation blocked the caller for %v", elapsed)
	}
	if got := env.handler.InFlight(); got != 10 {
		t.Errorf("InFlight() = %d, want 10", got)
	}
	env.handler.Wait()
}

func TestResult_IsLogBearing(t *testing.T) {
	cmd := &Command{Status: StatusFailed, LogPath: "/l"}
	msg := mqtt.NewStringMessage("t", "x")

	if !newResult(cmd, msg).IsLogBearing() {
		t.Error("terminal command with log path not log-bearing")
	}
	if newResult(cmd).IsLogBearing() {
		t.Error("empty result is log-bearing")
	}
	if newResult(&Command{Status: StatusExecuting, LogPath: "/l"}, msg).IsLogBearing() {
		t.Error("executing command is log-bearing")
	}
	if newResult(&Command{Status: StatusSuccessful}, msg).IsLogBearing() {
		t.Error("command without log path is log-bearing")
	}
}
