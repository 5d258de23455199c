package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deepp5/catrack/internal/adapters/http/api"
	"github.com/deepp5/catrack/internal/bootstrap"
	"github.com/deepp5/catrack/internal/config"
	"github.com/deepp5/catrack/internal/domain/types"
	"github.com/deepp5/catrack/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := strings.Join([]string{
		"db_path: " + filepath.Join(dir, "catrack.db"),
		"storage_dir: " + filepath.Join(dir, "media"),
		`ffmpeg_path: ""`,
		"worker_count: 2",
		"",
	}, "\n")
	path := filepath.Join(dir, "catrack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(args ...string) (string, string, error) {
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSoundctl(t *testing.T) {
	convey.Convey("Given a config with local storage and SQLite", t, func() {
		cfgPath := writeTestConfig(t)
		base := []string{"--config", cfgPath, "--machine", "cat-320"}
		run := func(args ...string) (string, error) {
			out, _, err := runCLI(append(append([]string(nil), args...), base...)...)
			return out, err
		}

		convey.Convey("Commands without --machine fail", func() {
			_, _, err := runCLI("--config", cfgPath, "rebuild")
			convey.So(err, convey.ShouldEqual, errMachineRequired)
		})

		convey.Convey("A missing config file fails before running", func() {
			_, _, err := runCLI("--config", filepath.Join(t.TempDir(), "nope.yaml"), "--machine", "m", "baseline")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("baseline before any rebuild reports not found", func() {
			_, err := run("baseline")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "baseline not found")
		})

		convey.Convey("synth, rebuild, check and assessments work end to end", func() {
			out, err := run("synth", "--good", "4", "--bad", "2", "--duration", "500ms", "--json")
			convey.So(err, convey.ShouldBeNil)
			var clips []synthClip
			convey.So(json.Unmarshal([]byte(out), &clips), convey.ShouldBeNil)
			convey.So(len(clips), convey.ShouldEqual, 6)
			convey.So(clips[0].Label, convey.ShouldEqual, "good")
			convey.So(clips[5].Label, convey.ShouldEqual, "bad")
			convey.So(clips[0].Path, convey.ShouldEqual, "cat-320/idle/good-0.wav")

			out, err = run("rebuild", "--json")
			convey.So(err, convey.ShouldBeNil)
			var res types.RebuildResult
			convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
			convey.So(res.NumGood, convey.ShouldEqual, 4)
			convey.So(res.NumBad, convey.ShouldEqual, 2)
			convey.So(res.Mode, convey.ShouldEqual, "idle")

			out, err = run("rebuild")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "Threshold")

			out, err = run("check", "--media", clips[5].MediaID, "--json")
			convey.So(err, convey.ShouldBeNil)
			var check types.CheckResult
			convey.So(json.Unmarshal([]byte(out), &check), convey.ShouldBeNil)
			convey.So(check.MediaID, convey.ShouldEqual, clips[5].MediaID)
			convey.So(check.PredictedLabel, convey.ShouldEqual, "bad")

			out, err = run("baseline")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "cat-320")

			out, err = run("assessments", "--limit", "5")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, clips[5].MediaID)

			convey.Convey("probe scores the same clips over HTTP", func() {
				cfg, err := config.LoadFile(context.Background(), cfgPath)
				convey.So(err, convey.ShouldBeNil)
				rt, err := bootstrap.Open(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = rt.Close() }()

				mux := http.NewServeMux()
				api.NewServer(rt.Service, rt.Service).Register(context.Background(), mux)
				srv := httptest.NewServer(mux)
				defer srv.Close()

				out, err := run("probe", "--url", srv.URL, "--json",
					"--media", clips[0].MediaID, "--media", clips[5].MediaID, "--media", "missing")
				convey.So(err, convey.ShouldBeNil)
				var summary probeSummaryJSON
				convey.So(json.Unmarshal([]byte(out), &summary), convey.ShouldBeNil)
				convey.So(summary.Submitted, convey.ShouldEqual, 3)
				convey.So(summary.Failed, convey.ShouldEqual, 1)
				convey.So(summary.Results[1].PredictedLabel, convey.ShouldEqual, "bad")
				convey.So(summary.Results[2].Error, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("check requires --media", func() {
			_, err := run("check")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestServerURL(t *testing.T) {
	convey.Convey("Listen addresses become dialable URLs", t, func() {
		convey.So(serverURL(":9080"), convey.ShouldEqual, "http://localhost:9080")
		convey.So(serverURL("10.0.0.2:80"), convey.ShouldEqual, "http://10.0.0.2:80")
	})
}
