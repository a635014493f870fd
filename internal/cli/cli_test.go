package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hansjm10/testsift/internal/report"
)

const sampleArtifact = `{
  "tests": [
    {"name": "TestAdd", "status": "passed", "duration_ms": 4},
    {"name": "TestSub", "status": "skipped"},
    {
      "name": "TestDiv",
      "status": "failed",
      "message": "Error: division by zero",
      "stack_trace": "Error: division by zero\n    at div (src/math.js:9:3)",
      "events": [
        {"level": "warn", "text": "denominator is zero"},
        {"level": "warn", "text": "denominator is zero"},
        {"level": "error", "text": "Error: division by zero"}
      ]
    }
  ]
}`

// pointConfigAway keeps user-level config files out of the test.
func pointConfigAway(t *testing.T) {
	t.Helper()
	old := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "absent.toml")
	t.Cleanup(func() { cfgFile = old })
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(sampleArtifact), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != Version {
		t.Errorf("version output = %q, want %q", got, Version)
	}
}

func TestReduceWritesReport(t *testing.T) {
	pointConfigAway(t)
	runPath := writeArtifact(t)
	outPath := filepath.Join(t.TempDir(), "report.json")

	var errBuf bytes.Buffer
	cmd := newReduceCmd()
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{runPath, "-o", outPath, "--quiet"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v\n%s", err, errBuf.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("report not valid JSON: %v", err)
	}
	if rep.Summary.Failed != 1 || rep.Summary.Passed != 1 || rep.Summary.Skipped != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(rep.Failures))
	}
	// Dedup is on by default; the repeated warn line collapses.
	for _, sec := range rep.Failures[0].Console {
		if sec.Category == "warn" {
			if strings.Count(sec.Content, "denominator is zero") != 1 {
				t.Errorf("warn section not collapsed: %q", sec.Content)
			}
			if !strings.Contains(sec.Content, "repeated 2 times") {
				t.Errorf("repeat annotation missing: %q", sec.Content)
			}
		}
	}
}

func TestReduceNoDedupKeepsRepeats(t *testing.T) {
	pointConfigAway(t)
	runPath := writeArtifact(t)
	outPath := filepath.Join(t.TempDir(), "report.json")

	cmd := newReduceCmd()
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{runPath, "-o", outPath, "--quiet", "--no-dedup"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, _ := os.ReadFile(outPath)
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatal(err)
	}
	for _, sec := range rep.Failures[0].Console {
		if sec.Category == "warn" && strings.Count(sec.Content, "denominator is zero") != 2 {
			t.Errorf("warn section = %q, want both occurrences", sec.Content)
		}
	}
}

func TestReduceYAMLFormat(t *testing.T) {
	pointConfigAway(t)
	runPath := writeArtifact(t)
	outPath := filepath.Join(t.TempDir(), "report.yaml")

	cmd := newReduceCmd()
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{runPath, "-o", outPath, "--quiet", "--format", "yaml"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "summary:") {
		t.Errorf("not YAML:\n%s", data)
	}
}

func TestReduceRejectsBadFormat(t *testing.T) {
	pointConfigAway(t)
	runPath := writeArtifact(t)

	cmd := newReduceCmd()
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{runPath, "--format", "xml"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("unknown format should fail validation")
	}
}

func TestReduceMissingArtifact(t *testing.T) {
	pointConfigAway(t)

	cmd := newReduceCmd()
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.json"), "--quiet"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("missing artifact should fail")
	}
}

func TestWatchRequiresOutput(t *testing.T) {
	pointConfigAway(t)
	runPath := writeArtifact(t)

	cmd := newWatchCmd()
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{runPath})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Fatalf("err = %v, want --output requirement", err)
	}
}

func TestViewPlain(t *testing.T) {
	rep := report.Report{
		Summary: report.RunSummary{Total: 2, Failed: 1, Passed: 1},
		Failures: []report.Failure{{
			Name:    "TestDiv",
			Message: "Error: division by zero",
			Console: []report.ConsoleSection{{Category: "error", Content: "boom"}},
		}},
	}
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newViewCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path, "--plain"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "TestDiv") || !strings.Contains(out.String(), "division by zero") {
		t.Errorf("plain view missing failure details:\n%s", out.String())
	}
}
