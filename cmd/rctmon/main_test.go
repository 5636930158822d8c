package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestRunWithNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Fatalf("expected unknown-command message, got %q", stderr.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"help"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Fatalf("expected usage text on stdout, got %q", stdout.String())
	}
}

func TestCatalogListsSampleEntries(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"catalog"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "battery.soc") {
		t.Fatalf("expected battery.soc in catalog output, got %q", stdout.String())
	}
}

func TestCatalogRejectsBadPath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"catalog", "-catalog", "/does/not/exist.toml"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestDecodeReadsFrameFromStdinCapableFile(t *testing.T) {
	path := writeFixture(t, scenario2Bytes)

	var stdout, stderr bytes.Buffer
	code := run([]string{"decode", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("code = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "battery.soc") {
		t.Fatalf("expected decoded record naming battery.soc, got %q", stdout.String())
	}
}

func writeFixture(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/frame.bin"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writeFixture: %v", err)
	}
	return path
}

// scenario2Bytes is a RESPONSE frame for battery.soc (0x959930BF) carrying
// the FLOAT payload 0x3E97B191 (~0.2961), used across this package's tests
// as a known-good fixture.
var scenario2Bytes = []byte{0x2B, 0x05, 0x08, 0x95, 0x99, 0x30, 0xBF, 0x3E, 0x97, 0xB1, 0x91, 0x9C, 0x86}
