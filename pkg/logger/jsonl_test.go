package logger_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ratitude/pkg/engine"
	"ratitude/pkg/logger"
	"ratitude/pkg/protocol"
)

func TestJSONLWriterWithoutRegistry(t *testing.T) {
	var buf bytes.Buffer
	w := logger.NewJSONLWriter(&buf, nil)

	ch := make(chan engine.Event, 1)
	ch <- engine.Event{
		Frame: protocol.Frame{Command: protocol.CommandResponse, ID: 0x959930BF, Data: []byte{0x3E, 0x97, 0xB1, 0x91}},
		At:    time.Unix(0, 0),
	}
	close(ch)

	w.Consume(context.Background(), ch)

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("Unmarshal: %v, line=%q", err, line)
	}
	if rec["id"] != "0x959930BF" {
		t.Fatalf("id = %v, want 0x959930BF", rec["id"])
	}
	if _, ok := rec["name"]; ok {
		t.Fatalf("expected no name field without a registry, got %v", rec["name"])
	}
}

func TestJSONLWriterWithRegistryDecodesValue(t *testing.T) {
	reg, err := protocol.NewRegistry([]protocol.ObjectInfo{
		{ObjectID: 0x959930BF, Name: "battery.soc", ResponseDataType: protocol.DataTypeFloat, RequestDataType: protocol.DataTypeFloat},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var buf bytes.Buffer
	w := logger.NewJSONLWriter(&buf, reg)

	ch := make(chan engine.Event, 1)
	ch <- engine.Event{
		Frame: protocol.Frame{Command: protocol.CommandResponse, ID: 0x959930BF, Data: []byte{0x3E, 0x97, 0xB1, 0x91}},
		At:    time.Unix(0, 0),
	}
	close(ch)

	w.Consume(context.Background(), ch)

	scanner := bufio.NewScanner(&buf)
	if !scanner.Scan() {
		t.Fatalf("expected one line of output")
	}
	var rec map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec["name"] != "battery.soc" {
		t.Fatalf("name = %v, want battery.soc", rec["name"])
	}
	if rec["value"] == nil {
		t.Fatalf("expected a decoded value")
	}
}

func TestJSONLWriterStopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	w := logger.NewJSONLWriter(&buf, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan engine.Event)
	done := make(chan struct{})
	go func() {
		w.Consume(ctx, ch)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Consume did not return after context cancellation")
	}
}
