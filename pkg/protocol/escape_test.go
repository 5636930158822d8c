package protocol_test

import (
	"bytes"
	"testing"

	"ratitude/pkg/protocol"
)

func TestBuildFrameReadNoPayload(t *testing.T) {
	// Scenario 1 of spec.md §8.
	got, err := protocol.BuildFrame(protocol.CommandRead, 0x959930BF, nil, 0, false)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	want := []byte{0x2B, 0x01, 0x04, 0x95, 0x99, 0x30, 0xBF, 0x0D, 0x65}
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildFrame = % X, want % X", got, want)
	}
}

func TestEscapeRoundTripWrite(t *testing.T) {
	// Scenario 6 of spec.md §8: a WRITE with a STRING payload containing
	// literal '+' and '-' must escape both inside the payload region, and
	// a receiver must recover the original string.
	payload, err := protocol.EncodeValue(protocol.DataTypeString, "a+b-c")
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	built, err := protocol.BuildFrame(protocol.CommandWrite, 0x00000001, payload, 0, false)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	// The payload region must contain an escaped '+' and an escaped '-'.
	escapedPlus := []byte{protocol.EscapeToken, '+'}
	escapedMinus := []byte{protocol.EscapeToken, '-'}
	if !bytes.Contains(built, escapedPlus) {
		t.Fatalf("built frame % X does not contain escaped '+'", built)
	}
	if !bytes.Contains(built, escapedMinus) {
		t.Fatalf("built frame % X does not contain escaped '-'", built)
	}

	rf := protocol.NewReceiveFrame()
	n := rf.Consume(built)
	if n != len(built) {
		t.Fatalf("Consume ingested %d bytes, want %d", n, len(built))
	}
	if !rf.Complete() || rf.Err() != nil {
		t.Fatalf("expected a complete, error-free frame, got err=%v", rf.Err())
	}

	decoded, err := protocol.DecodeValue(protocol.DataTypeString, rf.Data())
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if decoded != "a+b-c" {
		t.Fatalf("decoded = %q, want %q", decoded, "a+b-c")
	}
}

func TestEscapeRoundTripArbitraryBytes(t *testing.T) {
	for i := 0; i < 256; i++ {
		logical := []byte{byte(i), 0x00, 0x2B, 0x2D, byte(i)}
		built, err := protocol.BuildFrame(protocol.CommandWrite, 0x1, logical, 0, false)
		if err != nil {
			continue // BuildFrame does not inspect payload bytes; only a length error could land here
		}
		rf := protocol.NewReceiveFrame()
		rf.Consume(built)
		if !rf.Complete() || rf.Err() != nil {
			t.Fatalf("byte 0x%02X: expected clean completion, got err=%v", i, rf.Err())
		}
	}
}
