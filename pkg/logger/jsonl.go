// Package logger writes decoded frames as newline-delimited JSON.
package logger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ratitude/pkg/engine"
	"ratitude/pkg/protocol"
)

// JSONLWriter writes one JSON object per line for every frame it
// consumes from an engine.Hub subscription.
type JSONLWriter struct {
	enc      *json.Encoder
	registry *protocol.Registry // optional; nil means ids are logged numerically only
}

type jsonRecord struct {
	TS         string `json:"ts"`
	Command    string `json:"command"`
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	PayloadHex string `json:"payload_hex"`
	Value      any    `json:"value,omitempty"`
	DecodeErr  string `json:"decode_error,omitempty"`
}

// NewJSONLWriter constructs a writer. registry may be nil, in which
// case records carry only the numeric OID, no resolved name or decoded
// value.
func NewJSONLWriter(w io.Writer, registry *protocol.Registry) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc, registry: registry}
}

// Consume reads events from in until it's closed or ctx is canceled,
// writing one JSON record per event.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-in:
			if !ok {
				return
			}
			_ = j.WriteEvent(evt)
		}
	}
}

// WriteEvent writes a single record for evt, outside of the channel-fed
// Consume loop: used by one-shot decoders reading a captured byte stream.
func (j *JSONLWriter) WriteEvent(evt engine.Event) error {
	return j.enc.Encode(j.record(evt))
}

func (j *JSONLWriter) record(evt engine.Event) jsonRecord {
	rec := jsonRecord{
		TS:         evt.At.UTC().Format(time.RFC3339Nano),
		Command:    evt.Frame.Command.String(),
		ID:         fmt.Sprintf("0x%08X", evt.Frame.ID),
		PayloadHex: hex.EncodeToString(evt.Frame.Data),
	}
	if evt.Frame.Address != 0 {
		rec.Address = fmt.Sprintf("0x%08X", evt.Frame.Address)
	}
	if j.registry == nil {
		return rec
	}
	info, err := j.registry.GetByID(evt.Frame.ID)
	if err != nil {
		return rec
	}
	rec.Name = info.Name
	value, err := protocol.DecodeValue(info.ResponseDataType, evt.Frame.Data)
	if err != nil {
		rec.DecodeErr = err.Error()
		return rec
	}
	rec.Value = value
	return rec
}
