package foxglove

const DefaultSchema = `{
  "type": "object",
  "properties": {
    "command": { "type": "string" },
    "id": { "type": "string" },
    "name": { "type": "string" },
    "ts": { "type": "string" },
    "payload_hex": { "type": "string" },
    "value": {},
    "decode_error": { "type": "string" }
  },
  "required": ["command", "id", "payload_hex"]
}`

const LogSchema = `{
  "type": "object",
  "properties": {
    "timestamp": { "type": "object" },
    "level": { "type": "integer" },
    "message": { "type": "string" },
    "name": { "type": "string" }
  },
  "required": ["timestamp", "level", "message"]
}`

// Config configures the telemetry-over-websocket bridge: one channel
// for every decoded frame, one for human-readable log lines derived
// from event-table entries.
type Config struct {
	WSAddr string
	Name   string

	Topic          string
	ChannelID      uint64
	SchemaName     string
	SchemaEncoding string
	Schema         string
	Encoding       string

	LogTopic          string
	LogChannelID      uint64
	LogSchemaName     string
	LogSchemaEncoding string
	LogSchema         string
	LogEncoding       string
	LogName           string

	SendBuf int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:         "127.0.0.1:8765",
		Name:           "rctmon",
		Topic:          "rctmon/frame",
		ChannelID:      1,
		SchemaName:     "rctmon.Frame",
		SchemaEncoding: "jsonschema",
		Schema:         DefaultSchema,
		Encoding:       "json",

		LogTopic:          "/rctmon/log",
		LogChannelID:      2,
		LogSchemaName:     "foxglove.Log",
		LogSchemaEncoding: "jsonschema",
		LogSchema:         LogSchema,
		LogEncoding:       "json",
		LogName:           "rctmon",

		SendBuf: 256,
	}
}
