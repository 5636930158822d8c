package protocol

// StartToken marks the beginning of a frame on the wire.
const StartToken byte = 0x2B // '+'

// EscapeToken, when it precedes StartToken or itself in the logical
// content, signals that the following byte is to be taken verbatim
// (spec.md §4.B).
const EscapeToken byte = 0x2D // '-'

// escapeAppend appends b to buf, preceded by EscapeToken if b is itself
// StartToken or EscapeToken. Used by the frame builder to turn logical
// content (command through CRC) into the transmitted byte stream; the
// leading StartToken is never escaped (it is prepended separately).
func escapeAppend(buf []byte, b byte) []byte {
	if b == StartToken || b == EscapeToken {
		buf = append(buf, EscapeToken)
	}
	return append(buf, b)
}

// escapeEncode returns logical (command..CRC) content with a leading
// StartToken and all reserved bytes escaped, ready to put on the wire.
func escapeEncode(logical []byte) []byte {
	out := make([]byte, 0, len(logical)+2)
	out = append(out, StartToken)
	for _, b := range logical {
		out = escapeAppend(out, b)
	}
	return out
}
