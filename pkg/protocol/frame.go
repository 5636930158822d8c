package protocol

import "encoding/binary"

// Frame is the logical result of a successful receive: a validated
// (command, oid, address, payload) tuple (spec.md §3). address is 0
// unless command is plant.
type Frame struct {
	Command Command
	ID      uint32
	Address uint32
	Data    []byte
}

// BuildFrame produces the complete outbound byte sequence for command,
// targeting OID id, with an optional payload and an optional plant
// address (spec.md §4.D). hasAddress marks address as present; it is
// required iff command.IsPlant(). Setting hasAddress for a non-plant
// command is an error, as is leaving it unset for a plant command; address
// is ignored while hasAddress is false. command must not be
// CommandExtension.
func BuildFrame(command Command, id uint32, payload []byte, address uint32, hasAddress bool) ([]byte, error) {
	if command == CommandExtension || !command.IsValid() {
		return nil, &FrameBuildError{Reason: "command is not a valid builder input"}
	}
	if command.IsPlant() && !hasAddress {
		return nil, &FrameBuildError{Reason: "plant command requires an address"}
	}
	if !command.IsPlant() && hasAddress {
		return nil, &FrameBuildError{Reason: "non-plant command must not carry an address"}
	}

	length := 4 + len(payload)
	if command.IsPlant() {
		length += 4
	}

	long := command.IsLong()
	if !long && length > 0xFF {
		return nil, &FrameBuildError{Reason: "length exceeds 255 for a short-length command"}
	}
	if long && length > 0xFFFF {
		return nil, &FrameBuildError{Reason: "length exceeds 65535 for a long command"}
	}

	logical := make([]byte, 0, 1+2+4+4+len(payload)+2)
	logical = append(logical, byte(command))

	if long {
		lb := make([]byte, 2)
		binary.BigEndian.PutUint16(lb, uint16(length))
		logical = append(logical, lb...)
	} else {
		logical = append(logical, byte(length))
	}

	if command.IsPlant() {
		ab := make([]byte, 4)
		binary.BigEndian.PutUint32(ab, address)
		logical = append(logical, ab...)
	}

	idb := make([]byte, 4)
	binary.BigEndian.PutUint32(idb, id)
	logical = append(logical, idb...)
	logical = append(logical, payload...)

	crc := CRC16(logical)
	crcb := make([]byte, 2)
	binary.BigEndian.PutUint16(crcb, crc)
	logical = append(logical, crcb...)

	return escapeEncode(logical), nil
}

// receiveState is the ReceiveFrame state machine's current position.
type receiveState int

const (
	stateAwaitStart receiveState = iota
	stateAwaitCommand
	stateAwaitLength
	stateAwaitAddress
	stateAwaitOID
	stateAwaitPayload
	stateAwaitCRC
	stateComplete
	stateFailed
)

// ReceiveFrame incrementally parses one logical frame out of a byte
// stream (spec.md §4.E). It is sans-I/O: callers push bytes in with
// consume and read back the decoded fields via its accessors. Not safe
// for concurrent mutation; one instance per connection.
type ReceiveFrame struct {
	Permissive bool

	state   receiveState
	escaped bool

	command Command
	long    bool
	plant   bool

	lengthBytesNeeded int
	lengthBuf         []byte
	length            int

	addressBuf []byte
	address    uint32

	oidBuf []byte
	id     uint32

	payload     []byte
	payloadWant int

	crcBuf []byte

	logical []byte // command..payload, for CRC verification

	err        error
	crcMismatch bool
}

// NewReceiveFrame constructs an empty receiver awaiting a START token.
func NewReceiveFrame() *ReceiveFrame {
	return &ReceiveFrame{
		state:   stateAwaitStart,
		command: CommandNone,
	}
}

// Complete reports whether the frame has reached a terminal state,
// successfully or not. Once true, Consume accepts no further bytes.
func (r *ReceiveFrame) Complete() bool {
	return r.state == stateComplete || r.state == stateFailed
}

// Err returns the error that terminated the frame, if any. Nil while
// pending or after a successful (or permissive) completion.
func (r *ReceiveFrame) Err() error {
	return r.err
}

// CRCMismatch reports whether a completed frame's CRC failed to verify.
// Only meaningful once Complete() is true. It is set in both modes; without
// Permissive the mismatch is also reported as a terminal error by Err().
func (r *ReceiveFrame) CRCMismatch() bool {
	return r.crcMismatch
}

// GetCommand returns the command byte seen so far, or CommandNone if the
// state machine has not yet reached it.
func (r *ReceiveFrame) GetCommand() Command {
	return r.command
}

// ID returns the OID seen so far, or 0 if not yet decoded.
func (r *ReceiveFrame) ID() uint32 {
	return r.id
}

// Address returns the plant address, or 0 if the frame isn't plant or
// the address hasn't been decoded yet.
func (r *ReceiveFrame) Address() uint32 {
	return r.address
}

// Data returns the payload decoded so far. The slice is a borrowed view
// over the receiver's internal buffer; callers must copy it if they
// need it to outlive the receiver or a subsequent Consume call.
func (r *ReceiveFrame) Data() []byte {
	return r.payload
}

// Frame returns the completed logical frame. Only valid once Complete()
// is true and Err() (or a permissive CRC mismatch) allows it.
func (r *ReceiveFrame) Frame() Frame {
	return Frame{
		Command: r.command,
		ID:      r.id,
		Address: r.address,
		Data:    r.payload,
	}
}

// Consume feeds raw bytes (as seen on the wire, still escaped) into the
// state machine and returns how many were ingested. It always advances
// by at least one byte if input is non-empty and the frame isn't
// already terminal; once terminal, it consumes nothing further.
func (r *ReceiveFrame) Consume(data []byte) int {
	n := 0
	for n < len(data) {
		if r.Complete() {
			break
		}
		b := data[n]
		n++

		if r.state == stateAwaitStart {
			if b == StartToken {
				r.state = stateAwaitCommand
			}
			continue
		}

		// Inside a frame: unescape first.
		if r.escaped {
			r.escaped = false
		} else if b == EscapeToken {
			r.escaped = true
			continue
		} else if b == StartToken {
			// A bare, unescaped START mid-frame restarts framing; real
			// devices never emit one, but garbage input shouldn't wedge
			// the receiver forever.
			r.resetForRestart()
			continue
		}

		if err := r.step(b); err != nil {
			r.state = stateFailed
			r.err = withConsumed(err, n)
			break
		}
	}
	return n
}

// resetForRestart discards in-progress frame state and begins again as
// though a fresh START token had just been seen.
func (r *ReceiveFrame) resetForRestart() {
	r.state = stateAwaitCommand
	r.escaped = false
	r.command = CommandNone
	r.long = false
	r.plant = false
	r.lengthBuf = nil
	r.length = 0
	r.addressBuf = nil
	r.address = 0
	r.oidBuf = nil
	r.id = 0
	r.payload = nil
	r.payloadWant = 0
	r.crcBuf = nil
	r.logical = nil
}

// withConsumed annotates a terminal error with the number of raw bytes
// Consume ingested before it was raised, so the caller can resynchronize.
func withConsumed(err error, n int) error {
	switch e := err.(type) {
	case *InvalidCommandError:
		e.ConsumedBytes = n
	case *FrameLengthExceededError:
		e.ConsumedBytes = n
	case *CRCMismatchError:
		e.ConsumedBytes = n
	}
	return err
}

func (r *ReceiveFrame) step(b byte) error {
	switch r.state {
	case stateAwaitCommand:
		c := Command(b)
		if !c.IsValid() || c == CommandExtension {
			return &InvalidCommandError{Command: b}
		}
		r.command = c
		r.long = c.IsLong()
		r.plant = c.IsPlant()
		r.logical = append(r.logical, b)
		if r.long {
			r.lengthBytesNeeded = 2
		} else {
			r.lengthBytesNeeded = 1
		}
		r.state = stateAwaitLength

	case stateAwaitLength:
		r.lengthBuf = append(r.lengthBuf, b)
		r.logical = append(r.logical, b)
		if len(r.lengthBuf) < r.lengthBytesNeeded {
			return nil
		}
		if r.long {
			r.length = int(binary.BigEndian.Uint16(r.lengthBuf))
		} else {
			r.length = int(r.lengthBuf[0])
		}
		if r.plant {
			r.state = stateAwaitAddress
		} else {
			r.state = stateAwaitOID
		}

	case stateAwaitAddress:
		r.addressBuf = append(r.addressBuf, b)
		r.logical = append(r.logical, b)
		if len(r.addressBuf) < 4 {
			return nil
		}
		r.address = binary.BigEndian.Uint32(r.addressBuf)
		r.state = stateAwaitOID

	case stateAwaitOID:
		r.oidBuf = append(r.oidBuf, b)
		r.logical = append(r.logical, b)
		if len(r.oidBuf) < 4 {
			return nil
		}
		r.id = binary.BigEndian.Uint32(r.oidBuf)

		headerLen := 4
		if r.plant {
			headerLen += 4
		}
		r.payloadWant = r.length - headerLen
		if r.payloadWant < 0 {
			return &FrameLengthExceededError{Declared: r.length}
		}
		if r.payloadWant == 0 {
			r.state = stateAwaitCRC
		} else {
			r.state = stateAwaitPayload
		}

	case stateAwaitPayload:
		r.payload = append(r.payload, b)
		r.logical = append(r.logical, b)
		if len(r.payload) > r.payloadWant {
			return &FrameLengthExceededError{Declared: r.length}
		}
		if len(r.payload) == r.payloadWant {
			r.state = stateAwaitCRC
		}

	case stateAwaitCRC:
		r.crcBuf = append(r.crcBuf, b)
		if len(r.crcBuf) < 2 {
			return nil
		}
		received := binary.BigEndian.Uint16(r.crcBuf)
		calculated := CRC16(r.logical)
		if received != calculated {
			r.crcMismatch = true
			if !r.Permissive {
				return &CRCMismatchError{Received: received, Calculated: calculated}
			}
		}
		r.state = stateComplete
	}
	return nil
}
