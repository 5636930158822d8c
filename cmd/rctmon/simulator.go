package main

import (
	"context"
	"fmt"
	"io"
	"net"

	"ratitude/pkg/protocol"
)

// simulator answers READ requests from a Registry's sim_data and logs
// WRITE/LONG_WRITE requests without replying to them, so rctmon's other
// subcommands can be exercised without real hardware on the other end of
// the wire.
type simulator struct {
	listener *net.TCPListener
	registry *protocol.Registry
	log      io.Writer
}

func newSimulator(addr string, registry *protocol.Registry, log io.Writer) (*simulator, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}
	return &simulator{listener: ln, registry: registry, log: log}, nil
}

func (s *simulator) Addr() string {
	return s.listener.Addr().String()
}

// Run accepts connections until ctx is canceled, handling each on its
// own goroutine. It returns 0 on a clean shutdown.
func (s *simulator) Run(ctx context.Context) int {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return 0
			}
			fmt.Fprintln(s.log, "accept:", err)
			return 1
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *simulator) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	rf := protocol.NewReceiveFrame()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		chunk := buf[:n]
		for len(chunk) > 0 {
			consumed := rf.Consume(chunk)
			chunk = chunk[consumed:]
			if !rf.Complete() {
				if consumed == 0 {
					break
				}
				continue
			}
			if rf.Err() == nil {
				s.respond(conn, rf.Frame())
			}
			rf = protocol.NewReceiveFrame()
		}
	}
}

func (s *simulator) respond(conn net.Conn, frame protocol.Frame) {
	info, err := s.registry.GetByID(frame.ID)
	if err != nil {
		fmt.Fprintf(s.log, "unknown oid 0x%08X\n", frame.ID)
		return
	}

	switch {
	case frame.Command.IsReadLike():
		s.respondToRead(conn, frame, info)
	case frame.Command.IsWriteLike():
		value, err := protocol.DecodeValue(info.RequestDataType, frame.Data)
		if err != nil {
			fmt.Fprintf(s.log, "write %s: decode: %v\n", info.Name, err)
			return
		}
		fmt.Fprintf(s.log, "write  0x%08X %-40s -> %v\n", info.ObjectID, info.Name, value)
	}
}

func (s *simulator) respondToRead(conn net.Conn, frame protocol.Frame, info protocol.ObjectInfo) {
	payload, err := protocol.EncodeValue(info.ResponseDataType, info.SimData)
	if err != nil {
		fmt.Fprintf(s.log, "read %s: encode: %v\n", info.Name, err)
		return
	}

	// A response needs the long (2-byte length) framing whenever its
	// payload doesn't fit the short form, regardless of whether the
	// request itself was long — a plain READ of a TIMESERIES/EVENT_TABLE
	// object can still answer with more than 255 bytes.
	needsLong := len(payload)+4 > 0xFF
	responseCommand := protocol.CommandResponse
	switch {
	case frame.Command.IsPlant() && needsLong:
		responseCommand = protocol.CommandPlantLongResponse
	case frame.Command.IsPlant():
		responseCommand = protocol.CommandPlantResponse
	case needsLong:
		responseCommand = protocol.CommandLongResponse
	}

	out, err := protocol.BuildFrame(responseCommand, info.ObjectID, payload, frame.Address, frame.Command.IsPlant())
	if err != nil {
		fmt.Fprintf(s.log, "read %s: build: %v\n", info.Name, err)
		return
	}
	fmt.Fprintf(s.log, "read   0x%08X %-40s -> %v\n", info.ObjectID, info.Name, info.SimData)
	_, _ = conn.Write(out)
}
