package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"ratitude/pkg/engine"
	"ratitude/pkg/protocol"
)

var scenario2Bytes = []byte{0x2B, 0x05, 0x08, 0x95, 0x99, 0x30, 0xBF, 0x3E, 0x97, 0xB1, 0x91, 0x9C, 0x86}

func TestListenerDecodesFrameFromConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write(scenario2Bytes)
		time.Sleep(200 * time.Millisecond)
	}()

	out := make(chan engine.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartListener(ctx, ln.Addr().String(), out, WithReadTimeout(50*time.Millisecond))

	select {
	case evt := <-out:
		if evt.Frame.ID != 0x959930BF {
			t.Fatalf("decoded id = 0x%08X, want 0x959930BF", evt.Frame.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for a decoded frame")
	}
}

func TestFeedResyncsAfterCorruptFrame(t *testing.T) {
	l := &Listener{now: time.Now}
	out := make(chan engine.Event, 2)
	l.out = out

	bad := append([]byte{}, scenario2Bytes...)
	bad[len(bad)-1] ^= 0xFF // corrupt CRC

	chunk := append(append([]byte{}, bad...), scenario2Bytes...)

	rf := protocol.NewReceiveFrame()
	rf = l.feed(context.Background(), rf, chunk)

	select {
	case evt := <-out:
		if evt.Frame.ID != 0x959930BF {
			t.Fatalf("decoded id = 0x%08X, want 0x959930BF", evt.Frame.ID)
		}
	default:
		t.Fatalf("expected the good frame after the corrupt one to be published")
	}
}
