package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"bodytrack/pkg/protocol"
	"bodytrack/pkg/transport"
)

func frame(t *testing.T, codec protocol.Codec, payload string) []byte {
	t.Helper()
	b, err := protocol.EncodeFrame(codec, []byte(payload))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return b
}

func channelHandler(out chan<- string) protocol.Handler {
	return func(payload []byte) error {
		out <- string(payload)
		return nil
	}
}

func readPayload(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for payload")
		return ""
	}
}

func readEvent(t *testing.T, l *transport.Listener, kind transport.EventKind) transport.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-l.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s event", kind)
			return transport.Event{}
		}
	}
}

func TestListenerDeliversSplitFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 4)
	l, err := transport.StartListener(ctx, "127.0.0.1:0", channelHandler(out),
		transport.WithDecoderOptions(protocol.WithCodec(protocol.Base64Codec{})),
	)
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	first := frame(t, protocol.Base64Codec{}, "first")
	second := frame(t, protocol.Base64Codec{}, "second")

	if _, err := conn.Write(first[:5]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := conn.Write(append(first[5:], second...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if got := readPayload(t, out); got != "first" {
		t.Fatalf("unexpected first payload: %q", got)
	}
	if got := readPayload(t, out); got != "second" {
		t.Fatalf("unexpected second payload: %q", got)
	}
	readEvent(t, l, transport.EventConnected)
	if !l.Connected() {
		t.Fatalf("expected listener to report a connection")
	}
}

func TestListenerAcceptsNextConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 4)
	l, err := transport.StartListener(ctx, "127.0.0.1:0", channelHandler(out))
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}

	for _, payload := range []string{"one", "two"} {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		if _, err := conn.Write(frame(t, protocol.RawCodec{}, payload)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if got := readPayload(t, out); got != payload {
			t.Fatalf("unexpected payload: %q", got)
		}
		_ = conn.Close()

		ev := readEvent(t, l, transport.EventDisconnected)
		if ev.Err != nil {
			t.Fatalf("clean close reported error: %v", ev.Err)
		}
		if ev.Stats.Frames != 1 {
			t.Fatalf("unexpected connection stats: %+v", ev.Stats)
		}
	}
}

func TestListenerReadTimeoutEndsConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	l, err := transport.StartListener(ctx, "127.0.0.1:0", nil,
		transport.WithReadTimeout(50*time.Millisecond),
		transport.WithErrorHandler(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	ev := readEvent(t, l, transport.EventDisconnected)
	if ev.Err == nil {
		t.Fatalf("expected timeout error on disconnect")
	}
	select {
	case <-errs:
	case <-time.After(time.Second):
		t.Fatalf("error handler not called")
	}
	if l.Connected() {
		t.Fatalf("listener still reports a connection")
	}
}

func TestListenerDialMode(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 4)
	_, err = transport.StartListener(ctx, ln.Addr().String(), channelHandler(out),
		transport.WithMode(transport.ModeDial),
		transport.WithReconnectInterval(10*time.Millisecond),
		transport.WithDialTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	defer conn.Close()

	stream := append([]byte{0x7F}, frame(t, protocol.RawCodec{}, "dialed")...)
	if _, err := conn.Write(stream); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := readPayload(t, out); got != "dialed" {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestListenerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	l, err := transport.StartListener(ctx, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	readEvent(t, l, transport.EventConnected)

	cancel()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not stop")
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected server side to close the connection")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := transport.ParseMode(""); err != nil || m != transport.ModeListen {
		t.Fatalf("unexpected default mode: %v %v", m, err)
	}
	if m, err := transport.ParseMode("dial"); err != nil || m != transport.ModeDial {
		t.Fatalf("unexpected dial mode: %v %v", m, err)
	}
	if _, err := transport.ParseMode("udp"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
