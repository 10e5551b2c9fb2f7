package transport_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/sandia-minimega/boxrpc/internal/transport"
)

func TestUnixSendReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sock := filepath.Join(t.TempDir(), "boxrpc.sock")

	ln, err := Listen(ctx, "unix://"+sock)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverErrs := make(chan error, 1)
	var serverConn Conn
	go func() {
		c, err := ln.Accept(ctx)
		serverConn = c
		serverErrs <- err
	}()

	client, err := Dial(ctx, "unix://"+sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := <-serverErrs; err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer serverConn.Close()

	if err := client.Send(Frame{Payload: []byte("ping")}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	f, err := serverConn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(f.Payload) != "ping" {
		t.Fatalf("Receive payload = %q, want ping", f.Payload)
	}
}
