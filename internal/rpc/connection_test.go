package rpc_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/sandia-minimega/boxrpc/internal/rpc"
	"github.com/sandia-minimega/boxrpc/internal/transport"
	"github.com/sandia-minimega/boxrpc/pkg/object"
)

func dialPair(t *testing.T, name string, serverCtx *Context) (*Connection, func()) {
	t.Helper()

	ctx := context.Background()
	srv := NewServer(serverCtx)
	if err := srv.Listen(ctx, "loopback://"+name); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	client, err := Dial(ctx, "loopback://"+name, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	cleanup := func() {
		client.Close()
		srv.Close()
	}
	return client, cleanup
}

func TestCallSyncRoundTrip(t *testing.T) {
	serverCtx := NewContext()
	serverCtx.RegisterMethod("echo", "echoes back its argument", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.Retain(args)
	})

	client, cleanup := dialPair(t, "echo-roundtrip", serverCtx)
	defer cleanup()

	arg := object.NewString("hello")
	defer object.Release(arg)

	result := client.CallSync("echo", arg, 2*time.Second)
	defer object.Release(result)

	if result.Type() == object.Error {
		t.Fatalf("echo returned an error: %s", object.Describe(result))
	}
	if object.GetString(result) != "hello" {
		t.Fatalf("echo returned %s, want hello", object.Describe(result))
	}
}

func TestCallSyncMethodNotFound(t *testing.T) {
	serverCtx := NewContext()

	client, cleanup := dialPair(t, "no-such-method", serverCtx)
	defer cleanup()

	result := client.CallSync("does-not-exist", nil, 2*time.Second)
	defer object.Release(result)

	if !object.IsKind(result, object.KindMethodNotFound) {
		t.Fatalf("expected a method-not-found Error, got %s", object.Describe(result))
	}
	extra := object.GetErrorExtra(result)
	if object.GetString(extra) != "does-not-exist" {
		t.Fatalf("error extra = %s, want the method name", object.Describe(extra))
	}
}

func TestCloseResolvesPendingCalls(t *testing.T) {
	serverCtx := NewContext()
	block := make(chan struct{})
	serverCtx.RegisterMethod("hang", "never responds until released", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		<-block
		return object.NewNull()
	})

	client, cleanup := dialPair(t, "hang-on-close", serverCtx)

	call, err := client.CallAsync("hang", nil)
	if err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	client.Close()

	status := call.Wait(2 * time.Second)
	if status != StatusError {
		t.Fatalf("status after Close = %v, want Error", status)
	}

	result := call.Result()
	desc := object.Describe(result)
	ok := object.IsKind(result, object.KindConnectionClosed)
	object.Release(result)

	// Unblock the still-running server-side handler before tearing the
	// server down, or Server.Close would wait forever on it.
	close(block)
	cleanup()

	if !ok {
		t.Fatalf("expected connection-closed Error, got %s", desc)
	}
}

func TestConcurrentCallsGetDistinctIDs(t *testing.T) {
	serverCtx := NewContext()
	serverCtx.RegisterMethod("noop", "", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.NewNull()
	})

	client, cleanup := dialPair(t, "distinct-ids", serverCtx)
	defer cleanup()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		call, err := client.CallAsync("noop", nil)
		if err != nil {
			t.Fatalf("CallAsync #%d: %v", i, err)
		}
		if seen[call.ID] {
			t.Fatalf("duplicate call id %s", call.ID)
		}
		seen[call.ID] = true
		call.Wait(2 * time.Second)
		r := call.Result()
		object.Release(r)
	}
}

func TestStreamingAbortMidStream(t *testing.T) {
	serverCtx := NewContext()
	handlerDone := make(chan struct{})
	serverCtx.RegisterMethod("count", "streams increasing integers until aborted", nil,
		func(cookie *Cookie, args *object.Object) *object.Object {
			defer close(handlerDone)
			for i := int64(0); ; i++ {
				if cookie.IsAborted() {
					return nil
				}
				v := object.NewInt64(i)
				cookie.Yield(v)
				object.Release(v)
			}
		})

	client, cleanup := dialPair(t, "count-stream", serverCtx)
	defer cleanup()

	call, err := client.CallAsync("count", nil)
	if err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	// Give the handler a moment to emit a few fragments, then abort.
	time.Sleep(50 * time.Millisecond)
	call.Abort()

	if status := call.Wait(2 * time.Second); status != StatusAborted {
		t.Fatalf("status after Abort = %v, want Aborted", status)
	}

	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server handler never observed the abort and returned")
	}

	// The connection must still be usable for subsequent calls.
	serverCtx.RegisterMethod("ping", "", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.NewString("pong")
	})
	result := client.CallSync("ping", nil, 2*time.Second)
	defer object.Release(result)
	if object.GetString(result) != "pong" {
		t.Fatalf("ping after abort returned %s, want pong", object.Describe(result))
	}
}

func TestCallSyncTimeoutDoesNotPoisonConnection(t *testing.T) {
	serverCtx := NewContext()
	release := make(chan struct{})
	serverCtx.RegisterMethod("slow", "responds only when released", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		<-release
		return object.NewNull()
	})
	serverCtx.RegisterMethod("hello", "", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.NewString("hello " + object.GetString(object.ArrayGet(args, 0)))
	})

	client, cleanup := dialPair(t, "slow-timeout", serverCtx)
	defer func() {
		close(release)
		cleanup()
	}()

	result := client.CallSync("slow", nil, 100*time.Millisecond)
	ok := object.IsKind(result, object.KindTimeout)
	desc := object.Describe(result)
	object.Release(result)
	if !ok {
		t.Fatalf("expected a timeout Error, got %s", desc)
	}

	// The connection must remain usable after a timed-out call.
	args := object.Pack("[s]", "x")
	defer object.Release(args)
	result = client.CallSync("hello", args, 2*time.Second)
	defer object.Release(result)
	if object.GetString(result) != "hello x" {
		t.Fatalf("call after timeout returned %s, want \"hello x\"", object.Describe(result))
	}
}

func TestConcurrentEchoCallers(t *testing.T) {
	serverCtx := NewContext()
	serverCtx.RegisterMethod("hello", "", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.NewString("hello " + object.GetString(object.ArrayGet(args, 0)))
	})

	client, cleanup := dialPair(t, "concurrent-echo", serverCtx)
	defer cleanup()

	const callers = 10
	const callsEach = 100

	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(caller int) {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				who := fmt.Sprintf("caller-%d-%d", caller, j)
				args := object.Pack("[s]", who)
				result := client.CallSync("hello", args, 5*time.Second)
				got := object.GetString(result)
				object.Release(args)
				object.Release(result)
				if got != "hello "+who {
					errs <- fmt.Errorf("caller %d call %d got %q", caller, j, got)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPeerDisconnectResolvesPendingCalls(t *testing.T) {
	serverCtx := NewContext()
	block := make(chan struct{})
	serverCtx.RegisterMethod("hang", "", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		<-block
		return object.NewNull()
	})

	ctx := context.Background()
	srv := NewServer(serverCtx)
	if err := srv.Listen(ctx, "loopback://peer-disconnect"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	// Cleanups run last-registered-first: the handlers must be unblocked
	// before Server.Close waits on them.
	t.Cleanup(func() { srv.Close() })
	t.Cleanup(func() { close(block) })

	client, err := Dial(ctx, "loopback://peer-disconnect", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	first, err := client.CallAsync("hang", nil)
	if err != nil {
		t.Fatalf("CallAsync: %v", err)
	}
	second, err := client.CallAsync("hang", nil)
	if err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	// The accept loop registers the Connection asynchronously; wait for it
	// to show up before tearing it down.
	deadline := time.Now().Add(2 * time.Second)
	for len(srv.Connections()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never registered the accepted connection")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Tear down the server side; the client must notice the dead transport
	// and resolve both pending calls within bounded time. Close blocks until
	// the hung handlers return, so run it off this goroutine -- the
	// underlying transport still closes immediately.
	for _, c := range srv.Connections() {
		go c.Close()
	}

	for i, call := range []*Call{first, second} {
		if status := call.Wait(2 * time.Second); status != StatusError {
			t.Fatalf("call %d status after peer disconnect = %v, want Error", i, status)
		}
		result := call.Result()
		ok := object.IsKind(result, object.KindConnectionClosed)
		desc := object.Describe(result)
		object.Release(result)
		if !ok {
			t.Fatalf("call %d expected connection-closed Error, got %s", i, desc)
		}
	}

	if state := client.State(); state != StateClosed && state != StateClosing {
		t.Fatalf("client state after peer disconnect = %v, want closed", state)
	}
}

func TestServerAcceptFuncRefusesConnection(t *testing.T) {
	ctx := context.Background()
	serverCtx := NewContext()
	srv := NewServer(serverCtx)
	srv.SetAcceptFunc(func(conn transport.Conn) bool { return false })

	if err := srv.Listen(ctx, "loopback://refuse-all"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	client, err := Dial(ctx, "loopback://refuse-all", nil)
	if err != nil {
		// Refusal may surface as a failed dial depending on timing; either
		// way no Connection reaches the server's active set.
		return
	}
	defer client.Close()

	result := client.CallSync("anything", nil, 500*time.Millisecond)
	defer object.Release(result)
	if result.Type() != object.Error {
		t.Fatalf("call on a refused connection succeeded: %s", object.Describe(result))
	}
	if got := len(srv.Connections()); got != 0 {
		t.Fatalf("server tracked %d connections, want 0", got)
	}
}

func ExampleConnection_CallSync() {
	serverCtx := NewContext()
	serverCtx.RegisterMethod("add", "adds two integers", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		var a, b int64
		object.Unpack(args, "[i,i]", &a, &b)
		return object.NewInt64(a + b)
	})

	ctx := context.Background()
	srv := NewServer(serverCtx)
	srv.Listen(ctx, "loopback://example-add")
	defer srv.Close()

	client, _ := Dial(ctx, "loopback://example-add", nil)
	defer client.Close()

	args := object.Pack("[i,i]", int64(2), int64(3))
	defer object.Release(args)

	result := client.CallSync("add", args, 2*time.Second)
	defer object.Release(result)

	fmt.Println(object.GetInt64(result))
	// Output: 5
}
