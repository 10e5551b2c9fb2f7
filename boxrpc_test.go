package boxrpc_test

import (
	"context"
	"testing"
	"time"

	. "github.com/sandia-minimega/boxrpc"
	_ "github.com/sandia-minimega/boxrpc/internal/transport" // registers loopback
	"github.com/sandia-minimega/boxrpc/pkg/object"
)

func TestConnectCallSync(t *testing.T) {
	serverCtx := NewContext()
	serverCtx.RegisterMethod("double", "doubles an integer", nil, func(cookie *Cookie, args *object.Object) *object.Object {
		return object.NewInt64(2 * object.GetInt64(args))
	})

	ctx := context.Background()
	srv, err := Listen(ctx, "loopback://boxrpc-public-api", serverCtx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	client, err := Connect(ctx, "loopback://boxrpc-public-api", nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	arg := object.NewInt64(21)
	defer object.Release(arg)

	result := client.CallSync("double", arg, 2*time.Second)
	defer object.Release(result)

	if got := object.GetInt64(result); got != 42 {
		t.Fatalf("double(21) = %d, want 42", got)
	}
}
