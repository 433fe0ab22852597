package cli

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/blockberries/blocksim/example/statusmessage"
	simgrpc "github.com/blockberries/blocksim/grpc"
	"github.com/blockberries/blocksim/local"
	"github.com/blockberries/blocksim/types"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func startServe(t *testing.T, interval time.Duration) (string, *local.Connection, context.CancelFunc, <-chan error) {
	t.Helper()
	conn, _, _, err := local.Open(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveListener(ctx, conn, lis, interval, log15.New()) }()
	t.Cleanup(cancel)
	return lis.Addr().String(), conn, cancel, done
}

func TestServe_RemoteOperator(t *testing.T) {
	addr, _, cancel, done := startServe(t, 0)
	ctx := context.Background()

	op, closeConn, err := connect(ctx, &RootOptions{Addr: addr}, nil)
	require.NoError(t, err)
	defer closeConn()

	res, err := op.Deploy(ctx, "root", "status.root", statusmessage.Code, types.Tokens(10))
	requireSuccess(t, res, err)
	res, err = op.Call(ctx, "root", "status.root", "set_status", statusmessage.SetStatusArgs("remote"), statusmessage.Gas, 0)
	requireSuccess(t, res, err)

	view, err := op.View(ctx, "status.root", "get_status", statusmessage.GetStatusArgs("root"))
	require.NoError(t, err)
	got, ok, err := statusmessage.DecodeStatus(view.Result)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "remote", got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_BlockInterval(t *testing.T) {
	addr, conn, _, _ := startServe(t, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := simgrpc.Dial(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		h, err := client.CurrentBlock(ctx)
		return err == nil && h.Height >= 4
	}, 5*time.Second, 10*time.Millisecond)

	h, err := conn.CurrentBlock(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h.Height, types.BlockHeight(4))
}
