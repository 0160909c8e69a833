package replication

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPropagateAdvancesBytesSent(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	rep := reg.Add(serverSide)
	require.Equal(t, 1, reg.Count())

	frame := []byte("*1\r\n$4\r\nPING\r\n")
	done := make(chan struct{})
	go func() {
		reg.Propagate(frame)
		close(done)
	}()

	buf := make([]byte, len(frame))
	_, err := clientSide.Read(buf)
	require.NoError(t, err)
	<-done

	require.Equal(t, int64(len(frame)), rep.BytesSent())
}

func TestRecordAckUnblocksWait(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	rep := reg.Add(serverSide)

	// Drain the GETACK frame Wait will send, then ack immediately.
	go func() {
		buf := make([]byte, 256)
		clientSide.Read(buf)
		reg.RecordAck(rep.ID, 0)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	acked := reg.Wait(ctx, 1, time.Second, true, []byte("GETACK"))
	require.Equal(t, 1, acked)
}

func TestWaitShortCircuitsWithNoPendingWrites(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	serverSide, _ := net.Pipe()
	defer serverSide.Close()
	reg.Add(serverSide)

	acked := reg.Wait(context.Background(), 1, time.Second, false, []byte("GETACK"))
	require.Equal(t, 1, acked)
}

func TestWaitNoReplicasReturnsZero(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	acked := reg.Wait(context.Background(), 1, time.Second, true, []byte("GETACK"))
	require.Equal(t, 0, acked)
}

func TestRemove(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	serverSide, _ := net.Pipe()
	defer serverSide.Close()
	rep := reg.Add(serverSide)
	require.Equal(t, 1, reg.Count())
	reg.Remove(rep)
	require.Equal(t, 0, reg.Count())
}
