package replication

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/kvnode/internal/resp"
)

type recordingApplier struct {
	applied [][]string
}

func (r *recordingApplier) ApplyReplicated(args []string) {
	r.applied = append(r.applied, args)
}

func TestClientHandshakeAndStream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()
		reader := bufio.NewReader(conn)

		expectFrame(t, reader, "PING")
		conn.Write(resp.Encode(resp.SimpleString("PONG")))

		expectFrame(t, reader, "REPLCONF", "listening-port", "6380")
		conn.Write(resp.Encode(resp.SimpleString("OK")))

		expectFrame(t, reader, "REPLCONF", "capa", "psync2")
		conn.Write(resp.Encode(resp.SimpleString("OK")))

		expectFrame(t, reader, "PSYNC", "?", "-1")
		conn.Write([]byte("+FULLRESYNC abc123 0\r\n$0\r\n"))

		conn.Write(resp.Encode(resp.ArrayFromStrings("SET", "foo", "bar")))
	}()

	applier := &recordingApplier{}
	client := NewClient(ln.Addr().String(), 6380, applier, zerolog.Nop())

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run() }()

	require.Eventually(t, func() bool {
		return len(applier.applied) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"SET", "foo", "bar"}, applier.applied[0])
	<-serverDone
}

func TestClientRepliesToGetAck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ackCh := make(chan []string, 1)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()
		reader := bufio.NewReader(conn)

		expectFrame(t, reader, "PING")
		conn.Write(resp.Encode(resp.SimpleString("PONG")))

		expectFrame(t, reader, "REPLCONF", "listening-port", "6381")
		conn.Write(resp.Encode(resp.SimpleString("OK")))

		expectFrame(t, reader, "REPLCONF", "capa", "psync2")
		conn.Write(resp.Encode(resp.SimpleString("OK")))

		expectFrame(t, reader, "PSYNC", "?", "-1")
		conn.Write([]byte("+FULLRESYNC abc123 0\r\n$0\r\n"))

		conn.Write(resp.Encode(resp.ArrayFromStrings("REPLCONF", "GETACK", "*")))

		v, _, err := readOneFrame(reader)
		require.NoError(t, err)
		args, err := v.Strings()
		require.NoError(t, err)
		ackCh <- args
	}()

	applier := &recordingApplier{}
	client := NewClient(ln.Addr().String(), 6381, applier, zerolog.Nop())
	go client.Run()

	select {
	case args := <-ackCh:
		require.Equal(t, []string{"REPLCONF", "ACK"}, args[:2])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for REPLCONF ACK reply")
	}
	<-serverDone
}

func expectFrame(t *testing.T, reader *bufio.Reader, want ...string) {
	t.Helper()
	v, _, err := readOneFrame(reader)
	require.NoError(t, err)
	args, err := v.Strings()
	require.NoError(t, err)
	require.Equal(t, want, args)
}

// readOneFrame reads exactly one RESP array frame from a bufio.Reader by
// growing a local buffer until resp.Read stops reporting ErrIncomplete.
func readOneFrame(reader *bufio.Reader) (resp.Value, int, error) {
	var pending []byte
	chunk := make([]byte, 4096)
	for {
		v, n, err := resp.Read(pending)
		if err == resp.ErrIncomplete {
			read, rerr := reader.Read(chunk)
			if rerr != nil {
				return resp.Value{}, 0, rerr
			}
			pending = append(pending, chunk[:read]...)
			continue
		}
		return v, n, err
	}
}
