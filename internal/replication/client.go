package replication

import (
	"bufio"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kvnode/internal/resp"
)

// Applier is the dispatcher's replicated-command entry point: mutate the
// local keyspace silently, with no RESP reply written back.
type Applier interface {
	ApplyReplicated(args []string)
}

// Client is the replica-side outbound connection to an upstream master. It
// performs the handshake, then consumes framed commands forever, tracking
// its own byte offset.
type Client struct {
	masterAddr string
	listenPort int
	applier    Applier
	logger     zerolog.Logger

	offset int64 // read via Offset
}

func NewClient(masterAddr string, listenPort int, applier Applier, logger zerolog.Logger) *Client {
	return &Client{masterAddr: masterAddr, listenPort: listenPort, applier: applier, logger: logger}
}

// Offset returns the replica's current running byte offset.
func (c *Client) Offset() int64 { return c.offset }

// Run performs the handshake and then loops forever consuming replicated
// frames, until conn is closed or an unrecoverable error occurs. Intended
// to run in its own goroutine for the life of the process, spawned before
// the accept loop starts when --replicaof is set.
func (c *Client) Run() error {
	conn, err := net.Dial("tcp", c.masterAddr)
	if err != nil {
		return fmt.Errorf("dial master: %w", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if err := c.handshake(conn, reader); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	c.logger.Info().Str("master", c.masterAddr).Msg("replica handshake complete, streaming")
	return c.streamLoop(conn, reader)
}

func (c *Client) handshake(conn net.Conn, reader *bufio.Reader) error {
	if err := sendAndExpect(conn, reader, resp.ArrayFromStrings("PING"), "PONG"); err != nil {
		return err
	}
	port := fmt.Sprintf("%d", c.listenPort)
	if err := sendAndExpectOK(conn, reader, resp.ArrayFromStrings("REPLCONF", "listening-port", port)); err != nil {
		return err
	}
	if err := sendAndExpectOK(conn, reader, resp.ArrayFromStrings("REPLCONF", "capa", "psync2")); err != nil {
		return err
	}

	if _, err := conn.Write(resp.Encode(resp.ArrayFromStrings("PSYNC", "?", "-1"))); err != nil {
		return err
	}
	line, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("read FULLRESYNC: %w", err)
	}
	if len(line) == 0 || line[0] != '+' {
		return fmt.Errorf("unexpected PSYNC reply: %q", line)
	}

	// The RDB bulk that follows has no trailing CRLF: parse the
	// "$<len>\r\n" header with the bufio reader, then read exactly len
	// raw bytes, not an ordinary bulk string.
	lengthLine, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("read RDB header: %w", err)
	}
	length, _, err := resp.ReadBulkHeader([]byte(lengthLine + "\r\n"))
	if err != nil {
		return fmt.Errorf("parse RDB header: %w", err)
	}
	if _, err := readExact(reader, int(length)); err != nil {
		return fmt.Errorf("read RDB payload: %w", err)
	}
	return nil
}

// readLine reads up to and including "\r\n" and returns the line without
// it (used only for the handshake's line-oriented replies/headers).
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

func readExact(r *bufio.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func sendAndExpect(conn net.Conn, reader *bufio.Reader, v resp.Value, want string) error {
	if _, err := conn.Write(resp.Encode(v)); err != nil {
		return err
	}
	line, err := readLine(reader)
	if err != nil {
		return err
	}
	if line != "+"+want {
		return fmt.Errorf("expected +%s, got %q", want, line)
	}
	return nil
}

func sendAndExpectOK(conn net.Conn, reader *bufio.Reader, v resp.Value) error {
	return sendAndExpect(conn, reader, v, "OK")
}

// streamLoop consumes framed commands forever, advancing offset by the
// exact encoded length of each frame.
func (c *Client) streamLoop(conn net.Conn, reader *bufio.Reader) error {
	var pending []byte
	chunk := make([]byte, 64*1024)

	for {
		v, n, err := resp.Read(pending)
		if err == resp.ErrIncomplete {
			read, rerr := reader.Read(chunk)
			if rerr != nil {
				return rerr
			}
			pending = append(pending, chunk[:read]...)
			continue
		}
		if err != nil {
			return fmt.Errorf("frame decode: %w", err)
		}

		args, _ := v.Strings()
		c.applyFrame(conn, args, n)
		pending = pending[n:]
	}
}

func (c *Client) applyFrame(conn net.Conn, args []string, frameLen int) {
	if len(args) >= 2 && upper(args[0]) == "REPLCONF" && upper(args[1]) == "GETACK" {
		// Reply with the offset BEFORE this frame counts, then advance.
		ack := resp.ArrayFromStrings("REPLCONF", "ACK", fmt.Sprintf("%d", c.offset))
		conn.Write(resp.Encode(ack))
		c.offset += int64(frameLen)
		return
	}
	if len(args) >= 1 {
		c.applier.ApplyReplicated(args)
	}
	c.offset += int64(frameLen)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
