// Package transport owns the per-connection goroutine: framing inbound
// RESP commands off the socket, driving them through the dispatcher, and
// multiplexing outbound pub/sub pushes against the same connection. It also
// handles a connection's promotion into a replica socket after PSYNC.
package transport

import (
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kvnode/internal/command"
	"github.com/adred-codev/kvnode/internal/limits"
	"github.com/adred-codev/kvnode/internal/resp"
)

// Server owns the listening socket and the per-connection state every
// accepted connection is handed.
type Server struct {
	rt         *command.Runtime
	dispatcher *command.Dispatcher
	logger     zerolog.Logger
	nextID     atomic.Int64

	// CommandsPerSec/Burst configure the per-connection admission limiter;
	// zero disables rate limiting entirely.
	CommandsPerSec float64
	Burst          int

	// OnCommand, if set, is called once per successfully dispatched
	// command name, for the metrics counter.
	OnCommand func(name string)
}

func NewServer(rt *command.Runtime, logger zerolog.Logger) *Server {
	return &Server{
		rt:         rt,
		dispatcher: command.NewDispatcher(rt),
		logger:     logger,
	}
}

// Serve accepts connections on ln forever, spawning one goroutine per
// connection. It returns only when ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

const mailboxSize = 64

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	id := s.nextID.Add(1)
	client := command.NewClientState(id, s.rt.Users, mailboxSize)
	ctx, cancel := contextForConn()
	client.Context = ctx
	defer cancel()

	var limiter *limits.CommandLimiter
	if s.CommandsPerSec > 0 {
		limiter = limits.NewCommandLimiter(s.CommandsPerSec, s.Burst)
	}

	done := make(chan struct{})
	go s.pumpMailbox(conn, client, done)
	defer close(done)

	s.readLoop(conn, client, limiter)

	s.rt.Channels.UnsubscribeAll(client.Mailbox)
}

// pumpMailbox writes every pub/sub push queued for client to the socket,
// until done is closed by the read loop on disconnect.
func (s *Server) pumpMailbox(conn net.Conn, client *command.ClientState, done <-chan struct{}) {
	for {
		select {
		case payload, ok := <-client.Mailbox:
			if !ok {
				return
			}
			if _, err := conn.Write(payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) readLoop(conn net.Conn, client *command.ClientState, limiter *limits.CommandLimiter) {
	var pending []byte
	chunk := make([]byte, 64*1024)

	for {
		v, n, err := resp.Read(pending)
		switch err {
		case nil:
			raw := append([]byte(nil), pending[:n]...)
			pending = pending[n:]

			args, aerr := v.Strings()
			if aerr != nil {
				return
			}
			if limiter != nil && !limiter.Allow() {
				conn.Write(resp.Encode(resp.Error("ERR command rate limit exceeded")))
				continue
			}

			reply, signal := s.dispatcher.Dispatch(client, args, raw)
			if _, werr := conn.Write(reply); werr != nil {
				return
			}
			if s.OnCommand != nil && len(args) > 0 {
				s.OnCommand(args[0])
			}

			switch signal {
			case command.SignalBecomeReplica:
				s.servePromotedReplica(conn, client, pending)
				return
			case command.SignalClose:
				return
			}

		case resp.ErrIncomplete:
			read, rerr := conn.Read(chunk)
			if rerr != nil {
				return
			}
			pending = append(pending, chunk[:read]...)

		default:
			return
		}
	}
}

// servePromotedReplica takes over a connection after PSYNC: the replica
// registry now owns outbound propagation (already written to by Dispatch's
// Propagate call and every future command this server processes), and this
// goroutine's only remaining job is reading REPLCONF ACK frames back off
// the same socket.
func (s *Server) servePromotedReplica(conn net.Conn, client *command.ClientState, leftover []byte) {
	rep := s.rt.Replicas.Add(conn)
	defer s.rt.Replicas.Remove(rep)

	pending := leftover
	chunk := make([]byte, 4096)
	for {
		v, n, err := resp.Read(pending)
		switch err {
		case nil:
			pending = pending[n:]
			args, aerr := v.Strings()
			if aerr == nil {
				applyReplicaAck(s.rt, rep.ID, args)
			}
		case resp.ErrIncomplete:
			read, rerr := conn.Read(chunk)
			if rerr != nil {
				return
			}
			pending = append(pending, chunk[:read]...)
		default:
			return
		}
	}
}

func applyReplicaAck(rt *command.Runtime, replicaID string, args []string) {
	if len(args) != 3 {
		return
	}
	if upper(args[0]) != "REPLCONF" || upper(args[1]) != "ACK" {
		return
	}
	offset, err := parseOffset(args[2])
	if err != nil {
		return
	}
	rt.Replicas.RecordAck(replicaID, offset)
}
