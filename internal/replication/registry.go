// Package replication implements the master-side replica registry and
// propagator, and the replica-side client loop.
package replication

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Replica is one master-side replica connection, carrying the byte counter
// the WAIT algorithm reads.
type Replica struct {
	ID              string
	conn            net.Conn
	ListeningPort   int
	replicatedBytes int64
	ackOffset       int64

	mu sync.Mutex
}

// BytesSent reports how many bytes have been written to this replica so
// far (replicated_bytes).
func (r *Replica) BytesSent() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replicatedBytes
}

func (r *Replica) addBytesSent(n int) {
	r.mu.Lock()
	r.replicatedBytes += int64(n)
	r.mu.Unlock()
}

func (r *Replica) recordAck(offset int64) {
	r.mu.Lock()
	if offset > r.ackOffset {
		r.ackOffset = offset
	}
	r.mu.Unlock()
}

func (r *Replica) ackedAtLeast(offset int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ackOffset >= offset
}

// Registry is the master-side list of connected replicas.
type Registry struct {
	mu       sync.Mutex
	replicas map[string]*Replica
	logger   zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{replicas: make(map[string]*Replica), logger: logger}
}

// Add registers a freshly-promoted connection as a replica (post-PSYNC).
func (r *Registry) Add(conn net.Conn) *Replica {
	rep := &Replica{ID: uuid.NewString(), conn: conn}
	r.mu.Lock()
	r.replicas[rep.ID] = rep
	r.mu.Unlock()
	return rep
}

// Remove drops a replica, e.g. on connection close.
func (r *Registry) Remove(rep *Replica) {
	r.mu.Lock()
	delete(r.replicas, rep.ID)
	r.mu.Unlock()
}

// Count returns the number of connected replicas.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

func (r *Registry) snapshot() []*Replica {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Replica, 0, len(r.replicas))
	for _, rep := range r.replicas {
		out = append(out, rep)
	}
	return out
}

// Propagate writes frame to every connected replica and advances each
// replica's replicated_bytes by exactly len(frame). A send failure is
// logged and that replica is reaped; propagation continues to the others.
func (r *Registry) Propagate(frame []byte) {
	for _, rep := range r.snapshot() {
		if err := writeAll(rep.conn, frame); err != nil {
			r.logger.Warn().Err(err).Str("replica", rep.ID).Msg("replica write failed, reaping")
			r.Remove(rep)
			continue
		}
		rep.addBytesSent(len(frame))
	}
}

func writeAll(conn net.Conn, b []byte) error {
	_, err := conn.Write(b)
	return err
}

// RecordAck records the offset of a REPLCONF ACK frame read from a
// replica's connection. The connection handler that reads from a promoted
// replica socket calls this with the parsed offset.
func (r *Registry) RecordAck(replicaID string, offset int64) {
	r.mu.Lock()
	rep := r.replicas[replicaID]
	r.mu.Unlock()
	if rep != nil {
		rep.recordAck(offset)
	}
}

// Wait implements the WAIT command's algorithm: snapshot each
// replica's current offset as "expected", send GETACK to each in
// parallel, and count how many ack at or past their own snapshotted
// offset within timeout.
func (r *Registry) Wait(ctx context.Context, numReplicas int, timeout time.Duration, pendingWrites bool, getackFrame []byte) int {
	replicas := r.snapshot()
	if len(replicas) == 0 {
		return 0
	}
	if !pendingWrites {
		return len(replicas)
	}

	expected := make(map[string]int64, len(replicas))
	for _, rep := range replicas {
		expected[rep.ID] = rep.BytesSent()
	}

	var wg sync.WaitGroup
	for _, rep := range replicas {
		wg.Add(1)
		go func(rep *Replica) {
			defer wg.Done()
			if err := writeAll(rep.conn, getackFrame); err != nil {
				r.logger.Warn().Err(err).Str("replica", rep.ID).Msg("GETACK write failed, reaping")
				r.Remove(rep)
			}
		}(rep)
	}
	wg.Wait()

	deadline := time.Now().Add(timeout)
	for {
		acked := 0
		for _, rep := range replicas {
			if rep.ackedAtLeast(expected[rep.ID]) {
				acked++
			}
		}
		if acked >= numReplicas || time.Now().After(deadline) {
			return acked
		}
		select {
		case <-ctx.Done():
			return acked
		case <-time.After(10 * time.Millisecond):
		}
	}
}
