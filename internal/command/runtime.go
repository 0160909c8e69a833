// Package command implements the command dispatcher and the per-type
// operation modules it routes to.
package command

import (
	"crypto/rand"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kvnode/internal/auth"
	"github.com/adred-codev/kvnode/internal/blocking"
	"github.com/adred-codev/kvnode/internal/pubsub"
	"github.com/adred-codev/kvnode/internal/replication"
	"github.com/adred-codev/kvnode/internal/store"
)

// Role identifies whether this node is serving as master or replica.
type Role int

const (
	RoleMaster Role = iota
	RoleReplica
)

// Runtime is the ServerRuntime handle: an immutable ServerConfig plus the
// atomics/guarded fields that genuinely change at runtime, replacing
// process-wide environment variables with a handle passed explicitly.
type Runtime struct {
	Dir         string
	DBFilename  string
	Port        int
	ReplicaOf   string // "host port", empty if master

	Store        *store.Store
	ListWaiters  *blocking.ListWaiters
	StreamSignal *blocking.StreamSignal
	Channels     *pubsub.Registry
	Replicas     *replication.Registry
	Users        *auth.Users
	Logger       zerolog.Logger

	ReplicationID string
	role          atomic.Int32 // Role
	writesSince   atomic.Int64 // count of mutating commands applied, for WAIT's "pending writes?"
}

// NewRuntime builds a fresh ServerRuntime for either role.
func NewRuntime(dir, dbfilename string, port int, replicaOf string, logger zerolog.Logger) *Runtime {
	rt := &Runtime{
		Dir:           dir,
		DBFilename:    dbfilename,
		Port:          port,
		ReplicaOf:     replicaOf,
		Store:         store.New(),
		ListWaiters:   blocking.NewListWaiters(),
		StreamSignal:  blocking.NewStreamSignal(),
		Channels:      pubsub.NewRegistry(),
		Replicas:      replication.NewRegistry(logger),
		Users:         auth.NewUsers(),
		Logger:        logger,
		ReplicationID: randomReplID(),
	}
	if replicaOf != "" {
		rt.role.Store(int32(RoleReplica))
	} else {
		rt.role.Store(int32(RoleMaster))
	}
	return rt
}

func (rt *Runtime) Role() Role { return Role(rt.role.Load()) }

func (rt *Runtime) markWrite() { rt.writesSince.Add(1) }

// HasPendingWrites reports whether any mutation has been applied since the
// server started, for WAIT's short-circuit.
func (rt *Runtime) HasPendingWrites() bool { return rt.writesSince.Load() > 0 }

const replIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomReplID() string {
	raw := make([]byte, 40)
	rand.Read(raw)
	out := make([]byte, 40)
	for i, c := range raw {
		out[i] = replIDAlphabet[int(c)%len(replIDAlphabet)]
	}
	return string(out)
}
