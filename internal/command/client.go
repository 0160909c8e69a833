package command

import (
	"context"

	"github.com/adred-codev/kvnode/internal/auth"
	"github.com/adred-codev/kvnode/internal/pubsub"
)

// queuedCommand is one frame accrued between MULTI and EXEC.
type queuedCommand struct {
	args []string
	raw  []byte
}

// ClientState is the per-connection state: auth flag, subscribed channels,
// transaction queue, and the mailbox pub/sub deliveries land in. BLPOP
// wakeups use a separate per-call mailbox from ListWaiters.
type ClientState struct {
	ID int64

	Auth auth.State

	Subscribed map[string]struct{}
	Mailbox    pubsub.Mailbox

	InTransaction bool
	Queued        []queuedCommand

	// IsReplica is set once this connection has been promoted via PSYNC;
	// the connection driver uses it to stop multiplexing inbound frames as
	// client commands.
	IsReplica bool

	// Context is canceled by the connection driver on disconnect, bounding
	// any in-flight blocking command (BLPOP, XREAD BLOCK).
	Context context.Context
}

// NewClientState builds the initial per-connection state: already
// authenticated as "default" unless that user has a password set.
func NewClientState(id int64, users *auth.Users, mailboxSize int) *ClientState {
	return &ClientState{
		ID:         id,
		Auth:       auth.Initial(users),
		Subscribed: make(map[string]struct{}),
		Mailbox:    make(pubsub.Mailbox, mailboxSize),
		Context:    context.Background(),
	}
}

func (c *ClientState) subscribedMode() bool { return len(c.Subscribed) > 0 }

func (c *ClientState) ctx() context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
