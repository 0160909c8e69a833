package command

import (
	"fmt"
	"strings"

	"github.com/adred-codev/kvnode/internal/resp"
)

// Signal tells the connection driver what to do after Dispatch returns,
// beyond writing the reply.
type Signal int

const (
	SignalNone Signal = iota
	SignalBecomeReplica
	SignalClose
)

// subscribedModeWhitelist is the only command set accepted while a
// connection has active subscriptions.
var subscribedModeWhitelist = map[string]struct{}{
	"SUBSCRIBE": {}, "UNSUBSCRIBE": {}, "PSUBSCRIBE": {}, "PUNSUBSCRIBE": {},
	"PING": {}, "QUIT": {}, "RESET": {},
}

// Dispatcher routes inbound command frames to the per-type operation
// modules, enforcing the auth/subscribed-mode/transaction preconditions in
// order.
type Dispatcher struct {
	rt *Runtime
}

func NewDispatcher(rt *Runtime) *Dispatcher {
	return &Dispatcher{rt: rt}
}

// Dispatch applies the four dispatch preconditions in order and then
// executes (or queues) the command. raw is the exact bytes of the frame as
// read off the wire, needed verbatim for replication propagation. The
// returned []byte is the exact bytes the connection driver must write back
// (already RESP-encoded, or the FULLRESYNC/RDB preamble for PSYNC, which is
// not valid RESP on the wire).
func (d *Dispatcher) Dispatch(client *ClientState, args []string, raw []byte) ([]byte, Signal) {
	if len(args) == 0 {
		return resp.Encode(resp.Error("ERR empty command")), SignalNone
	}
	name := strings.ToUpper(args[0])

	// Precondition 1: auth gating.
	if !client.Auth.Authenticated && name != "AUTH" {
		return resp.Encode(resp.Error("NOAUTH Authentication required.")), SignalNone
	}

	// Precondition 2: subscribed-mode whitelist.
	if client.subscribedMode() {
		if _, ok := subscribedModeWhitelist[name]; !ok {
			return resp.Encode(resp.Error(fmt.Sprintf("ERR Can't execute '%s' in subscribed mode", strings.ToLower(name)))), SignalNone
		}
	}

	// Precondition 3: transaction queueing (MULTI/EXEC/DISCARD excluded).
	if client.InTransaction && name != "MULTI" && name != "EXEC" && name != "DISCARD" {
		client.Queued = append(client.Queued, queuedCommand{args: args, raw: raw})
		return resp.Encode(resp.SimpleString("QUEUED")), SignalNone
	}

	// Precondition 4: PSYNC promotes the connection out of normal dispatch.
	if name == "PSYNC" {
		return d.handlePSync(client, args), SignalBecomeReplica
	}

	reply, replicate := d.execute(client, name, args)
	if replicate {
		d.rt.markWrite()
		d.rt.Replicas.Propagate(raw)
	}
	return resp.Encode(reply), SignalNone
}

// execute runs one command's actual semantics (shared by top-level
// Dispatch and EXEC's per-child replay) and reports whether it mutated the
// keyspace and should therefore propagate to replicas.
func (d *Dispatcher) execute(client *ClientState, name string, args []string) (resp.Value, bool) {
	switch name {
	case "PING":
		return d.cmdPing(client, args), false
	case "ECHO":
		return d.cmdEcho(args), false
	case "AUTH":
		return d.cmdAuth(client, args), false
	case "ACL":
		return d.cmdACL(args), false
	case "QUIT":
		return resp.SimpleString("OK"), false
	case "RESET":
		client.Subscribed = map[string]struct{}{}
		client.InTransaction = false
		client.Queued = nil
		return resp.SimpleString("RESET"), false

	case "SET":
		return d.cmdSet(args)
	case "GET":
		return d.cmdGet(args), false
	case "DEL":
		return d.cmdDel(args)
	case "INCR":
		return d.cmdIncr(args)
	case "TYPE":
		return d.cmdType(args), false
	case "KEYS":
		return d.cmdKeys(args), false
	case "CONFIG":
		return d.cmdConfig(args), false
	case "INFO":
		return d.cmdInfo(args), false

	case "RPUSH":
		return d.cmdPush(args, true)
	case "LPUSH":
		return d.cmdPush(args, false)
	case "LRANGE":
		return d.cmdLRange(args), false
	case "LLEN":
		return d.cmdLLen(args), false
	case "LPOP":
		return d.cmdLPop(args)
	case "BLPOP":
		return d.cmdBLPop(client, args), false

	case "XADD":
		return d.cmdXAdd(args)
	case "XRANGE":
		return d.cmdXRange(args), false
	case "XREAD":
		return d.cmdXRead(client, args), false

	case "ZADD":
		return d.cmdZAdd(args)
	case "ZRANK":
		return d.cmdZRank(args), false
	case "ZRANGE":
		return d.cmdZRange(args), false
	case "ZCARD":
		return d.cmdZCard(args), false
	case "ZSCORE":
		return d.cmdZScore(args), false
	case "ZREM":
		return d.cmdZRem(args)

	case "GEOADD":
		return d.cmdGeoAdd(args)
	case "GEOPOS":
		return d.cmdGeoPos(args), false
	case "GEODIST":
		return d.cmdGeoDist(args), false
	case "GEOSEARCH":
		return d.cmdGeoSearch(args), false

	case "SUBSCRIBE":
		return d.cmdSubscribe(client, args), false
	case "UNSUBSCRIBE":
		return d.cmdUnsubscribe(client, args), false
	case "PUBLISH":
		return d.cmdPublish(args), false

	case "MULTI":
		return d.cmdMulti(client), false
	case "EXEC":
		return d.cmdExec(client), false
	case "DISCARD":
		return d.cmdDiscard(client), false

	case "REPLCONF":
		return d.cmdReplConf(client, args), false
	case "WAIT":
		return d.cmdWait(args), false

	default:
		return resp.SimpleString("ERR unknown command"), false
	}
}

func wrongArgs(name string) resp.Value {
	return resp.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}
