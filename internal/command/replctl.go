package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/kvnode/internal/resp"
)

// cmdReplConf handles REPLCONF from a normal (not-yet-promoted) connection:
// listening-port and capa psync2, both answered with +OK. ACK is only ever
// sent by an already-promoted replica socket, handled by the connection
// driver directly against the replication registry, not through Dispatch.
func (d *Dispatcher) cmdReplConf(client *ClientState, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("replconf")
	}
	return resp.SimpleString("OK")
}

// handlePSync builds the literal bytes replying to PSYNC: +FULLRESYNC
// <replid> 0\r\n followed immediately by an empty RDB bulk with no trailing
// CRLF (disk persistence is out of scope, so the transferred snapshot is
// always empty; a freshly-promoted replica simply starts from an empty
// keyspace plus whatever this process loaded from its own snapshot file at
// boot).
func (d *Dispatcher) handlePSync(client *ClientState, args []string) []byte {
	client.IsReplica = true
	line := fmt.Sprintf("+FULLRESYNC %s 0\r\n", d.rt.ReplicationID)
	header := fmt.Sprintf("$%d\r\n", 0)
	return append([]byte(line), []byte(header)...)
}

// cmdWait implements WAIT numreplicas timeout_ms.
func (d *Dispatcher) cmdWait(args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("wait")
	}
	numReplicas, err1 := strconv.Atoi(args[1])
	timeoutMs, err2 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}

	getack := resp.Encode(resp.ArrayFromStrings("REPLCONF", "GETACK", "*"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	acked := d.rt.Replicas.Wait(ctx, numReplicas, time.Duration(timeoutMs)*time.Millisecond, d.rt.HasPendingWrites(), getack)
	return resp.Integer(int64(acked))
}

// ApplyReplicated satisfies replication.Applier: mutate the local keyspace
// silently, with no RESP reply written back. Used only on a replica node's
// client loop.
func (d *Dispatcher) ApplyReplicated(args []string) {
	if len(args) == 0 {
		return
	}
	name := strings.ToUpper(args[0])
	if name == "REPLCONF" {
		return
	}
	replicaClient := &ClientState{Context: context.Background(), Subscribed: map[string]struct{}{}}
	d.execute(replicaClient, name, args)
}
