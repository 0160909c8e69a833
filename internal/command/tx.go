package command

import (
	"strings"

	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdMulti(client *ClientState) resp.Value {
	client.InTransaction = true
	client.Queued = nil
	return resp.SimpleString("OK")
}

func (d *Dispatcher) cmdDiscard(client *ClientState) resp.Value {
	if !client.InTransaction {
		return resp.Error("ERR DISCARD without MULTI")
	}
	client.InTransaction = false
	client.Queued = nil
	return resp.SimpleString("OK")
}

// cmdExec runs every queued command against the keyspace in order,
// replicating each successful mutation exactly as if it had been issued
// outside a transaction.
func (d *Dispatcher) cmdExec(client *ClientState) resp.Value {
	if !client.InTransaction {
		return resp.Error("ERR EXEC without MULTI")
	}
	queued := client.Queued
	client.InTransaction = false
	client.Queued = nil

	replies := make([]resp.Value, len(queued))
	for i, q := range queued {
		reply, replicate := d.execute(client, strings.ToUpper(q.args[0]), q.args)
		if replicate {
			d.rt.markWrite()
			d.rt.Replicas.Propagate(q.raw)
		}
		replies[i] = reply
	}
	return resp.Array(replies...)
}
