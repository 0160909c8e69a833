package command

import (
	"strconv"

	"github.com/adred-codev/kvnode/internal/blocking"
	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdPush(args []string, right bool) (resp.Value, bool) {
	if len(args) < 3 {
		return wrongArgs("rpush"), false
	}
	key := args[1]
	values := args[2:]

	n, err := d.rt.Store.Push(key, right, toBytes(values)...)
	if err != nil {
		return resp.Error(err.Error()), false
	}

	// Service at most one blocked BLPOP waiter per push, popping the value
	// straight back out of the list it was just appended to.
	if d.rt.ListWaiters.HasWaiter(key) {
		if v, ok, _ := d.rt.Store.Pop(key); ok {
			d.rt.ListWaiters.Deliver(key, v)
		}
	}

	return resp.Integer(int64(n)), true
}

func toBytes(values []string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

func (d *Dispatcher) cmdLRange(args []string) resp.Value {
	if len(args) < 4 {
		return wrongArgs("lrange")
	}
	start, err1 := strconv.Atoi(args[2])
	stop, err2 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	vals, err := d.rt.Store.Range(args[1], start, stop)
	if err != nil {
		return resp.Error(err.Error())
	}
	elems := make([]resp.Value, len(vals))
	for i, v := range vals {
		elems[i] = resp.Bulk(v)
	}
	return resp.Array(elems...)
}

func (d *Dispatcher) cmdLLen(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("llen")
	}
	n, err := d.rt.Store.Len(args[1])
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(int64(n))
}

func (d *Dispatcher) cmdLPop(args []string) (resp.Value, bool) {
	if len(args) < 2 {
		return wrongArgs("lpop"), false
	}
	v, ok, err := d.rt.Store.Pop(args[1])
	if err != nil {
		return resp.Error(err.Error()), false
	}
	if !ok {
		return resp.NullBulk(), false
	}
	return resp.Bulk(v), true
}

// cmdBLPop blocks until key has a value delivered to it or timeout elapses.
// BLPOP does not replicate itself; the RPUSH/LPUSH that satisfies it does.
func (d *Dispatcher) cmdBLPop(client *ClientState, args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("blpop")
	}
	key := args[1]
	seconds, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return resp.Error("ERR timeout is not a float or out of range")
	}

	if v, ok, _ := d.rt.Store.Pop(key); ok {
		return resp.Array(resp.BulkString(key), resp.Bulk(v))
	}

	mailbox, cancel := d.rt.ListWaiters.Register(key)
	defer cancel()

	timeout := timeoutDuration(seconds)
	value, ok := blocking.WaitBytes(client.ctx(), mailbox, timeout)
	if !ok {
		return resp.NullArray()
	}
	return resp.Array(resp.BulkString(key), resp.Bulk(value))
}
