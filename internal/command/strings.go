package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/kvnode/internal/resp"
)

// cmdSet implements SET k v [PX ms]. EX/NX/XX are not recognized, per the
// spec-as-written deviation from Redis.
func (d *Dispatcher) cmdSet(args []string) (resp.Value, bool) {
	if len(args) < 3 {
		return wrongArgs("set"), false
	}
	key, val := args[1], args[2]
	var px time.Duration
	if len(args) >= 5 && strings.ToUpper(args[3]) == "PX" {
		ms, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return resp.Error("ERR value is not an integer or out of range"), false
		}
		px = time.Duration(ms) * time.Millisecond
	}
	deadline := d.rt.Store.SetString(key, []byte(val), px)
	if !deadline.IsZero() {
		go d.spawnExpiry(key, deadline)
	}
	return resp.SimpleString("OK"), true
}

// spawnExpiry sleeps until deadline then deletes key iff its deadline is
// still due, bounding memory independently of the lazy check in GetString.
func (d *Dispatcher) spawnExpiry(key string, deadline time.Time) {
	if wait := time.Until(deadline); wait > 0 {
		time.Sleep(wait)
	}
	d.rt.Store.ExpireIfStillDue(key, deadline)
}

func (d *Dispatcher) cmdGet(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("get")
	}
	v, ok, err := d.rt.Store.GetString(args[1])
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func (d *Dispatcher) cmdDel(args []string) (resp.Value, bool) {
	if len(args) < 2 {
		return wrongArgs("del"), false
	}
	n := d.rt.Store.Del(args[1:]...)
	return resp.Integer(int64(n)), true
}

func (d *Dispatcher) cmdIncr(args []string) (resp.Value, bool) {
	if len(args) < 2 {
		return wrongArgs("incr"), false
	}
	n, err := d.rt.Store.Incr(args[1])
	if err != nil {
		return resp.Error(err.Error()), false
	}
	return resp.Integer(n), true
}

func (d *Dispatcher) cmdType(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("type")
	}
	return resp.SimpleString(d.rt.Store.Type(args[1]).String())
}

func (d *Dispatcher) cmdKeys(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("keys")
	}
	keys := d.rt.Store.Keys(args[1])
	return resp.ArrayFromStrings(keys...)
}
