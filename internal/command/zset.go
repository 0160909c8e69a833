package command

import (
	"strconv"

	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdZAdd(args []string) (resp.Value, bool) {
	if len(args) < 4 {
		return wrongArgs("zadd"), false
	}
	score, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return resp.Error("ERR value is not a valid float"), false
	}
	isNew, err := d.rt.Store.ZAdd(args[1], args[3], score)
	if err != nil {
		return resp.Error(err.Error()), false
	}
	if isNew {
		return resp.Integer(1), true
	}
	return resp.Integer(0), true
}

func (d *Dispatcher) cmdZRank(args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("zrank")
	}
	rank, ok, err := d.rt.Store.ZRank(args[1], args[2])
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Integer(int64(rank))
}

func (d *Dispatcher) cmdZRange(args []string) resp.Value {
	if len(args) < 4 {
		return wrongArgs("zrange")
	}
	start, err1 := strconv.Atoi(args[2])
	stop, err2 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not an integer or out of range")
	}
	members, err := d.rt.Store.ZRange(args[1], start, stop)
	if err != nil {
		return resp.Error(err.Error())
	}
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = resp.BulkString(m.Member)
	}
	return resp.Array(out...)
}

func (d *Dispatcher) cmdZCard(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("zcard")
	}
	n, err := d.rt.Store.ZCard(args[1])
	if err != nil {
		return resp.Error(err.Error())
	}
	return resp.Integer(int64(n))
}

func (d *Dispatcher) cmdZScore(args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("zscore")
	}
	score, ok, err := d.rt.Store.ZScore(args[1], args[2])
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.BulkString(strconv.FormatFloat(score, 'g', -1, 64))
}

func (d *Dispatcher) cmdZRem(args []string) (resp.Value, bool) {
	if len(args) < 3 {
		return wrongArgs("zrem"), false
	}
	removed, err := d.rt.Store.ZRem(args[1], args[2])
	if err != nil {
		return resp.Error(err.Error()), false
	}
	if removed {
		return resp.Integer(1), true
	}
	return resp.Integer(0), true
}
