package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/kvnode/internal/blocking"
	"github.com/adred-codev/kvnode/internal/resp"
	"github.com/adred-codev/kvnode/internal/store"
)

func (d *Dispatcher) cmdXAdd(args []string) (resp.Value, bool) {
	if len(args) < 5 || len(args)%2 != 1 {
		return wrongArgs("xadd"), false
	}
	key, rawID := args[1], args[2]
	fieldArgs := args[3:]

	id, err := d.resolveXAddID(key, rawID)
	if err != nil {
		return resp.Error(err.Error()), false
	}

	fields := make([]store.FieldValue, 0, len(fieldArgs)/2)
	for i := 0; i+1 < len(fieldArgs); i += 2 {
		fields = append(fields, store.FieldValue{Field: fieldArgs[i], Value: fieldArgs[i+1]})
	}

	applied, err := d.rt.Store.XAdd(key, id, fields)
	if err != nil {
		return resp.Error(err.Error()), false
	}
	d.rt.StreamSignal.Notify(key)
	return resp.BulkString(formatStreamID(applied)), false
}

// resolveXAddID handles "*", "ms-*" and explicit "ms-seq" forms.
func (d *Dispatcher) resolveXAddID(key, raw string) (store.StreamID, error) {
	if raw == "*" {
		ms := uint64(time.Now().UnixMilli())
		top, ok, err := d.rt.Store.TopID(key)
		if err != nil {
			return store.StreamID{}, err
		}
		seq := uint64(0)
		if ok && top.Ms == ms {
			seq = top.Seq + 1
		}
		return store.StreamID{Ms: ms, Seq: seq}, nil
	}

	parts := strings.SplitN(raw, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return store.StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	if len(parts) == 1 {
		return store.StreamID{Ms: ms, Seq: 0}, nil
	}
	if parts[1] == "*" {
		top, ok, err := d.rt.Store.TopID(key)
		if err != nil {
			return store.StreamID{}, err
		}
		seq := uint64(0)
		if ok && top.Ms == ms {
			seq = top.Seq + 1
		}
		return store.StreamID{Ms: ms, Seq: seq}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return store.StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	return store.StreamID{Ms: ms, Seq: seq}, nil
}

func formatStreamID(id store.StreamID) string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

func parseStreamIDBound(raw string, isStart bool) (id store.StreamID, unbounded bool, err error) {
	if raw == "-" {
		return store.StreamID{}, true, nil
	}
	if raw == "+" {
		return store.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}, true, nil
	}
	parts := strings.SplitN(raw, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return store.StreamID{}, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	seq := uint64(0)
	if !isStart {
		seq = ^uint64(0)
	}
	if len(parts) == 2 {
		seq, err = strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return store.StreamID{}, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
	}
	return store.StreamID{Ms: ms, Seq: seq}, false, nil
}

func (d *Dispatcher) cmdXRange(args []string) resp.Value {
	if len(args) < 4 {
		return wrongArgs("xrange")
	}
	from, fromMin, err := parseStreamIDBound(args[2], true)
	if err != nil {
		return resp.Error(err.Error())
	}
	to, toMax, err := parseStreamIDBound(args[3], false)
	if err != nil {
		return resp.Error(err.Error())
	}
	entries, err := d.rt.Store.XRange(args[1], from, to, fromMin, toMax)
	if err != nil {
		return resp.Error(err.Error())
	}
	return encodeStreamEntries(entries)
}

func encodeStreamEntries(entries []store.StreamEntry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		fieldVals := make([]resp.Value, 0, len(e.Fields)*2)
		for _, fv := range e.Fields {
			fieldVals = append(fieldVals, resp.BulkString(fv.Field), resp.BulkString(fv.Value))
		}
		out[i] = resp.Array(resp.BulkString(formatStreamID(e.ID)), resp.Array(fieldVals...))
	}
	return resp.Array(out...)
}

// cmdXRead implements XREAD STREAMS k… id… and XREAD BLOCK ms STREAMS k… id….
func (d *Dispatcher) cmdXRead(client *ClientState, args []string) resp.Value {
	i := 1
	blockMs := int64(-1)
	if i < len(args) && strings.ToUpper(args[i]) == "BLOCK" {
		ms, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil {
			return resp.Error("ERR timeout is not an integer or out of range")
		}
		blockMs = ms
		i += 2
	}
	if i >= len(args) || strings.ToUpper(args[i]) != "STREAMS" {
		return wrongArgs("xread")
	}
	rest := args[i+1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return wrongArgs("xread")
	}
	n := len(rest) / 2
	keys := rest[:n]
	ids := rest[n:]

	afters := make([]store.StreamID, n)
	for j, rawID := range ids {
		if rawID == "$" {
			top, ok, err := d.rt.Store.TopID(keys[j])
			if err != nil {
				return resp.Error(err.Error())
			}
			if ok {
				afters[j] = top
			}
			continue
		}
		id, _, err := parseStreamIDBound(rawID, true)
		if err != nil {
			return resp.Error(err.Error())
		}
		afters[j] = id
	}

	reply, any, err := d.readStreamsOnce(keys, afters)
	if err != nil {
		return resp.Error(err.Error())
	}
	if any {
		return reply
	}
	if blockMs < 0 {
		return resp.NullArray()
	}

	ch, cancel := d.rt.StreamSignal.Subscribe()
	defer cancel()

	timeout := timeoutDurationMs(blockMs)
	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return resp.NullArray()
			}
			_, ok = blocking.Wait(client.ctx(), ch, remaining)
		} else {
			_, ok = blocking.Wait(client.ctx(), ch, 0)
		}
		if !ok {
			return resp.NullArray()
		}
		reply, any, err := d.readStreamsOnce(keys, afters)
		if err != nil {
			return resp.Error(err.Error())
		}
		if any {
			return reply
		}
	}
}

func (d *Dispatcher) readStreamsOnce(keys []string, afters []store.StreamID) (resp.Value, bool, error) {
	perKey := make([]resp.Value, 0, len(keys))
	any := false
	for j, key := range keys {
		entries, err := d.rt.Store.XReadAfter(key, afters[j])
		if err != nil {
			return resp.Value{}, false, err
		}
		if len(entries) == 0 {
			continue
		}
		any = true
		perKey = append(perKey, resp.Array(resp.BulkString(key), encodeStreamEntries(entries)))
	}
	if !any {
		return resp.Value{}, false, nil
	}
	return resp.Array(perKey...), true, nil
}
