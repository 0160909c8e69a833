package command

import (
	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdSubscribe(client *ClientState, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("subscribe")
	}
	channel := args[1]
	client.Subscribed[channel] = struct{}{}
	d.rt.Channels.Subscribe(channel, client.Mailbox)
	count := len(client.Subscribed)
	return resp.Array(resp.BulkString("subscribe"), resp.BulkString(channel), resp.Integer(int64(count)))
}

func (d *Dispatcher) cmdUnsubscribe(client *ClientState, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("unsubscribe")
	}
	channel := args[1]
	delete(client.Subscribed, channel)
	d.rt.Channels.Unsubscribe(channel, client.Mailbox)
	count := len(client.Subscribed)
	return resp.Array(resp.BulkString("unsubscribe"), resp.BulkString(channel), resp.Integer(int64(count)))
}

func (d *Dispatcher) cmdPublish(args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("publish")
	}
	channel, message := args[1], args[2]
	n := d.rt.Channels.Publish(channel, resp.Encode(
		resp.Array(resp.BulkString("message"), resp.BulkString(channel), resp.BulkString(message)),
	))
	return resp.Integer(int64(n))
}
