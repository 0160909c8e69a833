package command

import (
	"fmt"
	"strings"

	"github.com/adred-codev/kvnode/internal/auth"
	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdPing(client *ClientState, args []string) resp.Value {
	if client.subscribedMode() {
		payload := ""
		if len(args) >= 2 {
			payload = args[1]
		}
		return resp.Array(resp.BulkString("pong"), resp.BulkString(payload))
	}
	if len(args) >= 2 {
		return resp.BulkString(args[1])
	}
	return resp.SimpleString("PONG")
}

func (d *Dispatcher) cmdEcho(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("echo")
	}
	return resp.BulkString(args[1])
}

func (d *Dispatcher) cmdAuth(client *ClientState, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("auth")
	}
	username, password := "default", args[1]
	if len(args) >= 3 {
		username, password = args[1], args[2]
	}
	if !d.rt.Users.Check(username, password) {
		return resp.Error("WRONGPASS wrong password")
	}
	client.Auth = auth.State{Authenticated: true, Username: username}
	return resp.SimpleString("OK")
}

func (d *Dispatcher) cmdACL(args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("acl")
	}
	switch strings.ToUpper(args[1]) {
	case "WHOAMI":
		return resp.BulkString("default")
	case "GETUSER":
		if len(args) < 3 {
			return wrongArgs("acl|getuser")
		}
		hasPassword, ok := d.rt.Users.Describe(args[2])
		if !ok {
			return resp.NullArray()
		}
		flag := "nopass"
		if hasPassword {
			flag = "on"
		}
		return resp.Array(
			resp.BulkString("flags"),
			resp.Array(resp.BulkString(flag)),
			resp.BulkString("commands"),
			resp.BulkString("+@all"),
		)
	case "SETUSER":
		if len(args) < 4 {
			return wrongArgs("acl|setuser")
		}
		if err := d.rt.Users.SetPassword(args[2], args[3]); err != nil {
			return resp.Error("ERR " + err.Error())
		}
		return resp.SimpleString("OK")
	default:
		return resp.Error(fmt.Sprintf("ERR Unknown ACL subcommand '%s'", args[1]))
	}
}

func (d *Dispatcher) cmdConfig(args []string) resp.Value {
	if len(args) < 3 || strings.ToUpper(args[1]) != "GET" {
		return wrongArgs("config")
	}
	switch strings.ToLower(args[2]) {
	case "dir":
		return resp.Array(resp.BulkString("dir"), resp.BulkString(d.rt.Dir))
	case "dbfilename":
		return resp.Array(resp.BulkString("dbfilename"), resp.BulkString(d.rt.DBFilename))
	default:
		return resp.Array()
	}
}

func (d *Dispatcher) cmdInfo(args []string) resp.Value {
	role := "master"
	if d.rt.Role() == RoleReplica {
		role = "slave"
	}
	body := fmt.Sprintf("role:%s\nmaster_replid:%s\nmaster_repl_offset:0", role, d.rt.ReplicationID)
	return resp.BulkString(body)
}
