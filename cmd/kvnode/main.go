// Command kvnode runs a single-node, in-memory, RESP-speaking key/value
// server, optionally as a replica of another kvnode instance.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/kvnode/internal/command"
	"github.com/adred-codev/kvnode/internal/config"
	"github.com/adred-codev/kvnode/internal/logging"
	"github.com/adred-codev/kvnode/internal/metrics"
	"github.com/adred-codev/kvnode/internal/replication"
	"github.com/adred-codev/kvnode/internal/snapshot"
	"github.com/adred-codev/kvnode/internal/transport"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvnode:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("dir", cfg.Dir).Str("dbfilename", cfg.DBFilename).Int("port", cfg.Port).Msg("starting")

	rt := command.NewRuntime(cfg.Dir, cfg.DBFilename, cfg.Port, cfg.ReplicaOf, logger)

	if err := snapshot.Load(rt.Store, cfg.Dir, cfg.DBFilename); err != nil {
		logger.Fatal().Err(err).Msg("snapshot load failed")
	}

	reg, promReg := metrics.New()
	go func() {
		if err := metrics.Serve(cfg.MetricsAddr, promReg); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	sampleCtx, cancelSample := context.WithCancel(context.Background())
	defer cancelSample()
	go reg.SampleProcess(sampleCtx, 5*time.Second)

	srv := transport.NewServer(rt, logger)
	srv.OnCommand = func(name string) {
		reg.CommandsProcessed.WithLabelValues(strings.ToUpper(name)).Inc()
	}

	if cfg.ReplicaOf != "" {
		startReplicaClient(rt, cfg, logger)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		logger.Fatal().Err(err).Msg("listen failed")
	}
	logger.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")

	if err := srv.Serve(ln); err != nil {
		logger.Fatal().Err(err).Msg("accept loop stopped")
	}
}

// startReplicaClient parses --replicaof's "host port" form and runs the
// handshake-and-stream loop in the background, retrying the dial on
// failure so a master that isn't up yet doesn't take down this process.
func startReplicaClient(rt *command.Runtime, cfg *config.Config, logger zerolog.Logger) {
	parts := strings.Fields(cfg.ReplicaOf)
	if len(parts) != 2 {
		logger.Fatal().Str("replicaof", cfg.ReplicaOf).Msg(`--replicaof must be "host port"`)
		return
	}
	host, portStr := parts[0], parts[1]
	if _, err := strconv.Atoi(portStr); err != nil {
		logger.Fatal().Str("replicaof", cfg.ReplicaOf).Msg("replicaof port is not numeric")
		return
	}
	masterAddr := net.JoinHostPort(host, portStr)

	dispatcher := command.NewDispatcher(rt)
	client := replication.NewClient(masterAddr, rt.Port, dispatcher, logger)

	go func() {
		for {
			if err := client.Run(); err != nil {
				logger.Warn().Err(err).Str("master", masterAddr).Msg("replica stream ended, retrying")
			}
			time.Sleep(time.Second)
		}
	}()
}
