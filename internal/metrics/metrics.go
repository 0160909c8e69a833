// Package metrics exposes a Prometheus registry of server-level gauges and
// counters plus a periodic RSS/CPU sampler, mirroring the monitoring setup
// the rest of this codebase's servers carry.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Registry holds every metric this server emits.
type Registry struct {
	ConnectedClients prometheus.Gauge
	ConnectedReplicas prometheus.Gauge
	CommandsProcessed *prometheus.CounterVec
	KeyspaceKeys      prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
	ProcessCPUPercent prometheus.Gauge
}

// New registers every metric against a fresh registry and returns both.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Registry{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvnode_connected_clients",
			Help: "Current number of connected client sockets.",
		}),
		ConnectedReplicas: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvnode_connected_replicas",
			Help: "Current number of connected replica sockets.",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvnode_commands_processed_total",
			Help: "Total commands dispatched, by command name.",
		}, []string{"command"}),
		KeyspaceKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvnode_keyspace_keys",
			Help: "Current number of keys in the keyspace.",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvnode_process_rss_bytes",
			Help: "Resident set size of this process.",
		}),
		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvnode_process_cpu_percent",
			Help: "Host-relative CPU percentage sampled over the last interval.",
		}),
	}
	reg.MustRegister(
		m.ConnectedClients, m.ConnectedReplicas, m.CommandsProcessed,
		m.KeyspaceKeys, m.ProcessRSSBytes, m.ProcessCPUPercent,
	)
	return m, reg
}

// Serve starts the /metrics HTTP endpoint; call in its own goroutine.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}

// SampleProcess periodically updates ProcessRSSBytes/ProcessCPUPercent
// until ctx is canceled.
func (m *Registry) SampleProcess(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if memInfo, err := proc.MemoryInfo(); err == nil {
				m.ProcessRSSBytes.Set(float64(memInfo.RSS))
			}
			if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
				m.ProcessCPUPercent.Set(pct[0])
			}
		}
	}
}
