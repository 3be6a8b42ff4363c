// Package metrics exposes game server activity as Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"protonmc/internal/minecraft"
	"protonmc/internal/model"
)

// Sources are polled at scrape time.
type Sources struct {
	RunningServers func() int
	WSClients      func() int
}

// Collector records server events. It implements minecraft.Sink.
type Collector struct {
	playersOnline *prometheus.GaugeVec
	consoleLines  *prometheus.CounterVec
	serverStarts  *prometheus.CounterVec
	backups       *prometheus.CounterVec

	mu      sync.Mutex
	players map[string]int
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer, src Sources) (*Collector, error) {
	c := &Collector{
		playersOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "protonmc_players_online",
			Help: "Players currently online per server.",
		}, []string{"server"}),
		consoleLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protonmc_console_lines_total",
			Help: "Console lines read from server processes.",
		}, []string{"server"}),
		serverStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protonmc_server_starts_total",
			Help: "Server launches by outcome.",
		}, []string{"server", "result"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protonmc_backups_total",
			Help: "Finished backup jobs by outcome.",
		}, []string{"server", "result"}),
		players: map[string]int{},
	}

	collectors := []prometheus.Collector{c.playersOnline, c.consoleLines, c.serverStarts, c.backups}
	if src.RunningServers != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "protonmc_servers_running",
			Help: "Servers that are starting or running.",
		}, func() float64 { return float64(src.RunningServers()) }))
	}
	if src.WSClients != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "protonmc_ws_clients",
			Help: "Connected panel websockets.",
		}, func() float64 { return float64(src.WSClients()) }))
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// HandleEvent updates the collectors from one server event.
func (c *Collector) HandleEvent(e minecraft.Event) {
	switch e.Type {
	case minecraft.EventConsole:
		c.consoleLines.WithLabelValues(e.Server).Inc()
	case minecraft.EventPlayerJoin:
		c.addPlayers(e.Server, 1)
	case minecraft.EventPlayerLeave:
		c.addPlayers(e.Server, -1)
	case minecraft.EventStartFailed:
		c.serverStarts.WithLabelValues(e.Server, "failed").Inc()
	case minecraft.EventState:
		switch e.State {
		case model.StateRunning:
			c.serverStarts.WithLabelValues(e.Server, "ok").Inc()
		case model.StateStopped:
			c.resetPlayers(e.Server)
		}
	}
}

func (c *Collector) addPlayers(server string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.players[server] + delta
	if n < 0 {
		n = 0
	}
	c.players[server] = n
	c.playersOnline.WithLabelValues(server).Set(float64(n))
}

func (c *Collector) resetPlayers(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[server] = 0
	c.playersOnline.WithLabelValues(server).Set(0)
}

// BackupFinished counts a finished backup job.
func (c *Collector) BackupFinished(server string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.backups.WithLabelValues(server, result).Inc()
}
