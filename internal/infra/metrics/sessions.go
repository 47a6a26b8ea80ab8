package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "training_sessions_started_total",
		Help: "Training sessions created.",
	})
	sessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "training_sessions_completed_total",
		Help: "Training sessions that met their completion criteria.",
	})
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Currently open WebSocket connections.",
	})
	wsMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_total",
		Help: "WebSocket messages processed, by type.",
	}, []string{"type"})
)

func init() {
	register(sessionsStarted, sessionsCompleted, wsConnections, wsMessages)
}

func IncSessionStarted()      { sessionsStarted.Inc() }
func IncSessionCompleted()    { sessionsCompleted.Inc() }
func IncWSConnections()       { wsConnections.Inc() }
func DecWSConnections()       { wsConnections.Dec() }
func IncWSMessage(typ string) { wsMessages.WithLabelValues(typ).Inc() }
