package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BytesPolled counts bytes appended to the input buffer by Poll.
	BytesPolled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flodgatt_redis_bytes_polled_total",
		Help: "Bytes read off the primary Redis connection.",
	})

	// BufferResizes counts doublings of the Redis input buffer.
	BufferResizes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flodgatt_redis_input_buffer_resizes_total",
		Help: "Times the Redis input buffer doubled its length.",
	})

	// MessagesParsed counts pub/sub messages framed out of the buffer.
	MessagesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flodgatt_redis_messages_parsed_total",
		Help: "Pub/sub messages parsed from the Redis stream.",
	})

	// CommandsSent counts subscription commands, labeled by kind.
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flodgatt_redis_commands_sent_total",
		Help: "Subscribe/unsubscribe commands written to Redis.",
	}, []string{"command"})

	// ConnectedClients tracks open streaming sessions.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flodgatt_streaming_connected_clients",
		Help: "Currently connected streaming clients.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
