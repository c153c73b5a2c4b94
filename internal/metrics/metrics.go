// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

var (
	registerOnce sync.Once

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harp",
			Name:      "commands_total",
			Help:      "Harp commands issued, by outcome.",
		},
		[]string{"unit", "register", "op", "result"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harp",
			Name:      "command_duration_seconds",
			Help:      "Harp command round trip time in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"unit", "op"},
	)
	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harp",
			Name:      "events_total",
			Help:      "Harp event messages received.",
		},
		[]string{"unit", "register"},
	)
	unitHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "replicator",
			Name:      "unit_health",
			Help:      "Device status health code per unit.",
		},
		[]string{"unit"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(commands, commandDuration, events, unitHealth)
	})
}

// Result labels.
const (
	ResultOK         = "ok"
	ResultTimeout    = "timeout"
	ResultErrorReply = "error_reply"
	ResultError      = "error"
)

func RecordCommand(unit, reg, op, result string, d time.Duration) {
	Register()
	commands.WithLabelValues(unit, reg, op, result).Inc()
	commandDuration.WithLabelValues(unit, op).Observe(d.Seconds())
}

func RecordEvent(unit, reg string) {
	Register()
	events.WithLabelValues(unit, reg).Inc()
}

func SetUnitHealth(unit string, code uint16) {
	Register()
	unitHealth.WithLabelValues(unit).Set(float64(code))
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ---- transport decorator ----

type instrumented struct {
	unit  string
	table register.Table
	next  device.Transport
}

// Instrument wraps tr so every command is counted and timed.
// table is only used to name registers in labels.
func Instrument(unit string, table register.Table, tr device.Transport) device.Transport {
	return &instrumented{unit: unit, table: table, next: tr}
}

func (i *instrumented) Command(ctx context.Context, req harp.Message) (harp.Message, error) {
	start := time.Now()
	reply, err := i.next.Command(ctx, req)

	result := ResultOK
	switch {
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		result = ResultTimeout
	case err != nil:
		result = ResultError
	case reply.Error:
		result = ResultErrorReply
	}

	RecordCommand(i.unit, RegisterName(i.table, req.Address), strings.ToLower(req.Type.String()), result, time.Since(start))
	return reply, err
}

func (i *instrumented) Close() error { return i.next.Close() }

// RegisterName labels addr by its table name, or by number when undeclared.
func RegisterName(t register.Table, addr uint8) string {
	if d, err := t.Lookup(addr); err == nil {
		return d.Name
	}
	return strconv.Itoa(int(addr))
}
