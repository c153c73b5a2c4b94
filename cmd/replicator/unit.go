// cmd/replicator/unit.go
package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/capture"
	"github.com/tamzrod/harp-replicator/internal/config"
	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/device/catalog"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/metrics"
	"github.com/tamzrod/harp-replicator/internal/poller"
	"github.com/tamzrod/harp-replicator/internal/poller/link"
	"github.com/tamzrod/harp-replicator/internal/sink"
	"github.com/tamzrod/harp-replicator/internal/status"
	"github.com/tamzrod/harp-replicator/internal/stream"
	"github.com/tamzrod/harp-replicator/internal/transport"
	"github.com/tamzrod/harp-replicator/internal/writer"
)

const eventBuffer = 256

// startUnit wires one unit: link -> poller -> writer/status/sinks, plus the
// device event feed. Everything it opens is closed once ctx is done.
func startUnit(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, unit config.UnitConfig, sinks sink.Sink, log zerolog.Logger) error {
	ulog := log.With().Str("unit", unit.ID).Logger()

	info, err := catalog.Lookup(unit.Source.Device)
	if err != nil {
		return err
	}

	// ---- capture (optional) ----
	var observer transport.Observer
	var capw *capture.Writer
	if unit.Source.Capture != "" {
		capw, err = capture.Create(unit.Source.Capture)
		if err != nil {
			return err
		}
		observer = capw.Observe
		ulog.Info().Str("file", unit.Source.Capture).Str("session", capw.Session()).Msg("capture: recording frames")
	}
	closeCapture := func() {
		if capw != nil {
			if err := capw.Close(); err != nil {
				ulog.Warn().Err(err).Msg("capture: close")
			}
		}
	}

	// ---- events ----
	events := make(chan harp.Message, eventBuffer)
	onEvent := func(m harp.Message) {
		select {
		case events <- m:
		default:
			ulog.Warn().Uint8("address", m.Address).Msg("events: buffer full, event dropped")
		}
	}

	// ---- poller ----
	timeout := time.Duration(unit.Source.TimeoutMs) * time.Millisecond
	factory := func(ctx context.Context) (poller.Client, error) {
		c, err := link.Dial(ctx, link.Config{
			Unit:     unit.ID,
			Device:   unit.Source.Device,
			Port:     unit.Source.Port,
			BaudRate: unit.Source.BaudRate,
			Timeout:  timeout,
			Log:      ulog,
			Observer: observer,
			OnEvent:  onEvent,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	p, closePoller, err := poller.Build(ctx, unit, factory)
	if err != nil {
		closeCapture()
		return err
	}
	p.SetLogger(ulog)

	// ---- writer plan ----
	plan, err := writer.BuildPlan(unit, cfg.Replicator.StatusMemory.Endpoint, info.WhoAmI)
	if err != nil {
		_ = closePoller()
		closeCapture()
		return err
	}

	// ---- writer clients (DATA + STATUS) ----
	clients, closeWriters, err := writer.BuildEndpointClients(plan, timeout)
	if err != nil {
		_ = closePoller()
		closeCapture()
		return err
	}

	dataWriter := writer.New(plan, clients)

	// Status writer (optional per unit)
	statusWriter, statusEnabled := writer.NewDeviceStatusWriter(plan, clients)

	// ---- channel between poller and writer ----
	out := make(chan poller.PollResult)

	wg.Add(2)

	// event fan-out: one publisher per register
	groups := stream.GroupByRegister(ctx, events, info.Table, func(m harp.Message, err error) {
		ulog.Debug().Err(err).Stringer("msg", m).Msg("events: undeclared register")
	})
	go func() {
		defer wg.Done()
		for g := range groups {
			wg.Add(1)
			go func(g stream.Group) {
				defer wg.Done()
				publishEvents(ulog, unit.ID, info, g, sinks)
			}(g)
		}
	}()

	// Orchestrator (runner-owned state + 1Hz seconds ticker)
	go func() {
		defer wg.Done()

		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			p.Run(ctx, out)
		}()

		o := orchestrator{
			log:      ulog,
			unitID:   unit.ID,
			device:   info.Name,
			data:     dataWriter,
			sinks:    sinks,
			statusOn: statusEnabled,
			status:   statusWriter,
		}
		o.run(ctx, out)

		<-runDone
		if err := closePoller(); err != nil {
			ulog.Warn().Err(err).Msg("poller: close")
		}
		if err := closeWriters(); err != nil {
			ulog.Warn().Err(err).Msg("writer: close")
		}
		closeCapture()
		ulog.Info().Msg("unit: stopped")
	}()

	ulog.Info().
		Str("device", info.Name).
		Str("port", unit.Source.Port).
		Int("interval_ms", unit.Poll.IntervalMs).
		Int("targets", len(plan.Targets)).
		Bool("status", statusEnabled).
		Msg("unit: started")

	return nil
}

// publishEvents forwards one register's events to the sinks until the
// group closes.
func publishEvents(log zerolog.Logger, unitID string, info device.Info, g stream.Group, sinks sink.Sink) {
	for m := range g.Messages {
		s, err := sink.FromEvent(unitID, info.Name, info.Table, m, time.Now())
		if err != nil {
			log.Debug().Err(err).Stringer("msg", m).Msg("events: undecodable event")
			continue
		}
		if err := sinks.Publish(s); err != nil {
			log.Warn().Err(err).Str("register", g.Register.Name).Msg("events: sink publish failed")
		}
	}
}

// orchestrator owns the status snapshot of one unit.
type orchestrator struct {
	log    zerolog.Logger
	unitID string
	device string

	data  writer.Writer
	sinks sink.Sink

	statusOn bool
	status   writer.StatusWriter
	snap     status.Snapshot
}

func (o *orchestrator) run(ctx context.Context, out <-chan poller.PollResult) {
	// Default snapshot state on start.
	o.snap = status.Snapshot{Health: status.HealthUnknown}
	metrics.SetUnitHealth(o.unitID, o.snap.Health)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert) if enabled.
	o.writeStatus("start")

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-out:
			o.handle(res)

		case <-secTicker.C:
			// Tick 1 Hz while not OK.
			if o.snap.Health != status.HealthOK && o.snap.SecondsInError < status.SecondsInErrorMax {
				o.snap.SecondsInError++
				o.writeStatus("seconds tick")
			}
		}
	}
}

func (o *orchestrator) handle(res poller.PollResult) {
	// --- data delivery ---
	if err := o.data.Write(res); err != nil {
		o.log.Error().Err(err).Msg("writer error")
	}
	for _, s := range sink.FromPoll(o.device, res) {
		if err := o.sinks.Publish(s); err != nil {
			o.log.Warn().Err(err).Str("register", s.Register.Name).Msg("sink publish failed")
		}
	}

	// --- status update (device-level truth) ---
	next := o.snap
	if res.Err == nil {
		// Recovery / OK
		next.Health = status.HealthOK
		next.LastErrorCode = status.ErrCodeNone
		next.SecondsInError = 0
	} else {
		next.Health = status.HealthError
		next.LastErrorCode = status.ErrorCode(res.Err)
		// seconds_in_error increments on the 1Hz ticker only.
		if o.snap.Health != status.HealthError {
			o.log.Error().Err(res.Err).Uint16("code", next.LastErrorCode).Msg("poll failed")
		}
	}
	if o.snap.Health == status.HealthError && next.Health == status.HealthOK {
		o.log.Info().Uint16("seconds_in_error", o.snap.SecondsInError).Msg("poll recovered")
	}

	if next != o.snap {
		o.snap = next
		metrics.SetUnitHealth(o.unitID, o.snap.Health)
		o.writeStatus("update")
	}
}

func (o *orchestrator) writeStatus(why string) {
	if !o.statusOn {
		return
	}
	if err := o.status.WriteStatus(o.snap); err != nil {
		o.log.Warn().Err(err).Str("reason", why).Msg("status write failed")
	}
}
