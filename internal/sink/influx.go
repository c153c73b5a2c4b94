// internal/sink/influx.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/config"
)

const (
	influxPingTimeout = 5 * time.Second
	measurement       = "harp_register"
)

var ErrInfluxConnect = errors.New("influxdb: connection failed")

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Influx writes samples as points; writes are batched and never block.
type Influx struct {
	client influxdb2.Client
	w      pointWriter
}

// ConnectInflux pings the server, then opens the non-blocking write API.
// Async write errors are logged.
func ConnectInflux(cfg config.InfluxDBConfig, log zerolog.Logger) (*Influx, error) {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(cfg.BatchSize).
			SetFlushInterval(uint(cfg.FlushInterval)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), influxPingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrInfluxConnect, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrInfluxConnect)
	}

	api := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range api.Errors() {
			log.Warn().Err(err).Msg("influxdb: write failed")
		}
	}()

	return &Influx{client: client, w: api}, nil
}

// Point converts a sample. Single values go to field "value"; arrays to
// "value_0".."value_n".
func Point(s Sample) *write.Point {
	fields := make(map[string]interface{}, len(s.Values)+1)
	if len(s.Values) == 1 {
		fields["value"] = s.Values[0].Number()
	} else {
		for i, v := range s.Values {
			fields["value_"+strconv.Itoa(i)] = v.Number()
		}
	}
	fields["device_time"] = s.Seconds

	return write.NewPoint(
		measurement,
		map[string]string{
			"unit":     s.Unit,
			"device":   s.Device,
			"register": s.Register.Name,
			"source":   string(s.Source),
		},
		fields,
		s.At,
	)
}

func (i *Influx) Publish(s Sample) error {
	i.w.WritePoint(Point(s))
	return nil
}

func (i *Influx) Close() error {
	i.w.Flush()
	if i.client != nil {
		i.client.Close()
	}
	return nil
}
