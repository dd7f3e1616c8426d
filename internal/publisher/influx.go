package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printer_monitor/internal/config"
	"printer_monitor/internal/logger"
	"printer_monitor/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	influxPingTimeout   = 5 * time.Second
	influxBatchSize     = 100
	influxFlushInterval = 10_000 // milliseconds

	measurementConsumables  = "printer_consumables"
	measurementActivity     = "printer_activity"
	measurementReachability = "printer_reachability"
)

var ErrInfluxUnavailable = errors.New("influxdb: server not available")

// pointWriter is satisfied by api.WriteAPI.
type pointWriter interface {
	WritePoint(point *write.Point)
}

// InfluxSink records consumable levels and activity as time series.
// Writes are batched by the client and never block the poll loop.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	flush  func()
}

func NewInfluxSink(w pointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// DialInflux connects, pings and returns a sink backed by the non-blocking write API.
// Asynchronous write errors are logged.
func DialInflux(ctx context.Context, cfg config.InfluxConfig, log *logger.Logger) (*InfluxSink, error) {
	if log == nil {
		log = logger.Nop()
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(influxBatchSize).
			SetFlushInterval(influxFlushInterval),
	)

	pingCtx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()
	ok, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrInfluxUnavailable, err)
	}
	if !ok {
		client.Close()
		return nil, ErrInfluxUnavailable
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			log.Warnw("influx_write_failed", "error", err)
		}
	}(writeAPI.Errors())

	return &InfluxSink{client: client, writer: writeAPI, flush: writeAPI.Flush}, nil
}

func (s *InfluxSink) Publish(ev models.StateEvent) {
	if p := eventPoint(ev); p != nil {
		s.writer.WritePoint(p)
	}
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() {
	if s.flush != nil {
		s.flush()
	}
	if s.client != nil {
		s.client.Close()
	}
}

// eventPoint maps an event to a point, or nil when the event is not recorded.
func eventPoint(ev models.StateEvent) *write.Point {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{"device_id": ev.DeviceID}
	if ev.DeviceName != "" {
		tags["device"] = ev.DeviceName
	}

	switch ev.Type {
	case models.EventConsumable:
		tags["sub_id"] = ev.SubID
		tags["name"] = ev.Name
		return write.NewPoint(measurementConsumables, tags, map[string]interface{}{"level": ev.Level}, ts)
	case models.EventActive:
		if ev.Value == nil {
			return nil
		}
		return write.NewPoint(measurementActivity, tags, map[string]interface{}{"active": *ev.Value}, ts)
	case models.EventActivationCount:
		return write.NewPoint(measurementActivity, tags, map[string]interface{}{"activation_count": ev.Count}, ts)
	case models.EventReachable:
		if ev.Value == nil {
			return nil
		}
		return write.NewPoint(measurementReachability, tags, map[string]interface{}{"reachable": *ev.Value}, ts)
	}
	return nil
}
