package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Publisher forwards a finished report to an external sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r *Report) error
}

// PublishAll hands r to every publisher. Failures are logged and joined
// into the returned error; one failing sink does not stop the others.
func PublishAll(ctx context.Context, logger *slog.Logger, r *Report, pubs ...Publisher) error {
	var errs []error

	for _, p := range pubs {
		if err := p.Publish(ctx, r); err != nil {
			logger.WarnContext(ctx, "publish failed",
				slog.String("publisher", p.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

			continue
		}

		logger.InfoContext(ctx, "report published", slog.String("publisher", p.Name()))
	}

	return errors.Join(errs...)
}

// DefaultMeasurement is the InfluxDB measurement reports are written to.
const DefaultMeasurement = "performance"

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// InfluxPublisher writes one point per report.
type InfluxPublisher struct {
	cfg    InfluxConfig
	client influxdb2.Client
}

func NewInfluxPublisher(cfg InfluxConfig) *InfluxPublisher {
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}

	return &InfluxPublisher{
		cfg:    cfg,
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
	}
}

func (p *InfluxPublisher) Name() string { return "influxdb" }

// Publish writes r as a point. String parameters become tags and numeric
// parameters become fields prefixed with "param_". The run id is a field so
// every run does not open a new series.
func (p *InfluxPublisher) Publish(ctx context.Context, r *Report) error {
	writer := p.client.WriteAPIBlocking(p.cfg.Org, p.cfg.Bucket)

	point := influxdb2.NewPointWithMeasurement(p.cfg.Measurement).
		AddTag("name", r.Name).
		AddTag("test_suite", r.TestSuite).
		AddField("run_id", r.RunID).
		SetTime(reportTime(r))

	if r.Framework != "" {
		point.AddTag("framework", r.Framework)
	}

	for name, v := range r.Parameters {
		switch v := v.(type) {
		case string:
			point.AddTag(name, v)
		case int64, float64, int:
			point.AddField("param_"+name, v)
		}
	}

	switch {
	case r.Result.Metrics != nil:
		point.AddField("rate", r.Result.Metrics.Rate).
			AddField("elapsed", r.Result.Metrics.Elapsed)
	case r.Result.Bundle != nil:
		point.AddField("bundle_bytes", len(r.Result.Bundle))
	default:
		return fmt.Errorf("report %s has no result", r.RunID)
	}

	if env := r.Environment; env != nil && env.Hardware != nil {
		point.AddField("cpuTime", env.Hardware.CPUTime).
			AddField("vmm", env.Hardware.VMM).
			AddField("rss", env.Hardware.RSS)
	}

	if err := writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write point: %w", err)
	}

	return nil
}

// Close releases the underlying client.
func (p *InfluxPublisher) Close() {
	p.client.Close()
}

// DefaultPushJob is the Pushgateway job name.
const DefaultPushJob = "pibench"

// PushgatewayPublisher pushes the rate and elapsed gauges of a report,
// grouped by benchmark name and test suite.
type PushgatewayPublisher struct {
	url string
	job string
}

func NewPushgatewayPublisher(url, job string) *PushgatewayPublisher {
	if job == "" {
		job = DefaultPushJob
	}

	return &PushgatewayPublisher{url: url, job: job}
}

func (p *PushgatewayPublisher) Name() string { return "pushgateway" }

func (p *PushgatewayPublisher) Publish(ctx context.Context, r *Report) error {
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pibench_last_run_timestamp_seconds",
		Help: "Unix time of the last completed benchmark run.",
	})
	lastRun.Set(float64(reportTime(r).Unix()))

	pusher := push.New(p.url, p.job).
		Collector(lastRun).
		Grouping("benchmark", r.Name).
		Grouping("test_suite", r.TestSuite)

	if m := r.Result.Metrics; m != nil {
		rate := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pibench_rate_gflops",
			Help: "Derived rate of the median repetition.",
		})
		rate.Set(m.Rate)

		elapsed := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pibench_elapsed_milliseconds",
			Help: "Median elapsed time of one repetition.",
		})
		elapsed.Set(m.Elapsed)

		pusher = pusher.Collector(rate).Collector(elapsed)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push to %s: %w", p.url, err)
	}

	return nil
}

func reportTime(r *Report) time.Time {
	if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
		return t
	}

	return time.Now()
}
