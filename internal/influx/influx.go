// Package influx writes detection and status telemetry to InfluxDB, falling
// back to a gzip line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/CelestinFernandes/geo-pot/internal/config"
	"github.com/CelestinFernandes/geo-pot/internal/metrics"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influxdb is disabled")

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg        config.InfluxConfig
	session    string
	backupPath string
	logger     *slog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile *os.File
	valid      bool
}

// NewManager creates a new InfluxDB manager. Every point is tagged with sessionID.
func NewManager(cfg config.InfluxConfig, sessionID, backupPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	return &Manager{cfg: cfg, session: sessionID, backupPath: backupPath, logger: logger}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		if m.backup == nil {
			m.logger.Info("Failed to initialize InfluxDB client, writing to backup file", "backupPath", m.backupPath)
			file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.backup = gzip.NewWriter(file)
		}
		m.logger.Warn("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error("Error sending data to InfluxDB", "bucket", m.cfg.Bucket, "error", writeErr)
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info("InfluxDB client initialized", "bucket", m.cfg.Bucket)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info("Organization not found, creating", "org", m.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info("Bucket not found, creating", "bucket", m.cfg.Bucket)
		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	// line protocol needs at least one tag after the measurement
	point.AddTag("session", m.session)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	// PointToLineProtocol terminates the line
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Active reports whether Connect succeeded in either mode.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid || m.backup != nil
}

// ObserveDetection writes one detection round trip. It does nothing before Connect.
func (m *Manager) ObserveDetection(ctx context.Context, res core.DetectionResult, took time.Duration, err error) {
	if !m.Active() {
		return
	}
	if werr := m.WritePoint(DetectionPoint(res, took, err, time.Now())); werr != nil {
		m.logger.Debug("Detection point not written", "error", werr)
	}
}

// WriteStatus writes a status snapshot. It does nothing before Connect.
func (m *Manager) WriteStatus(fields map[string]any, at time.Time) error {
	if !m.Active() {
		return nil
	}
	return m.WritePoint(influxdb2_write.NewPoint("status", nil, fields, at))
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.valid = false

	var errs []error
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		m.backup = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// DetectionPoint builds the point for one detection round trip.
func DetectionPoint(res core.DetectionResult, took time.Duration, err error, at time.Time) *influxdb2_write.Point {
	outcome := "ok"
	if err != nil {
		outcome = metrics.FailureKind(err)
	}

	p := influxdb2_write.NewPointWithMeasurement("detection").
		AddTag("outcome", outcome).
		AddField("latency_ms", took.Milliseconds()).
		SetTime(at)
	if err != nil {
		return p
	}

	counts := map[core.DetectionType]int{}
	for _, d := range res.Recognized() {
		counts[d.Type]++
	}
	p.AddField("detections", len(res.Detections)).
		AddField("recognized", len(res.Recognized()))
	for typ, n := range counts {
		p.AddField(string(typ), n)
	}
	return p
}
