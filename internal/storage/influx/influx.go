// Package influx writes numeric features to InfluxDB as one point per row.
// When the server cannot be reached at Init, points are written as gzipped
// line protocol to a backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/OCAP2/featurex/internal/config"
	"github.com/OCAP2/featurex/pkg/core"
)

// Measurement is the measurement name of every feature point.
const Measurement = "features"

const (
	pingTimeout     = 5 * time.Second
	retentionPeriod = 60 * 60 * 24 * 90 // 90 days
)

// Backend handles the InfluxDB connection and writes.
type Backend struct {
	cfg    config.InfluxConfig
	logger *slog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	backupFile   *os.File
	backupWriter *gzip.Writer

	info     core.ReplayInfo
	labels   []string
	numeric  []int
	episode  int
	timestep int
	ordinal  int
	open     bool
}

// New creates a new InfluxDB backend. Nothing is contacted until Init.
func New(cfg config.InfluxConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = time.Second
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init connects to InfluxDB, falling back to the backup file when the
// server does not answer.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.client.Close()
		b.client = nil
		b.logger.Warn("InfluxDB not reachable, writing to backup file",
			"url", b.cfg.URL(), "backupPath", b.cfg.BackupPath, "error", err)
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(); err != nil {
		return err
	}
	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			b.logger.Error("Error sending data to InfluxDB", "bucket", b.cfg.Bucket, "error", writeErr)
		}
	}(b.writer.Errors())

	b.logger.Info("InfluxDB client initialized", "url", b.cfg.URL(), "bucket", b.cfg.Bucket)
	return nil
}

func (b *Backend) openBackup() error {
	if b.cfg.BackupPath == "" {
		return errors.New("influxdb unreachable and no backup path configured")
	}
	file, err := os.OpenFile(b.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backupWriter = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket() error {
	ctx := context.Background()

	// ensure org exists
	org, err := b.client.OrganizationsAPI().FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.logger.Info("Organization not found, creating", "org", b.cfg.Org)
		org, err = b.client.OrganizationsAPI().CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", b.cfg.Org, err)
		}
	}

	if _, err := b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err == nil {
		return nil
	}
	b.logger.Info("Bucket not found, creating", "bucket", b.cfg.Bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", b.cfg.Bucket, err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (b *Backend) Close() error {
	if b.writer != nil {
		b.writer.Flush()
		b.writer = nil
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	if b.backupWriter != nil {
		err := b.backupWriter.Close()
		if cerr := b.backupFile.Close(); err == nil {
			err = cerr
		}
		b.backupWriter = nil
		b.backupFile = nil
		return err
	}
	return nil
}

// StartReplay records which columns become fields.
func (b *Backend) StartReplay(info core.ReplayInfo, descriptors []core.FeatureDescriptor) error {
	if b.open {
		return fmt.Errorf("replay %s still open", b.info.Source)
	}
	b.info = info
	b.labels = core.Labels(descriptors)
	b.numeric = b.numeric[:0]
	for i, d := range descriptors {
		if d.Type.IsNumeric() && d.Partition != core.PartitionMeta {
			b.numeric = append(b.numeric, i)
		}
	}
	b.episode = slices.Index(b.labels, core.EpisodeColumn)
	b.timestep = slices.Index(b.labels, core.TimestepColumn)
	b.ordinal = 0
	b.open = true
	return nil
}

// RecordRow writes one point. Rows without any defined numeric value are
// skipped.
func (b *Backend) RecordRow(row core.Row) error {
	if !b.open {
		return errors.New("no replay started")
	}
	if len(row) != len(b.labels) {
		return fmt.Errorf("row has %d values for %d columns", len(row), len(b.labels))
	}
	point := b.point(row)
	b.ordinal++
	if point == nil {
		return nil
	}
	return b.writePoint(point)
}

// EndReplay closes the current replay.
func (b *Backend) EndReplay() error {
	if !b.open {
		return errors.New("no replay started")
	}
	b.open = false
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.backupWriter != nil {
		return b.backupWriter.Flush()
	}
	return nil
}

// point builds the point of a row. The timestamp is the replay start plus
// one StepInterval per timestep.
func (b *Backend) point(row core.Row) *influxdb2_write.Point {
	fields := make(map[string]any, len(b.numeric))
	for _, i := range b.numeric {
		switch v := row[i].(type) {
		case float64:
			if !math.IsNaN(v) {
				fields[b.labels[i]] = v
			}
		case int:
			fields[b.labels[i]] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{"source": b.info.Source}
	if b.episode >= 0 {
		tags["episode"] = core.FormatValue(row[b.episode])
	}
	step := b.ordinal
	if b.timestep >= 0 {
		if ts, ok := row[b.timestep].(int); ok {
			step = ts
		}
	}
	start := b.info.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return influxdb2_write.NewPoint(Measurement, tags, fields, start.Add(time.Duration(step)*b.cfg.StepInterval))
}

// writePoint writes a point to InfluxDB or the backup file.
func (b *Backend) writePoint(point *influxdb2_write.Point) error {
	if b.writer != nil {
		b.writer.WritePoint(point)
		return nil
	}
	if b.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := b.backupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}
