package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "signalflow/config"
	"signalflow/logger"
	"signalflow/models"
)

// deliveryParquetRecord is the on-disk layout of one delivery attempt.
type deliveryParquetRecord struct {
	ID           string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TokenAddress string `parquet:"name=token_address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Chain        string `parquet:"name=chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChatID       string `parquet:"name=chat_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TopicID      string `parquet:"name=topic_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Language     string `parquet:"name=language, type=BYTE_ARRAY, convertedtype=UTF8"`
	Premium      bool   `parquet:"name=premium, type=BOOLEAN"`
	Tier         int32  `parquet:"name=tier, type=INT32"`
	Attempt      int32  `parquet:"name=attempt, type=INT32"`
	Success      bool   `parquet:"name=success, type=BOOLEAN"`
	ErrorText    string `parquet:"name=error_text, type=BYTE_ARRAY, convertedtype=UTF8"`
	SentAt       int64  `parquet:"name=sent_at, type=INT64"`
}

// memoryFile implements the ParquetFile interface over an in-memory
// buffer so files can be assembled before the S3 upload.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (mf *memoryFile) Create(string) (source.ParquetFile, error) { return mf, nil }
func (mf *memoryFile) Open(string) (source.ParquetFile, error)   { return mf, nil }
func (mf *memoryFile) Seek(int64, int) (int64, error)            { return int64(mf.buffer.Len()), nil }
func (mf *memoryFile) Read(b []byte) (int, error)                { return mf.buffer.Read(b) }
func (mf *memoryFile) Write(b []byte) (int, error)               { return mf.buffer.Write(b) }
func (mf *memoryFile) Close() error                              { return nil }
func (mf *memoryFile) Bytes() []byte                             { return mf.buffer.Bytes() }

type objectUploader interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AuditWriter batches delivery records into parquet files and uploads
// them to S3 under a time partitioned prefix. Recording is best effort:
// a full buffer drops the record rather than backpressure dispatch, and
// with audit disabled records only hit the debug log.
type AuditWriter struct {
	config      appconfig.AuditConfig
	version     string
	uploader    objectUploader
	records     chan models.DeliveryRecord
	buffer      []models.DeliveryRecord
	flushTicker *time.Ticker
	ctx         context.Context
	wg          *sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	log         *logger.Log
}

func NewAuditWriter(cfg appconfig.AuditConfig, version string) (*AuditWriter, error) {
	log := logger.GetLogger()

	aw := &AuditWriter{
		config:  cfg,
		version: version,
		records: make(chan models.DeliveryRecord, 1024),
		wg:      &sync.WaitGroup{},
		log:     log,
	}

	if !cfg.Enabled {
		log.WithComponent("audit_writer").Info("audit disabled, records will only be logged")
		return aw, nil
	}

	ctx := context.Background()
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	aw.uploader = s3.NewFromConfig(awsCfg)

	log.WithComponent("audit_writer").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
		"prefix": cfg.Prefix,
	}).Info("audit writer initialized")

	return aw, nil
}

func (aw *AuditWriter) Start(ctx context.Context) error {
	aw.mu.Lock()
	if aw.running {
		aw.mu.Unlock()
		return fmt.Errorf("audit writer already running")
	}
	aw.running = true
	aw.ctx = ctx
	aw.mu.Unlock()

	if !aw.config.Enabled {
		return nil
	}

	flushInterval := aw.config.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	aw.flushTicker = time.NewTicker(flushInterval)

	aw.wg.Add(1)
	go aw.run()

	aw.log.WithComponent("audit_writer").Info("audit writer started")
	return nil
}

func (aw *AuditWriter) Stop() {
	aw.mu.Lock()
	if !aw.running {
		aw.mu.Unlock()
		return
	}
	aw.running = false
	aw.mu.Unlock()

	if aw.flushTicker != nil {
		aw.flushTicker.Stop()
	}
	aw.wg.Wait()
	aw.log.WithComponent("audit_writer").Info("audit writer stopped")
}

// Record enqueues one delivery attempt. Never blocks.
func (aw *AuditWriter) Record(rec models.DeliveryRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if !aw.config.Enabled {
		aw.log.WithComponent("audit_writer").WithFields(logger.Fields{
			"token_address": rec.TokenAddress,
			"chat_id":       rec.ChatID,
			"attempt":       rec.Attempt,
			"success":       rec.Success,
		}).Debug("delivery recorded")
		return
	}

	select {
	case aw.records <- rec:
	default:
		aw.log.WithComponent("audit_writer").Warn("audit buffer full, dropping record")
	}
}

func (aw *AuditWriter) run() {
	defer aw.wg.Done()

	batchSize := aw.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	for {
		select {
		case <-aw.ctx.Done():
			aw.drainPending()
			aw.flush("shutdown")
			return
		case <-aw.flushTicker.C:
			aw.flush("interval")
		case rec := <-aw.records:
			aw.buffer = append(aw.buffer, rec)
			if len(aw.buffer) >= batchSize {
				aw.flush("batch_size")
			}
		}
	}
}

func (aw *AuditWriter) drainPending() {
	for {
		select {
		case rec := <-aw.records:
			aw.buffer = append(aw.buffer, rec)
		default:
			return
		}
	}
}

func (aw *AuditWriter) flush(reason string) {
	if len(aw.buffer) == 0 {
		return
	}
	batch := aw.buffer
	aw.buffer = nil

	log := aw.log.WithComponent("audit_writer").WithFields(logger.Fields{
		"records": len(batch),
		"reason":  reason,
	})

	data, err := aw.createParquetFile(batch)
	if err != nil {
		log.WithError(err).Error("failed to create audit parquet file")
		return
	}

	key := aw.objectKey(time.Now().UTC())
	if err := aw.upload(key, data); err != nil {
		log.WithError(err).
			WithEnv("AUDIT_BUCKET").
			WithFields(logger.Fields{"bucket": aw.config.Bucket, "s3_key": key}).
			Error("failed to upload audit file")
		return
	}

	log.WithFields(logger.Fields{
		"s3_key":    key,
		"file_size": len(data),
	}).Info("audit batch uploaded")
}

func (aw *AuditWriter) objectKey(ts time.Time) string {
	timePath := fmt.Sprintf("%04d/%02d/%02d/%02d", ts.Year(), ts.Month(), ts.Day(), ts.Hour())
	filename := fmt.Sprintf("deliveries_%s_%s.parquet",
		ts.Format("20060102150405"),
		strings.Split(uuid.NewString(), "-")[0])

	key := filepath.Join(strings.Trim(aw.config.Prefix, "/"), timePath, filename)
	return filepath.ToSlash(key)
}

func (aw *AuditWriter) createParquetFile(batch []models.DeliveryRecord) ([]byte, error) {
	fw := newMemoryFile()

	pw, err := writer.NewParquetWriter(fw, new(deliveryParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch aw.config.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rec := range batch {
		row := deliveryParquetRecord{
			ID:           rec.ID,
			TokenAddress: rec.TokenAddress,
			Chain:        rec.Chain,
			ChatID:       rec.ChatID,
			TopicID:      rec.TopicID,
			Language:     rec.Language,
			Premium:      rec.Premium,
			Tier:         int32(rec.Tier),
			Attempt:      int32(rec.Attempt),
			Success:      rec.Success,
			ErrorText:    rec.ErrorText,
			SentAt:       rec.SentAt.UnixMilli(),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

func (aw *AuditWriter) upload(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(aw.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":       "parquet",
			"compression":        aw.config.Compression,
			"signalflow-version": aw.version,
		},
	}

	ctx := context.WithoutCancel(aw.ctx)
	_, err := aw.uploader.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", aw.config.Bucket, err)
	}
	return nil
}
