package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type componentStat struct {
	warns  int64
	errors int64
}

var (
	admitted      int64
	rejected      int64
	processed     int64
	snapshotsOK   int64
	snapshotsFail int64
	sendsOK       int64
	sendsFailed   int64
	premiumPushes int64
	components    sync.Map // map[string]*componentStat
	gaugesMu      sync.RWMutex
	gauges        = map[string]func() int64{}
)

func componentStats(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&componentStats(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&componentStats(component).errors, 1)
}

func IncrementAdmitted()      { atomic.AddInt64(&admitted, 1) }
func IncrementRejected()      { atomic.AddInt64(&rejected, 1) }
func IncrementProcessed()     { atomic.AddInt64(&processed, 1) }
func IncrementSnapshotOK()    { atomic.AddInt64(&snapshotsOK, 1) }
func IncrementSnapshotFail()  { atomic.AddInt64(&snapshotsFail, 1) }
func IncrementSendOK()        { atomic.AddInt64(&sendsOK, 1) }
func IncrementSendFailed()    { atomic.AddInt64(&sendsFailed, 1) }
func IncrementPremiumPushed() { atomic.AddInt64(&premiumPushes, 1) }

// RegisterGauge adds a named gauge sampled on every report tick.
func RegisterGauge(name string, fn func() int64) {
	gaugesMu.Lock()
	gauges[name] = fn
	gaugesMu.Unlock()
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of pipeline statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	componentData := map[string]map[string]int64{}
	components.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*componentStat)
		componentData[name] = map[string]int64{
			"warns":  atomic.LoadInt64(&cs.warns),
			"errors": atomic.LoadInt64(&cs.errors),
		}
		return true
	})

	gaugeData := map[string]int64{}
	gaugesMu.RLock()
	for name, fn := range gauges {
		gaugeData[name] = fn()
	}
	gaugesMu.RUnlock()

	fields := Fields{
		"candidates_admitted": atomic.LoadInt64(&admitted),
		"candidates_rejected": atomic.LoadInt64(&rejected),
		"candidates_done":     atomic.LoadInt64(&processed),
		"snapshots_built":     atomic.LoadInt64(&snapshotsOK),
		"snapshots_failed":    atomic.LoadInt64(&snapshotsFail),
		"sends_ok":            atomic.LoadInt64(&sendsOK),
		"sends_failed":        atomic.LoadInt64(&sendsFailed),
		"premium_pushes":      atomic.LoadInt64(&premiumPushes),
		"goroutines":          runtime.NumGoroutine(),
		"components":          componentData,
	}
	for name, val := range gaugeData {
		fields[name] = val
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CandidatesAdmitted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&admitted)))},
		{MetricName: aws.String("CandidatesRejected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&rejected)))},
		{MetricName: aws.String("CandidatesProcessed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&processed)))},
		{MetricName: aws.String("SnapshotsBuilt"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotsOK)))},
		{MetricName: aws.String("SnapshotsFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotsFail)))},
		{MetricName: aws.String("SendsOK"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sendsOK)))},
		{MetricName: aws.String("SendsFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sendsFailed)))},
		{MetricName: aws.String("PremiumPushes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&premiumPushes)))},
	}
	for name, val := range gaugeData {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(val)),
		})
	}
	for name, stats := range componentData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ComponentWarns"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Component"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["warns"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ComponentErrors"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Component"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["errors"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
