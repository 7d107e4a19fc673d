package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/delta3d/delta3d-sub039/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("threadpool", reg, ExporterOptions{})
	require.NoError(t, err)

	exporter.RecordTaskDuration("pool.immediate", 0, 250*time.Millisecond)
	exporter.RecordTaskPanic("pool.immediate", "panic")
	exporter.RecordQueueDepth("pool.immediate", 7)
	exporter.RecordTaskRequeued("pool.io", 1)
	exporter.RecordTasksRemoved("pool.io", 3)
	exporter.RecordTasksRemoved("pool.io", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("pool.immediate")))
	require.Equal(t, 7.0, testutil.ToFloat64(exporter.queueDepth.WithLabelValues("pool.immediate")))
	require.Equal(t, 1.0, testutil.ToFloat64(exporter.taskRequeuedTotal.WithLabelValues("pool.io", "1")))
	require.Equal(t, 3.0, testutil.ToFloat64(exporter.taskRemovedTotal.WithLabelValues("pool.io")))

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("pool.immediate", "0"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), histCount)
}

func TestMetricsExporter_BandLabelClamped(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	require.NoError(t, err)

	exporter.RecordTaskRequeued("q", 99)

	require.Equal(t, 1.0, testutil.ToFloat64(exporter.taskRequeuedTotal.WithLabelValues("q", "15")))
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("threadpool", reg, ExporterOptions{})
	require.NoError(t, err)
	second, err := NewMetricsExporter("threadpool", reg, ExporterOptions{})
	require.NoError(t, err)

	first.RecordTaskPanic("q", nil)
	second.RecordTaskPanic("q", nil)

	require.Equal(t, 2.0, testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("q")))
}

// TestMetricsExporter_FromQueue verifies the exporter receives events from a live queue
// Given: A TaskQueue configured with the exporter and a panicking task
// When: The task is executed
// Then: The panic counter and duration histogram are updated
func TestMetricsExporter_FromQueue(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("threadpool", reg, ExporterOptions{})
	require.NoError(t, err)

	q := core.NewTaskQueue("live", &core.QueueConfig{
		Logger:  core.NewNoOpLogger(),
		Metrics: exporter,
	})
	q.Add(core.NewTask("boom", func(ctx context.Context) { panic("boom") }), 2)

	require.True(t, q.ExecuteSingleTask(context.Background(), false, core.AnyQueueID))

	require.Equal(t, 1.0, testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("live")))
	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("live", "2"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), histCount)
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
