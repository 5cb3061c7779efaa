package tracing

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sarchlab/lagbuffer"
)

var _ = Describe("MetricsTracer", func() {
	var (
		reader *sdkmetric.ManualReader
		t      *MetricsTracer
	)

	collect := func() metricdata.ResourceMetrics {
		var rm metricdata.ResourceMetrics
		Expect(reader.Collect(context.Background(), &rm)).To(Succeed())
		return rm
	}

	find := func(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
		for _, scope := range rm.ScopeMetrics {
			for i := range scope.Metrics {
				if scope.Metrics[i].Name == name {
					return &scope.Metrics[i]
				}
			}
		}

		return nil
	}

	BeforeEach(func() {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		var err error
		t, err = NewMetricsTracer(mp.Meter("test"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should count records per buffer and position", func() {
		b := newWindowed("Buffer")
		CollectTrace(b, t)

		b.Update(insert(2))
		b.Update(insert(3))
		b.Update(insert(1))

		records := find(collect(), "lagbuffer.records")
		Expect(records).NotTo(BeNil())

		sum, ok := records.Data.(metricdata.Sum[int64])
		Expect(ok).To(BeTrue())

		byPos := make(map[string]int64)
		for _, dp := range sum.DataPoints {
			pos, _ := dp.Attributes.Value(attribute.Key("position"))
			byPos[pos.AsString()] = dp.Value
		}

		Expect(byPos).To(HaveKeyWithValue("In-Order Update", int64(2)))
		Expect(byPos).To(HaveKeyWithValue("Out-of-Order Update", int64(1)))
		Expect(byPos).To(HaveKeyWithValue("Fold", int64(1)))
	})

	It("should record replay lengths and dropped entries", func() {
		t.Trace(Record{Buffer: "B", Pos: lagbuffer.HookPosOutOfOrder, Replayed: 5})
		t.Trace(Record{Buffer: "B", Pos: lagbuffer.HookPosSwap, Dropped: 7})

		rm := collect()

		hist, ok := find(rm, "lagbuffer.replayed").Data.(metricdata.Histogram[int64])
		Expect(ok).To(BeTrue())
		Expect(hist.DataPoints).To(HaveLen(1))
		Expect(hist.DataPoints[0].Count).To(Equal(uint64(1)))
		Expect(hist.DataPoints[0].Sum).To(Equal(int64(5)))

		dropped, ok := find(rm, "lagbuffer.dropped").Data.(metricdata.Sum[int64])
		Expect(ok).To(BeTrue())
		Expect(dropped.DataPoints).To(HaveLen(1))
		Expect(dropped.DataPoints[0].Value).To(Equal(int64(7)))
	})
})
