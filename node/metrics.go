package node

import (
	"math"
	"time"

	"github.com/NethermindEth/devnet/db"
	"github.com/NethermindEth/devnet/sequencer"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

func makeDBMetrics(reg prometheus.Registerer) db.EventListener {
	latencyBuckets := []float64{
		25,
		50,
		75,
		100,
		250,
		500,
		1000, // 1ms
		2000,
		3000,
		4000,
		5000,
		10000,
		50000,
		500000,
		math.Inf(0),
	}
	readLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "read_latency",
		Buckets:   latencyBuckets,
	})
	writeLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "write_latency",
		Buckets:   latencyBuckets,
	})
	commitLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "commit_latency",
		Buckets: []float64{
			5000,
			10000,
			20000,
			30000,
			40000,
			50000,
			100000, // 100ms
			200000,
			300000,
			500000,
			1000000,
			math.Inf(0),
		},
	})

	reg.MustRegister(readLatencyHistogram, writeLatencyHistogram, commitLatency)
	return &db.SelectiveListener{
		OnIOCb: func(write bool, duration time.Duration) {
			if write {
				writeLatencyHistogram.Observe(float64(duration.Microseconds()))
			} else {
				readLatencyHistogram.Observe(float64(duration.Microseconds()))
			}
		},
		OnCommitCb: func(duration time.Duration) {
			commitLatency.Observe(float64(duration.Microseconds()))
		},
	}
}

func makeSequencerMetrics(reg prometheus.Registerer) sequencer.EventListener {
	drips := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sequencer",
		Name:      "drips",
	})
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sequencer",
		Name:      "executions",
	}, []string{"status"})
	executionLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sequencer",
		Name:      "execution_latency",
	})
	blockNumber := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sequencer",
		Name:      "closed_block_number",
	})
	blockChanges := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sequencer",
		Name:      "block_state_changes",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	reg.MustRegister(drips, executions, executionLatency, blockNumber, blockChanges)
	return &sequencer.SelectiveListener{
		OnDripCb: func() {
			drips.Inc()
		},
		OnExecutionCb: func(took time.Duration, err error) {
			status := "ok"
			if err != nil {
				status = "failed"
			}
			executions.WithLabelValues(status).Inc()
			executionLatency.Observe(took.Seconds())
		},
		OnBlockClosedCb: func(number uint64, diffLength int) {
			blockNumber.Set(float64(number))
			blockChanges.Observe(float64(diffLength))
		},
	}
}

func makeDevnetMetrics(reg prometheus.Registerer, version string) {
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "devnet",
		Name:        "info",
		Help:        "Information about the devnet binary",
		ConstLabels: prometheus.Labels{"version": version},
	}))
}

func makePebbleMetrics(reg prometheus.Registerer, pebbleDB *pebble.DB) {
	blockCacheSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pebble",
		Subsystem: "block_cache",
		Name:      "size",
	}, func() float64 {
		return float64(pebbleDB.Metrics().BlockCache.Size)
	})
	blockHitRate := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pebble",
		Subsystem: "block_cache",
		Name:      "hit_rate",
	}, func() float64 {
		metrics := pebbleDB.Metrics()
		return float64(metrics.BlockCache.Hits) / float64(metrics.BlockCache.Hits+metrics.BlockCache.Misses)
	})
	tableCacheSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pebble",
		Subsystem: "table_cache",
		Name:      "size",
	}, func() float64 {
		return float64(pebbleDB.Metrics().TableCache.Size)
	})
	reg.MustRegister(blockCacheSize, blockHitRate, tableCacheSize)
}
