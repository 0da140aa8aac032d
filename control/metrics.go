// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Pool statistics exported as Prometheus gauges.
// Sources register by owner; every scrape reads them afresh.

package control

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-mempool/api"
)

var (
	descLive = prometheus.NewDesc("mempool_blocks_live",
		"Number of blocks currently handed out", []string{"owner"}, nil)
	descPeak = prometheus.NewDesc("mempool_blocks_peak",
		"Highest number of blocks handed out at once", []string{"owner"}, nil)
	descBlobs = prometheus.NewDesc("mempool_blobs",
		"Number of blobs held from the heap", []string{"owner"}, nil)
	descCapacity = prometheus.NewDesc("mempool_capacity_bytes",
		"Exact block bytes held in blobs", []string{"owner"}, nil)
	descSize = prometheus.NewDesc("mempool_size_bytes",
		"Approximate pool size (blobs * element count * block size)", []string{"owner"}, nil)
	descFree = prometheus.NewDesc("mempool_blocks_free",
		"Number of blocks waiting on the free list", []string{"owner"}, nil)
)

// MetricsRegistry tracks pool statistics sources and implements
// prometheus.Collector over them.
type MetricsRegistry struct {
	mu      sync.RWMutex
	sources map[string]api.StatsSource
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		sources: make(map[string]api.StatsSource),
	}
}

// Register adds or replaces the source reported under its owner tag.
// Pools are not safe for concurrent use; the caller must make sure scrapes
// do not race with the pool's owner or accept approximate readings.
func (mr *MetricsRegistry) Register(src api.StatsSource) {
	owner := src.Stats().Owner
	mr.mu.Lock()
	mr.sources[owner] = src
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Unregister drops the source for owner.
func (mr *MetricsRegistry) Unregister(owner string) {
	mr.mu.Lock()
	delete(mr.sources, owner)
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest statistics by owner.
func (mr *MetricsRegistry) GetSnapshot() map[string]api.PoolStats {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]api.PoolStats, len(mr.sources))
	for k, src := range mr.sources {
		out[k] = src.Stats()
	}
	return out
}

// Updated returns when the set of sources last changed.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// Describe implements prometheus.Collector.
func (mr *MetricsRegistry) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{descLive, descPeak, descBlobs, descCapacity, descSize, descFree} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (mr *MetricsRegistry) Collect(ch chan<- prometheus.Metric) {
	for owner, st := range mr.GetSnapshot() {
		gauge := func(d *prometheus.Desc, v int) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), owner)
		}
		gauge(descLive, st.Count)
		gauge(descPeak, st.PeakCount)
		gauge(descBlobs, st.Blobs)
		gauge(descCapacity, st.CapacityBytes)
		gauge(descSize, st.SizeBytes)
		gauge(descFree, st.FreeBlocks)
	}
}

var _ prometheus.Collector = (*MetricsRegistry)(nil)
