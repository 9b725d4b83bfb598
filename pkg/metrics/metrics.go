package metrics

import (
	"sync"
	"time"
)

const latencyWindow = 100

// Collector is a small in-process metrics store. Counters are keyed by name
// and label; latencies keep a sliding window of recent observations.
type Collector struct {
	counters  map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

func (c *Collector) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

func (c *Collector) ObserveLatency(name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := append(c.latencies[name], d)
	if len(window) > latencyWindow {
		window = window[len(window)-latencyWindow:]
	}
	c.latencies[name] = window
}

func (c *Collector) Counters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		out[name] = v
	}
	return out
}

// Latencies reports the average of the recorded window per metric, in
// milliseconds.
func (c *Collector) Latencies() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(c.latencies))
	for name, durations := range c.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		out[name] = float64(sum) / float64(len(durations)) / float64(time.Millisecond)
	}
	return out
}
