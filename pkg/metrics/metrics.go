package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of the collected metrics
type Snapshot struct {
	// Request metrics
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	ActiveRequests     int64 `json:"active_requests"`

	// Response time metrics
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`

	// Resolution metrics, keyed by result source
	Resolutions map[string]int64 `json:"resolutions"`
	CacheHits   int64            `json:"cache_hits"`
	CacheMisses int64            `json:"cache_misses"`
	MutexWaits  int64            `json:"mutex_waits"`

	// Account source metrics
	RPCCalls       int64         `json:"rpc_calls"`
	RPCFailures    int64         `json:"rpc_failures"`
	AverageRPCTime time.Duration `json:"average_rpc_time"`

	Uptime time.Duration `json:"uptime"`
}

// Collector provides thread-safe metrics collection
type Collector struct {
	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	activeRequests     atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	mutexWaits         atomic.Int64
	rpcCalls           atomic.Int64
	rpcFailures        atomic.Int64

	mu                sync.Mutex
	completed         int64
	totalResponseTime time.Duration
	minResponseTime   time.Duration
	maxResponseTime   time.Duration
	totalRPCTime      time.Duration
	resolutions       map[string]int64
	startTime         time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

// RecordRequest records a new request
func (c *Collector) RecordRequest() {
	c.totalRequests.Add(1)
	c.activeRequests.Add(1)
}

// RecordRequestComplete records request completion
func (c *Collector) RecordRequestComplete(duration time.Duration, success bool) {
	c.activeRequests.Add(-1)
	if success {
		c.successfulRequests.Add(1)
	} else {
		c.failedRequests.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed++
	c.totalResponseTime += duration
	if c.minResponseTime == 0 || duration < c.minResponseTime {
		c.minResponseTime = duration
	}
	if duration > c.maxResponseTime {
		c.maxResponseTime = duration
	}
}

// RecordResolution counts a finished governance power resolution by source
func (c *Collector) RecordResolution(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolutions[source]++
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Add(1)
}

// RecordMutexWait records a request that queued behind another for the same wallet
func (c *Collector) RecordMutexWait() {
	c.mutexWaits.Add(1)
}

// RecordRPCCall records an account source call
func (c *Collector) RecordRPCCall(duration time.Duration, success bool) {
	c.rpcCalls.Add(1)
	if !success {
		c.rpcFailures.Add(1)
	}

	c.mu.Lock()
	c.totalRPCTime += duration
	c.mu.Unlock()
}

// Snapshot returns a copy of current metrics
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalRequests:      c.totalRequests.Load(),
		SuccessfulRequests: c.successfulRequests.Load(),
		FailedRequests:     c.failedRequests.Load(),
		ActiveRequests:     c.activeRequests.Load(),
		MinResponseTime:    c.minResponseTime,
		MaxResponseTime:    c.maxResponseTime,
		Resolutions:        make(map[string]int64, len(c.resolutions)),
		CacheHits:          c.cacheHits.Load(),
		CacheMisses:        c.cacheMisses.Load(),
		MutexWaits:         c.mutexWaits.Load(),
		RPCCalls:           c.rpcCalls.Load(),
		RPCFailures:        c.rpcFailures.Load(),
		Uptime:             time.Since(c.startTime),
	}
	for k, v := range c.resolutions {
		s.Resolutions[k] = v
	}
	if c.completed > 0 {
		s.AverageResponseTime = c.totalResponseTime / time.Duration(c.completed)
	}
	if s.RPCCalls > 0 {
		s.AverageRPCTime = c.totalRPCTime / time.Duration(s.RPCCalls)
	}
	return s
}

// Uptime returns the time since collection started
func (c *Collector) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startTime)
}

// Reset resets all metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, counter := range []*atomic.Int64{
		&c.totalRequests, &c.successfulRequests, &c.failedRequests, &c.activeRequests,
		&c.cacheHits, &c.cacheMisses, &c.mutexWaits, &c.rpcCalls, &c.rpcFailures,
	} {
		counter.Store(0)
	}

	c.completed = 0
	c.totalResponseTime = 0
	c.minResponseTime = 0
	c.maxResponseTime = 0
	c.totalRPCTime = 0
	c.resolutions = make(map[string]int64)
	c.startTime = time.Now()
}

// CacheHitRatio returns the cache hit ratio as a percentage
func (c *Collector) CacheHitRatio() float64 {
	return percent(c.cacheHits.Load(), c.cacheHits.Load()+c.cacheMisses.Load())
}

// SuccessRate returns the request success rate as a percentage
func (c *Collector) SuccessRate() float64 {
	return percent(c.successfulRequests.Load(), c.totalRequests.Load())
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
