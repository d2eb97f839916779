package observability

import (
	"sync"
	"time"
)

// RequestKey identifies one route/method/status series.
type RequestKey struct {
	Path   string
	Method string
	Status int
}

// ErrorKey identifies one route/method/error-code series. Code is a
// DomainError code such as ILLEGAL_TRANSITION or LOCK_TIMEOUT.
type ErrorKey struct {
	Path   string
	Method string
	Code   string
}

// Metrics keeps in-memory request and error counters.
type Metrics struct {
	mu        sync.Mutex
	requests  map[RequestKey]int64
	totalTime map[RequestKey]time.Duration
	errors    map[ErrorKey]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requests:  make(map[RequestKey]int64),
		totalTime: make(map[RequestKey]time.Duration),
		errors:    make(map[ErrorKey]int64),
	}
}

// RecordRequest counts one completed request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := RequestKey{Path: path, Method: method, Status: status}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key]++
	m.totalTime[key] += duration
}

// RecordError counts one request that failed with the given error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[ErrorKey{Path: path, Method: method, Code: code}]++
}

// RequestCount returns the number of requests recorded for the series.
func (m *Metrics) RequestCount(key RequestKey) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[key]
}

// ErrorCount returns the number of errors recorded for the series.
func (m *Metrics) ErrorCount(key ErrorKey) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[key]
}
