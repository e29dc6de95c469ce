package beaconlib

import (
	"encoding/json"
	"sync"
	"time"
)

// UsageStats tracks how a provider behaves: how often it answers,
// how often it fails and how fast it is.
type UsageStats struct {
	Name string

	mutex        sync.Mutex
	lastUsed     time.Time
	lastLatency  time.Duration
	lastError    string
	successCount uint64
	failureCount uint64
}

func (u *UsageStats) Used(err error, elapsed time.Duration) {
	now := time.Now()

	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.lastUsed = now
	u.lastLatency = elapsed

	if err == nil {
		u.successCount++
	} else {
		u.failureCount++
		u.lastError = err.Error()
	}
}

func (u *UsageStats) MarshalJSON() ([]byte, error) {
	var lastUsedTime int64

	u.mutex.Lock()

	if !u.lastUsed.IsZero() {
		lastUsedTime = u.lastUsed.Unix()
	}

	rawStruct := struct {
		Name          string  `json:"name"`
		LastUsed      int64   `json:"last_used"`
		LastLatencyMS float64 `json:"last_latency_ms"`
		LastError     string  `json:"last_error"`
		SuccessCount  uint64  `json:"success_count"`
		FailureCount  uint64  `json:"failure_count"`
	}{
		Name:          u.Name,
		LastUsed:      lastUsedTime,
		LastLatencyMS: float64(u.lastLatency) / float64(time.Millisecond),
		LastError:     u.lastError,
		SuccessCount:  u.successCount,
		FailureCount:  u.failureCount,
	}

	u.mutex.Unlock()

	return json.Marshal(&rawStruct)
}
