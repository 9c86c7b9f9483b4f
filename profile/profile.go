// Package profile tracks storage allocations made by the array package's
// realizer: enable it, run a workload, and Dump a JSON report of the bytes
// allocated and the allocation each realized op made. Frees are not
// tracked, so the reported peak is the running total of recorded bytes
// and never decreases within a session. Kept on the
// standard library's encoding/json rather than a third-party codec: the
// report is a small, internal, one-shot snapshot with no wire-compat or
// streaming requirement, exactly the case the standard encoder is built
// for, and nothing in the example pack reaches for a replacement there.
package profile

import (
	"encoding/json"
	"sync"
)

// OpRecord is one realized node's allocation.
type OpRecord struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
	Bytes int64  `json:"bytes"`
}

// Report is the full snapshot Dump returns.
type Report struct {
	Ops              []OpRecord `json:"ops"`
	PeakBytes        int64      `json:"peak_bytes"`
	TotalAllocations int        `json:"total_allocations"`
}

var (
	mu           sync.Mutex
	enabled      bool
	currentBytes int64
	peakBytes    int64
	ops          []OpRecord
)

// Enable starts recording allocations, resetting any prior session.
func Enable() {
	mu.Lock()
	defer mu.Unlock()

	enabled = true
	currentBytes = 0
	peakBytes = 0
	ops = nil
}

// Disable stops recording; Dump still returns whatever was captured.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	enabled = false
}

// Enabled reports whether recording is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()

	return enabled
}

// Record logs a single realized node's allocation, updating the peak. A
// no-op when recording is disabled, so callers can call it unconditionally.
func Record(id int64, kind string, shape []int, dtypeName string, bytes int64) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled {
		return
	}

	sh := make([]int, len(shape))
	copy(sh, shape)

	currentBytes += bytes
	if currentBytes > peakBytes {
		peakBytes = currentBytes
	}

	ops = append(ops, OpRecord{ID: id, Kind: kind, Shape: sh, DType: dtypeName, Bytes: bytes})
}

// Dump renders the current session as indented JSON.
func Dump() ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()

	r := Report{
		Ops:              append([]OpRecord(nil), ops...),
		PeakBytes:        peakBytes,
		TotalAllocations: len(ops),
	}

	return json.MarshalIndent(r, "", "  ")
}
