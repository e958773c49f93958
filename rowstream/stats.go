package rowstream

import "sync/atomic"

// Stats holds per-call I/O counters.
// Counters may be updated and read from different goroutines.
type Stats struct {
	inputChunks  atomic.Int64
	inputRows    atomic.Int64
	outputChunks atomic.Int64
	outputRows   atomic.Int64
}

// RecordInput records one inbound chunk with the given row count.
func (s *Stats) RecordInput(rows int) {
	s.inputChunks.Add(1)
	s.inputRows.Add(int64(rows))
}

// RecordOutput records one outbound chunk with the given row count.
func (s *Stats) RecordOutput(rows int) {
	s.outputChunks.Add(1)
	s.outputRows.Add(int64(rows))
}

// InputChunks returns the number of inbound chunks.
func (s *Stats) InputChunks() int64 { return s.inputChunks.Load() }

// InputRows returns the number of inbound rows.
func (s *Stats) InputRows() int64 { return s.inputRows.Load() }

// OutputChunks returns the number of outbound chunks.
func (s *Stats) OutputChunks() int64 { return s.outputChunks.Load() }

// OutputRows returns the number of outbound rows.
func (s *Stats) OutputRows() int64 { return s.outputRows.Load() }
