package runmanager

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryMax is RUN_HISTORY_MAX's default: terminal runs retained
// per KB before the oldest is evicted.
const DefaultHistoryMax = 100

func activeKey(kbID, sourceID string) string { return kbID + "\x00" + sourceID }

// Option configures a [Manager].
type Option func(*Manager)

// WithHistoryMax overrides the per-KB terminal-run retention bound.
// Default: [DefaultHistoryMax].
func WithHistoryMax(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyMax = n
		}
	}
}

// Manager tracks every ingestion run's lifecycle and enforces at most one
// running run per (kb_id, source_id). Safe for concurrent use; the whole
// active-run map is guarded by a single mutex, kept to O(1) critical
// sections per spec's concurrency model.
type Manager struct {
	mu           sync.Mutex
	runs         map[string]*Run     // run_id -> Run
	active       map[string]string   // activeKey(kb_id, source_id) -> run_id
	historyOrder map[string][]string // kb_id -> terminal run_ids, oldest first
	historyMax   int
}

// New constructs an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		runs:         make(map[string]*Run),
		active:       make(map[string]string),
		historyOrder: make(map[string][]string),
		historyMax:   DefaultHistoryMax,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StartRun begins a new run for (kbID, sourceID). It returns [*Conflict] if
// a run is already active for the same pair.
func (m *Manager) StartRun(kbID, sourceID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := activeKey(kbID, sourceID)
	if runID, ok := m.active[key]; ok {
		return nil, &Conflict{CurrentRunID: runID}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("runmanager: generate run id: %w", err)
	}

	run := &Run{
		RunID:     id.String(),
		KBID:      kbID,
		SourceID:  sourceID,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	m.runs[run.RunID] = run
	m.active[key] = run.RunID

	snapshot := *run
	return &snapshot, nil
}

// UpdateStats adds delta to runID's counters. Only valid while the run is
// still running.
func (m *Manager) UpdateStats(runID string, delta Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("runmanager: unknown run %q", runID)
	}
	if run.State != StateRunning {
		return fmt.Errorf("runmanager: run %q is terminal (%s), cannot update stats", runID, run.State)
	}
	run.DocumentsProcessed += delta.DocumentsProcessed
	run.NodesCreated += delta.NodesCreated
	run.NodesUpdated += delta.NodesUpdated
	run.RelationshipsCreated += delta.RelationshipsCreated
	run.RelationshipsUpdated += delta.RelationshipsUpdated
	return nil
}

// AddError appends a recorded error to runID. Only valid while the run is
// still running.
func (m *Manager) AddError(runID, kind, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("runmanager: unknown run %q", runID)
	}
	if run.State != StateRunning {
		return fmt.Errorf("runmanager: run %q is terminal (%s), cannot add error", runID, run.State)
	}
	run.Errors = append(run.Errors, RunError{At: time.Now(), Kind: kind, Message: message})
	return nil
}

// Finish transitions runID out of running: completed if it recorded at
// least one processed document, failed otherwise. Transitions from a
// terminal state are rejected.
func (m *Manager) Finish(runID string) error {
	return m.terminate(runID, func(run *Run) {
		if run.DocumentsProcessed >= 1 {
			run.State = StateCompleted
		} else {
			run.State = StateFailed
		}
	})
}

// Cancel transitions runID to cancelled regardless of its counters.
func (m *Manager) Cancel(runID string) error {
	return m.terminate(runID, func(run *Run) {
		run.State = StateCancelled
	})
}

func (m *Manager) terminate(runID string, setState func(*Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("runmanager: unknown run %q", runID)
	}
	if run.State != StateRunning {
		return fmt.Errorf("runmanager: run %q is already terminal (%s)", runID, run.State)
	}

	run.FinishedAt = time.Now()
	setState(run)

	delete(m.active, activeKey(run.KBID, run.SourceID))
	order := append(m.historyOrder[run.KBID], run.RunID)
	if len(order) > m.historyMax {
		evicted := order[0]
		delete(m.runs, evicted)
		order = order[1:]
	}
	m.historyOrder[run.KBID] = order
	return nil
}

// Get returns a copy of runID's current state.
func (m *Manager) Get(runID string) (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// ActiveRunID reports the run_id currently active for (kbID, sourceID), if
// any.
func (m *Manager) ActiveRunID(kbID, sourceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[activeKey(kbID, sourceID)]
	return id, ok
}

// runsForKB returns every run (active and historical) recorded for kbID.
// Caller must hold m.mu.
func (m *Manager) runsForKB(kbID string) []*Run {
	var out []*Run
	for _, id := range m.historyOrder[kbID] {
		if run, ok := m.runs[id]; ok {
			out = append(out, run)
		}
	}
	for key, id := range m.active {
		if len(key) > len(kbID) && key[:len(kbID)] == kbID && key[len(kbID)] == 0 {
			if run, ok := m.runs[id]; ok {
				out = append(out, run)
			}
		}
	}
	return out
}
