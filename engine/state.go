package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/market"
)

// StateVersion is the current on-disk state schema version.
const StateVersion = "1.1.0"

// stateVersionLegacy is readable via migration.
const stateVersionLegacy = "1.0.0"

// DefaultStatePath is where the engine persists between cycles.
const DefaultStatePath = "./engine-state.json"

// EngineState is the full persisted engine snapshot.
type EngineState struct {
	Version         string                    `json:"version"`
	Timestamp       time.Time                 `json:"timestamp"`
	Queue           []market.PendingSignal    `json:"queue"`
	Positions       []market.Position         `json:"positions"`
	ClosedPositions []market.Position         `json:"closed_positions"`
	Cooldowns       []Cooldown                `json:"cooldowns"`
	OpenOrders      map[string][]string       `json:"open_orders"`
	StrategyState   map[string]map[string]any `json:"strategy_state"`
}

func emptyState() EngineState {
	return EngineState{
		Version:       StateVersion,
		OpenOrders:    make(map[string][]string),
		StrategyState: make(map[string]map[string]any),
	}
}

// StateStore persists engine state as JSON with atomic replace semantics:
// write to a temp file, fsync, rename over the target.
type StateStore struct {
	path string
	log  *zap.Logger
}

func NewStateStore(path string, log *zap.Logger) *StateStore {
	if path == "" {
		path = DefaultStatePath
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StateStore{path: path, log: log}
}

func (s *StateStore) Path() string { return s.path }

// Save writes the snapshot atomically. A crash mid-save leaves the previous
// file intact.
func (s *StateStore) Save(state EngineState) error {
	state.Version = StateVersion
	state.Timestamp = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A missing file yields an empty state.
// Version 1.0.0 files are migrated in place of rejection; anything else
// unreadable is moved aside to a .corrupt backup and the engine starts fresh.
func (s *StateStore) Load() (EngineState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyState(), nil
	}
	if err != nil {
		return emptyState(), fmt.Errorf("read state file: %w", err)
	}

	var state EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		s.backupCorrupt(data, "unparseable")
		return emptyState(), nil
	}

	switch state.Version {
	case StateVersion:
	case stateVersionLegacy:
		s.log.Info("migrating state file",
			zap.String("from", stateVersionLegacy),
			zap.String("to", StateVersion))
		migrateLegacy(&state)
	default:
		s.backupCorrupt(data, "incompatible version "+state.Version)
		return emptyState(), nil
	}

	if state.OpenOrders == nil {
		state.OpenOrders = make(map[string][]string)
	}
	if state.StrategyState == nil {
		state.StrategyState = make(map[string]map[string]any)
	}
	return state, nil
}

// Reset deletes the persisted state file.
func (s *StateStore) Reset() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// migrateLegacy upgrades a 1.0.0 snapshot, which predates per-strategy
// state and open-order tracking.
func migrateLegacy(state *EngineState) {
	state.Version = StateVersion
	if state.OpenOrders == nil {
		state.OpenOrders = make(map[string][]string)
	}
	if state.StrategyState == nil {
		state.StrategyState = make(map[string]map[string]any)
	}
}

func (s *StateStore) backupCorrupt(data []byte, reason string) {
	backup := s.path + ".corrupt"
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		s.log.Error("back up corrupt state", zap.Error(err))
		return
	}
	s.log.Warn("discarding state file",
		zap.String("reason", reason),
		zap.String("backup", backup))
}
