// Package settings holds the process-wide, JSON-backed tunables described
// in spec.md §6: Scan Settings and Memory Settings. Each group lives behind
// a sync.RWMutex and saves synchronously on every setter, matching the
// "Settings objects behind reader-writer locks; setters write, persist
// JSON, then return" policy of spec.md §5.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ThreadPriority mirrors original_source's scan_thread_priority.rs.
type ThreadPriority string

const (
	PriorityNormal      ThreadPriority = "Normal"
	PriorityAboveNormal ThreadPriority = "AboveNormal"
	PriorityHighest     ThreadPriority = "Highest"
)

// MemoryAlignment is one of 1/2/4/8/16.
type MemoryAlignment int

func (a MemoryAlignment) Valid() bool {
	switch a {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}

// MemoryReadMode selects when the value collector runs relative to the
// scan dispatch, per spec.md §4.5 step 6.
type MemoryReadMode string

const (
	ReadBeforeScan           MemoryReadMode = "ReadBeforeScan"
	ReadInterleavedWithScan  MemoryReadMode = "ReadInterleavedWithScan"
)

// ToleranceKind labels how a float equality tolerance is to be read;
// spec.md §9 leaves the exact semantics to the data type layer. The
// planner passes FloatingPointTolerance.Value to the comparators as an
// absolute tolerance and does not consult Kind, so "ulp" is stored and
// round-tripped but not applied as a ULP distance.
type ToleranceKind string

const (
	ToleranceAbsolute ToleranceKind = "absolute"
	ToleranceULP      ToleranceKind = "ulp"
)

type FloatingPointTolerance struct {
	Kind  ToleranceKind `json:"kind"`
	Value float64       `json:"value"`
}

// ScanSettings is the scan_settings.json document of spec.md §6.
type ScanSettings struct {
	ScanBufferKB             uint32                  `json:"scan_buffer_kb"`
	ThreadPriority           ThreadPriority          `json:"thread_priority"`
	FastScanEnabled          bool                    `json:"fast_scan_enabled"`
	FastScanAlignment        *MemoryAlignment        `json:"fast_scan_alignment,omitempty"`
	FastScanLastDigits       *uint8                  `json:"fast_scan_last_digits,omitempty"`
	PauseWhileScanning       bool                    `json:"pause_while_scanning"`
	RepeatScanDelayMs        uint64                  `json:"repeat_scan_delay_ms"`
	ResultsPageSizeAuto      bool                    `json:"results_page_size_auto"`
	ResultsPageSizeMax       uint32                  `json:"results_page_size_max"`
	ResultsPageSize          uint32                  `json:"results_page_size"`
	ResultsReadIntervalMs    uint64                  `json:"results_read_interval_ms"`
	ProjectReadIntervalMs    uint64                  `json:"project_read_interval_ms"`
	FreezeIntervalMs         uint64                  `json:"freeze_interval_ms"`
	MemoryAlignment          *MemoryAlignment        `json:"memory_alignment,omitempty"`
	MemoryReadMode           MemoryReadMode          `json:"memory_read_mode"`
	FloatingPointTolerance   FloatingPointTolerance  `json:"floating_point_tolerance"`
	IsSingleThreadedScan     bool                    `json:"is_single_threaded_scan"`
	DebugPerformValidation   bool                    `json:"debug_perform_validation_scan"`
}

// DefaultScanSettings mirrors the documented defaults in spec.md §6.
func DefaultScanSettings() ScanSettings {
	return ScanSettings{
		ScanBufferKB:          2048,
		ThreadPriority:        PriorityNormal,
		FastScanEnabled:       true,
		ResultsPageSizeAuto:   true,
		ResultsPageSizeMax:    1_000_000,
		ResultsPageSize:       1_000_000,
		ResultsReadIntervalMs: 1000,
		ProjectReadIntervalMs: 1000,
		FreezeIntervalMs:      100,
		MemoryReadMode:        ReadBeforeScan,
		FloatingPointTolerance: FloatingPointTolerance{
			Kind:  ToleranceAbsolute,
			Value: 0.00001,
		},
	}
}

// MemorySettings is the memory_settings.json document of spec.md §6.
type MemorySettings struct {
	MemoryTypeNone          bool   `json:"memory_type_none"`
	MemoryTypePrivate       bool   `json:"memory_type_private"`
	MemoryTypeImage         bool   `json:"memory_type_image"`
	MemoryTypeMapped        bool   `json:"memory_type_mapped"`
	RequiredWrite           bool   `json:"required_write"`
	RequiredExecute         bool   `json:"required_execute"`
	RequiredCopyOnWrite     bool   `json:"required_copy_on_write"`
	ExcludedWrite           bool   `json:"excluded_write"`
	ExcludedExecute         bool   `json:"excluded_execute"`
	ExcludedCopyOnWrite     bool   `json:"excluded_copy_on_write"`
	ExcludedNoCache         bool   `json:"excluded_no_cache"`
	ExcludedWriteCombine    bool   `json:"excluded_write_combine"`
	OnlyMainModuleImage     bool   `json:"only_main_module_image"`
	StartAddress            uint64 `json:"start_address"`
	EndAddress              uint64 `json:"end_address"`
	OnlyQueryUsermode       bool   `json:"only_query_usermode"`
}

// DefaultMemorySettings mirrors spec.md §6: private+image memory types,
// required write, only main module image, usermode-only.
func DefaultMemorySettings() MemorySettings {
	return MemorySettings{
		MemoryTypePrivate:   true,
		MemoryTypeImage:     true,
		RequiredWrite:       true,
		OnlyMainModuleImage: true,
		OnlyQueryUsermode:   true,
	}
}

// Store is the reader-writer-locked, JSON-persisted holder for both
// settings groups, matching golang-debug's preference for small focused
// structs over a single global config blob.
type Store struct {
	dir string
	log *logrus.Entry

	mu     sync.RWMutex
	scan   ScanSettings
	memory MemorySettings
}

func NewStore(dir string, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		dir:    dir,
		log:    log,
		scan:   DefaultScanSettings(),
		memory: DefaultMemorySettings(),
	}
}

// MaxFastScanLastDigits is spec.md §6's clamp on fast_scan_last_digits.
const MaxFastScanLastDigits = 15

// ClampFastScanLastDigits enforces MaxFastScanLastDigits; exported so
// callers that consult FastScanLastDigits directly (internal/planner)
// honor the same clamp as the settings store does on write.
func ClampFastScanLastDigits(v *uint8) *uint8 {
	if v == nil || *v <= MaxFastScanLastDigits {
		return v
	}
	clamped := uint8(MaxFastScanLastDigits)
	return &clamped
}

// Load reads both JSON files if present, leaving defaults for any that are
// missing or unreadable (fail-soft, matching spec.md §7 policy #8).
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := readJSON(filepath.Join(s.dir, "scan_settings.json"), &s.scan); err != nil {
		s.log.WithError(err).Debug("settings: using default scan settings")
	}
	s.scan.FastScanLastDigits = ClampFastScanLastDigits(s.scan.FastScanLastDigits)
	if err := readJSON(filepath.Join(s.dir, "memory_settings.json"), &s.memory); err != nil {
		s.log.WithError(err).Debug("settings: using default memory settings")
	}
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "settings: marshal")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "settings: mkdir")
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "settings: write")
}

func (s *Store) Scan() ScanSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan
}

func (s *Store) Memory() MemorySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory
}

// SetScan replaces the scan settings and persists them synchronously.
func (s *Store) SetScan(v ScanSettings) error {
	v.FastScanLastDigits = ClampFastScanLastDigits(v.FastScanLastDigits)
	s.mu.Lock()
	s.scan = v
	s.mu.Unlock()
	if err := writeJSON(filepath.Join(s.dir, "scan_settings.json"), v); err != nil {
		s.log.WithError(err).Error("settings: failed to persist scan settings")
		return err
	}
	return nil
}

// SetMemory replaces the memory settings and persists them synchronously.
func (s *Store) SetMemory(v MemorySettings) error {
	s.mu.Lock()
	s.memory = v
	s.mu.Unlock()
	if err := writeJSON(filepath.Join(s.dir, "memory_settings.json"), v); err != nil {
		s.log.WithError(err).Error("settings: failed to persist memory settings")
		return err
	}
	return nil
}
