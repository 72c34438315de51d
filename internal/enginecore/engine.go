// Package enginecore wires every subsystem into the single façade
// (Engine) described by spec.md §6: process attach, memory
// query/read/write, snapshot, planner, scanner, pointer scanner, settings,
// task registry, and event bus, behind one command/response surface.
package enginecore

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/depcontainer"
	"github.com/memscan/engine/internal/events"
	"github.com/memscan/engine/internal/executor"
	"github.com/memscan/engine/internal/memio"
	"github.com/memscan/engine/internal/memquery"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/procattach"
	"github.com/memscan/engine/internal/settings"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

// ElementScanTimeout is the per-scan-pass wall-clock cap of spec.md §5:
// "the scan executor enforces a 30s wall-clock timeout per scan pass".
const ElementScanTimeout = 30 * time.Second

// enableScanResultAutoRefreshEnv is spec.md §6's opt-in env var that turns
// on the periodic scan-result refresh loop.
const enableScanResultAutoRefreshEnv = "MEMSCAN_ENABLE_SCAN_RESULT_AUTO_REFRESH"

// Engine is the process-bound façade: one Engine per attached target
// process.
type Engine struct {
	Log *logrus.Entry

	Process  procattach.ProcessHandle
	ReaderWriter memio.ReaderWriter
	Query    memquery.Queryer
	Retrieval *memquery.Retrieval

	// Settings persists both settings groups to JSON. Deps/ScanSettingsDep/
	// MemorySettingsDep are the engine-scoped dependency-container values
	// that the planner and executors actually read, per spec.md §9's
	// replacement for a global settings singleton: Settings.SetScan/SetMemory
	// persist to disk, SettingsSet then commits the same value into the
	// matching Dependency so readers never see a torn or stale settings
	// struct.
	Settings          *settings.Store
	Deps              *depcontainer.Container
	ScanSettingsDep   *depcontainer.Dependency[settings.ScanSettings]
	MemorySettingsDep *depcontainer.Dependency[settings.MemorySettings]

	Snapshot *snapshot.Snapshot
	Executor *executor.Executor
	Tasks    *taskregistry.Registry
	Events   *events.Bus

	frozen map[scanResultKey]bool

	lastPointerResults []pointerResultRow

	autoRefreshCancel context.CancelFunc
}

type scanResultKey struct {
	Address uint64
	Type    datatype.ID
}

// New attaches to pid and assembles every subsystem. settingsDir holds the
// JSON settings files; log may be nil.
func New(pid int, settingsDir string, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	handle, err := procattach.Attach(pid)
	if err != nil {
		return nil, errors.Wrap(err, "enginecore: attach")
	}

	rw := memio.NewLinuxReaderWriter(pid, log)
	q := memquery.NewLinuxQueryer(pid, handle.Info().Bitness, log)
	retrieval := memquery.NewRetrieval(q, log)

	store := settings.NewStore(settingsDir, log)
	store.Load()

	deps := depcontainer.NewContainer(log)

	e := &Engine{
		Log:               log,
		Process:           handle,
		ReaderWriter:      rw,
		Query:             q,
		Retrieval:         retrieval,
		Settings:          store,
		Deps:              deps,
		ScanSettingsDep:   depcontainer.NewDependency(deps, store.Scan()),
		MemorySettingsDep: depcontainer.NewDependency(deps, store.Memory()),
		Snapshot:          snapshot.New(),
		Executor:          executor.New(rw, int(store.Scan().ScanBufferKB)*1024, 0),
		Tasks:             taskregistry.NewRegistry(),
		Events:            events.NewBus(),
		frozen:            make(map[scanResultKey]bool),
	}

	if os.Getenv(enableScanResultAutoRefreshEnv) != "" {
		e.startAutoRefresh()
	}
	return e, nil
}

func (e *Engine) Close() error {
	if e.autoRefreshCancel != nil {
		e.autoRefreshCancel()
	}
	return e.Process.Detach()
}

// startAutoRefresh launches the background loop gated on
// MEMSCAN_ENABLE_SCAN_RESULT_AUTO_REFRESH (spec.md §6): every
// results_read_interval_ms, re-collect the current snapshot's values and
// republish ScanResultsUpdated so a subscriber doesn't have to drive
// ScanCollectValues itself to keep results fresh.
func (e *Engine) startAutoRefresh() {
	ctx, cancel := context.WithCancel(context.Background())
	e.autoRefreshCancel = cancel

	go func() {
		for {
			interval := time.Duration(e.scanSettings().ResultsReadIntervalMs) * time.Millisecond
			if interval <= 0 {
				interval = time.Second
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}

			if e.Snapshot.IsEmpty() {
				continue
			}
			s := e.scanSettings()
			if err := e.Executor.Collector.Collect(ctx, e.Snapshot, nil, s.PauseWhileScanning); err != nil {
				e.Log.WithError(err).Debug("enginecore: auto-refresh collect failed")
				continue
			}
			e.Events.Publish(events.Event{Kind: events.ScanResultsUpdated, Payload: map[string]bool{"is_new_scan": false}})
		}
	}()
}

// scanSettings reads the engine-scoped scan settings dependency.
func (e *Engine) scanSettings() settings.ScanSettings {
	return e.ScanSettingsDep.Read()
}

// memorySettings reads the engine-scoped memory settings dependency.
func (e *Engine) memorySettings() settings.MemorySettings {
	return e.MemorySettingsDep.Read()
}

// ScanNew builds a baseline snapshot from settings-filtered pages (spec.md
// §6's ScanNew), publishing ScanResultsUpdated{is_new_scan:true}.
func (e *Engine) ScanNew() error {
	mem := e.memorySettings()
	descriptors := e.Retrieval.FromSettings(&mem)
	regions := snapshot.Build(descriptors)
	e.Snapshot.SetRegions(regions)
	e.frozen = make(map[scanResultKey]bool)

	e.Events.Publish(events.Event{Kind: events.ScanResultsUpdated, Payload: map[string]bool{"is_new_scan": true}})
	e.Log.WithField("regions", len(regions)).Info("enginecore: new scan baseline built")
	return nil
}

// ScanCollectValues refreshes the current snapshot's current/previous
// buffers, tracked by a trackable task.
func (e *Engine) ScanCollectValues(ctx context.Context) *taskregistry.Task {
	task := taskregistry.NewTask("scan-collect-values")
	e.Tasks.Register(task)

	go func() {
		defer e.Tasks.Unregister(task.ID)
		if err := e.Executor.Collector.Collect(ctx, e.Snapshot, task, e.scanSettings().PauseWhileScanning); err != nil {
			task.Fail(errors.Wrap(err, "enginecore: value collection failed"))
			return
		}
		task.Complete()
	}()
	return task
}

// ElementScan narrows the snapshot's per-type filters by constraints,
// enforcing the 30s wall-clock timeout of spec.md §5.
func (e *Engine) ElementScan(ctx context.Context, constraints []planner.AnonymousConstraint, typeRefs []datatype.ID) (*taskregistry.Task, error) {
	var types []*datatype.Type
	for _, id := range typeRefs {
		if t := datatype.Lookup(id); t != nil {
			types = append(types, t)
		}
	}

	s := e.scanSettings()
	plan, err := planner.Plan(constraints, types, s)
	if err != nil {
		return nil, err
	}

	task := taskregistry.NewTask("element-scan")
	e.Tasks.Register(task)

	baseline := e.snapshotFilterBaseline()

	scanCtx, cancel := context.WithTimeout(ctx, ElementScanTimeout)
	go func() {
		defer cancel()
		defer e.Tasks.Unregister(task.ID)

		err := e.Executor.RunElementScan(scanCtx, e.Snapshot, plan, s, task)
		if scanCtx.Err() == context.DeadlineExceeded {
			e.restoreFilterBaseline(baseline)
			task.Timeout()
			return
		}
		if task.Cancelled() {
			e.restoreFilterBaseline(baseline)
			return
		}
		if err != nil {
			task.Fail(err)
			return
		}
		task.Complete()
		e.Events.Publish(events.Event{Kind: events.ScanResultsUpdated, Payload: map[string]bool{"is_new_scan": false}})
	}()
	return task, nil
}

// snapshotFilterBaseline captures every region's current filter state
// before a scan pass starts, so an aborted pass can be rolled back to it
// instead of leaving already-processed regions' filters narrowed in
// place, per spec.md §5.
func (e *Engine) snapshotFilterBaseline() map[*snapshot.Region]map[string]*snapshot.FilterCollection {
	regions := e.Snapshot.Regions()
	baseline := make(map[*snapshot.Region]map[string]*snapshot.FilterCollection, len(regions))
	for _, r := range regions {
		baseline[r] = r.SnapshotFilters()
	}
	return baseline
}

// restoreFilterBaseline undoes any in-place filter narrowing left behind
// by a cancelled or timed-out scan pass.
func (e *Engine) restoreFilterBaseline(baseline map[*snapshot.Region]map[string]*snapshot.FilterCollection) {
	for _, r := range e.Snapshot.Regions() {
		if fc, ok := baseline[r]; ok {
			r.RestoreFilters(fc)
		}
	}
}
