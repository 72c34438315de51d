package enginecore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/depcontainer"
	"github.com/memscan/engine/internal/events"
	"github.com/memscan/engine/internal/executor"
	"github.com/memscan/engine/internal/memquery"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/settings"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

// noModulesQueryer is a Queryer stub with no pages and no modules, enough
// to satisfy enginecore's AddressToModule lookups in tests that never
// exercise region enumeration.
type noModulesQueryer struct{}

func (noModulesQueryer) VirtualPages(required, excluded memquery.Protection, allowed memquery.AllocationType, start, end uint64, bounds memquery.BoundsHandling) []memquery.Descriptor {
	return nil
}
func (noModulesQueryer) Modules() []memquery.Module { return nil }
func (noModulesQueryer) MinUsermodeAddress() uint64 { return 0 }
func (noModulesQueryer) MaxUsermodeAddress() uint64 { return 1 << 47 }

// zeroReaderWriter backs every address with zero bytes, so an
// ElementScan for i32==0 matches the whole region.
type zeroReaderWriter struct{}

func (zeroReaderWriter) ReadBytes(address uint64, buf []byte) bool {
	for i := range buf {
		buf[i] = 0
	}
	return true
}

func (zeroReaderWriter) WriteBytes(address uint64, data []byte) bool { return true }

// newTestEngine builds an Engine by hand, skipping enginecore.New's ptrace
// attach, so the plumbing between ScanNew, ElementScan, and
// ScanResultsQuery can be exercised without a real attached process.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := logrus.NewEntry(logrus.StandardLogger())
	store := settings.NewStore(t.TempDir(), log)
	store.Load()
	deps := depcontainer.NewContainer(log)

	return &Engine{
		Log:               log,
		ReaderWriter:      zeroReaderWriter{},
		Query:             noModulesQueryer{},
		Settings:          store,
		Deps:              deps,
		ScanSettingsDep:   depcontainer.NewDependency(deps, store.Scan()),
		MemorySettingsDep: depcontainer.NewDependency(deps, store.Memory()),
		Snapshot:          snapshot.New(),
		Executor:          executor.New(zeroReaderWriter{}, 4096, 0),
		Tasks:             taskregistry.NewRegistry(),
		Events:            events.NewBus(),
		frozen:            make(map[scanResultKey]bool),
	}
}

func TestElementScanNarrowsSnapshotAndPublishesEvent(t *testing.T) {
	e := newTestEngine(t)

	r, err := snapshot.NewRegion(0x1000, 12, nil)
	require.NoError(t, err)
	e.Snapshot.SetRegions([]*snapshot.Region{r})

	sub, id := e.Events.Subscribe(4)
	defer e.Events.Unsubscribe(id)

	task, err := e.ElementScan(context.Background(), []planner.AnonymousConstraint{
		{Compare: datatype.CompareEqual, Value: "0"},
	}, []datatype.ID{datatype.I32})
	require.NoError(t, err)

	waitForTerminal(t, e, task.ID)
	assert.Equal(t, taskregistry.StateCompleted, task.State())

	regions := e.Snapshot.Regions()
	require.Len(t, regions, 1)
	fc, ok := regions[0].ScanResults[string(datatype.I32)]
	require.True(t, ok)
	require.Len(t, fc.Filters, 1)
	assert.Equal(t, uint64(0x1000), fc.Filters[0].Base)
	assert.Equal(t, uint64(12), fc.Filters[0].Size)

	select {
	case ev := <-sub:
		assert.Equal(t, events.ScanResultsUpdated, ev.Kind)
	default:
		t.Fatal("expected a ScanResultsUpdated event")
	}
}

func TestScanResultsQueryMaterializesOneRowPerElement(t *testing.T) {
	e := newTestEngine(t)

	r, err := snapshot.NewRegion(0x2000, 8, nil)
	require.NoError(t, err)
	r.CurrentValues = make([]byte, 8)
	r.SetFilters(string(datatype.I32), []snapshot.Filter{{Base: 0x2000, Size: 8}})
	e.Snapshot.SetRegions([]*snapshot.Region{r})

	resp := e.ScanResultsQuery(api.ScanResultsQueryRequest{})
	assert.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, uint64(0x2000), resp.Results[0].Address)
	assert.Equal(t, uint64(0x2004), resp.Results[1].Address)
}

func TestScanResultsFreezeRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	ref := scanResultKey{Address: 0x3000, Type: datatype.I32}
	refs := []api.ScanResultRef{{Address: 0x3000, DataTypeRef: datatype.I32}}

	e.ScanResultsFreeze(api.ScanResultsFreezeRequest{ScanResultRefs: refs, IsFrozen: true})
	assert.True(t, e.frozen[ref])

	e.ScanResultsFreeze(api.ScanResultsFreezeRequest{ScanResultRefs: refs, IsFrozen: false})
	assert.False(t, e.frozen[ref])
}

// TestSettingsSetCommitsScanSettingsIntoDependency guards spec.md §9's
// requirement that planner/executor consumers read a dependency-container
// value, not the JSON store directly: after SettingsSet, scanSettings()
// (what ElementScan/ScanCollectValues actually read) must reflect the
// change, not just Settings.Scan().
func TestSettingsSetCommitsScanSettingsIntoDependency(t *testing.T) {
	e := newTestEngine(t)

	s := e.Settings.Scan()
	s.PauseWhileScanning = true
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var arbitrary interface{}
	require.NoError(t, json.Unmarshal(raw, &arbitrary))

	require.NoError(t, e.SettingsSet(api.SettingsSetRequest{Group: api.SettingsGroupScan, Settings: arbitrary}))

	assert.True(t, e.scanSettings().PauseWhileScanning)
}

// TestFilterBaselineRoundTrips exercises the snapshot/restore pair
// ElementScan uses to undo in-place filter narrowing left behind by a
// cancelled or timed-out scan pass, per spec.md §5.
func TestFilterBaselineRoundTrips(t *testing.T) {
	e := newTestEngine(t)

	r, err := snapshot.NewRegion(0x9000, 16, nil)
	require.NoError(t, err)
	r.SetFilters(string(datatype.I32), []snapshot.Filter{{Base: 0x9000, Size: 16}})
	e.Snapshot.SetRegions([]*snapshot.Region{r})

	baseline := e.snapshotFilterBaseline()

	// Simulate a scan pass partway through narrowing this region's filters.
	r.SetFilters(string(datatype.I32), []snapshot.Filter{{Base: 0x9000, Size: 4}})
	require.Equal(t, 1, r.FilterCount(string(datatype.I32)))

	e.restoreFilterBaseline(baseline)

	fc, ok := r.ScanResults[string(datatype.I32)]
	require.True(t, ok)
	require.Len(t, fc.Filters, 1)
	assert.Equal(t, uint64(16), fc.Filters[0].Size)
}

// TestStartAutoRefreshRepublishesScanResultsUpdated covers the
// MEMSCAN_ENABLE_SCAN_RESULT_AUTO_REFRESH loop directly (New() itself
// needs a real ptrace attach, so it isn't exercised end-to-end here).
func TestStartAutoRefreshRepublishesScanResultsUpdated(t *testing.T) {
	e := newTestEngine(t)

	r, err := snapshot.NewRegion(0xA000, 16, nil)
	require.NoError(t, err)
	e.Snapshot.SetRegions([]*snapshot.Region{r})

	s := e.Settings.Scan()
	s.ResultsReadIntervalMs = 5
	require.NoError(t, e.Settings.SetScan(s))
	g := e.ScanSettingsDep.BeginWrite()
	g.Value = e.Settings.Scan()
	g.Commit()

	sub, id := e.Events.Subscribe(4)
	defer e.Events.Unsubscribe(id)

	e.startAutoRefresh()
	defer e.autoRefreshCancel()

	select {
	case ev := <-sub:
		assert.Equal(t, events.ScanResultsUpdated, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected auto-refresh to publish ScanResultsUpdated")
	}
}

func waitForTerminal(t *testing.T, e *Engine, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := e.Tasks.Get(id); !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
}
