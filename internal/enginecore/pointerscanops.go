package enginecore

import (
	"context"

	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/events"
	"github.com/memscan/engine/internal/pointerscan"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

type pointerResultRow struct {
	Address      uint64
	Offsets      []int64
	ModuleName   string
	ModuleOffset uint64
}

// PointerScan builds statics/heaps snapshots, collects their values, builds
// the value index, and runs the bounded reverse BFS of spec.md §4.7 on a
// dedicated background task.
func (e *Engine) PointerScan(ctx context.Context, req api.PointerScanRequest) (*taskregistry.Task, error) {
	pointerType := datatype.Lookup(req.PointerDataTypeRef)
	if pointerType == nil {
		pointerType = datatype.Lookup(datatype.U64)
	}
	targetSigned, err := datatype.ParseHexOrInt(req.TargetAddress)
	if err != nil {
		return nil, err
	}
	target := uint64(targetSigned)

	var regions []*snapshot.Region
	if req.ScanStatics {
		regions = append(regions, snapshot.Build(e.Retrieval.FromModules())...)
	}
	if req.ScanHeaps {
		regions = append(regions, snapshot.Build(e.Retrieval.FromNonModules())...)
	}

	task := taskregistry.NewTask("pointer-scan")
	e.Tasks.Register(task)

	go func() {
		defer e.Tasks.Unregister(task.ID)

		tmp := snapshot.New()
		tmp.SetRegions(regions)
		if err := e.Executor.Collector.Collect(ctx, tmp, task, e.scanSettings().PauseWhileScanning); err != nil {
			task.Fail(err)
			return
		}

		idx := pointerscan.BuildValueIndex(tmp.Regions(), pointerType.UnitSize, pointerType.ByteOrder, e.Query.MaxUsermodeAddress())

		maxOffset := req.OffsetSize
		results := pointerscan.Scan(ctx, idx, target, req.MaxDepth, maxOffset, e.Query.Modules(), task)

		rows := make([]pointerResultRow, 0, len(results))
		for _, r := range results {
			rows = append(rows, pointerResultRow{
				Address: r.Address, Offsets: r.Offsets, ModuleName: r.ModuleName, ModuleOffset: r.ModuleOffset,
			})
		}
		e.lastPointerResults = rows

		task.Complete()
		e.Events.Publish(events.Event{Kind: events.PointerScanResultsUpdated})
	}()
	return task, nil
}

// PointerScanResultsQuery pages the most recent pointer scan's results.
func (e *Engine) PointerScanResultsQuery(req api.PointerScanResultsQueryRequest) api.PointerScanResultsQueryResponse {
	pageSize := int(e.scanSettings().ResultsPageSize)
	if pageSize <= 0 {
		pageSize = len(e.lastPointerResults)
	}
	start := req.PageIndex * pageSize
	if start > len(e.lastPointerResults) {
		start = len(e.lastPointerResults)
	}
	end := start + pageSize
	if end > len(e.lastPointerResults) {
		end = len(e.lastPointerResults)
	}

	out := make([]api.PointerScanResult, 0, end-start)
	for _, r := range e.lastPointerResults[start:end] {
		out = append(out, api.PointerScanResult{
			Address: r.Address, Offsets: r.Offsets, ModuleName: r.ModuleName, ModuleOffset: r.ModuleOffset,
		})
	}
	return api.PointerScanResultsQueryResponse{Results: out, TotalCount: len(e.lastPointerResults)}
}
