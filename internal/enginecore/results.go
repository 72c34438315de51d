package enginecore

import (
	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/memquery"
)

// materializedResult pairs an address with its data type, the unit that
// ScanResultsQuery expands a region's scan_results filters into.
type materializedResult struct {
	Address uint64
	Type    *datatype.Type
}

// allMaterializedResults walks every region's scan_results filter
// collections, expanding each (base,size) sub-region into one row per
// data-type element, per spec.md §4.9.
func (e *Engine) allMaterializedResults() []materializedResult {
	var out []materializedResult
	for _, r := range e.Snapshot.Regions() {
		for typeKey, fc := range r.ScanResults {
			t := datatype.Lookup(datatype.ID(typeKey))
			if t == nil {
				continue
			}
			stride := t.UnitSize
			if stride <= 0 {
				stride = 1
			}
			for _, f := range fc.Filters {
				for addr := f.Base; addr+uint64(stride) <= f.End(); addr += uint64(stride) {
					out = append(out, materializedResult{Address: addr, Type: t})
				}
			}
		}
	}
	return out
}

// ScanResultsQuery pages the current materialized results, per spec.md §6.
func (e *Engine) ScanResultsQuery(req api.ScanResultsQueryRequest) api.ScanResultsQueryResponse {
	all := e.allMaterializedResults()
	pageSize := int(e.scanSettings().ResultsPageSize)
	if req.PageSize != nil {
		pageSize = *req.PageSize
	}
	if pageSize <= 0 {
		pageSize = len(all)
	}

	start := req.PageIndex * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	results := make([]api.ScanResult, 0, end-start)
	for _, m := range all[start:end] {
		results = append(results, e.materializeOne(m))
	}
	return api.ScanResultsQueryResponse{Results: results, TotalCount: len(all)}
}

func (e *Engine) materializeOne(m materializedResult) api.ScanResult {
	current, previous := e.readResultBytes(m)
	name, off, _ := memquery.AddressToModule(m.Address, e.Query.Modules())

	res := api.ScanResult{
		Address:      m.Address,
		ModuleName:   name,
		ModuleOffset: off,
		DataTypeRef:  m.Type.ID,
		IsFrozen:     e.frozen[scanResultKey{Address: m.Address, Type: m.Type.ID}],
	}
	if current != nil {
		res.CurrentValue = m.Type.Format(current)
	}
	if previous != nil {
		res.PreviousValue = m.Type.Format(previous)
	}
	return res
}

func (e *Engine) readResultBytes(m materializedResult) (current, previous []byte) {
	for _, r := range e.Snapshot.Regions() {
		if m.Address < r.Base || m.Address >= r.End() {
			continue
		}
		off := m.Address - r.Base
		end := off + uint64(m.Type.UnitSize)
		if uint64(len(r.CurrentValues)) >= end {
			current = r.CurrentValues[off:end]
		}
		if uint64(len(r.PreviousValues)) >= end {
			previous = r.PreviousValues[off:end]
		}
		return
	}
	return nil, nil
}

// ScanResultsRefresh re-reads process memory directly for a subset of
// refs, bypassing the snapshot (spec.md §6's ScanResultsRefresh).
func (e *Engine) ScanResultsRefresh(req api.ScanResultsRefreshRequest) api.ScanResultsQueryResponse {
	results := make([]api.ScanResult, 0, len(req.ScanResultRefs))
	for _, ref := range req.ScanResultRefs {
		t := datatype.Lookup(ref.DataTypeRef)
		if t == nil || t.UnitSize <= 0 {
			continue
		}
		buf := make([]byte, t.UnitSize)
		res := api.ScanResult{Address: ref.Address, DataTypeRef: ref.DataTypeRef}
		if e.ReaderWriter.ReadBytes(ref.Address, buf) {
			res.CurrentValue = t.Format(buf)
		}
		name, off, _ := memquery.AddressToModule(ref.Address, e.Query.Modules())
		res.ModuleName, res.ModuleOffset = name, off
		res.IsFrozen = e.frozen[scanResultKey{Address: ref.Address, Type: ref.DataTypeRef}]
		results = append(results, res)
	}
	return api.ScanResultsQueryResponse{Results: results, TotalCount: len(results)}
}

// ScanResultsSetProperty writes the anonymous value back to process memory
// for every ref, per spec.md §6's ScanResultsSetProperty.
func (e *Engine) ScanResultsSetProperty(req api.ScanResultsSetPropertyRequest) error {
	for _, ref := range req.ScanResultRefs {
		t := datatype.Lookup(ref.DataTypeRef)
		if t == nil {
			continue
		}
		val, err := datatype.ParseAnonymous(t, req.AnonymousValueString)
		if err != nil {
			e.Log.WithError(err).WithField("address", ref.Address).Warn("enginecore: set-property parse failed")
			continue
		}
		if !e.ReaderWriter.WriteBytes(ref.Address, val.Bytes) {
			e.Log.WithField("address", ref.Address).Warn("enginecore: set-property write failed")
		}
	}
	return nil
}

// ScanResultsFreeze marks or unmarks refs as frozen, per spec.md §4.9's
// supplemented frozen-set bookkeeping. The periodic freeze-writer that
// would re-apply a frozen value on an interval is explicitly out of scope.
func (e *Engine) ScanResultsFreeze(req api.ScanResultsFreezeRequest) {
	for _, ref := range req.ScanResultRefs {
		key := scanResultKey{Address: ref.Address, Type: ref.DataTypeRef}
		if req.IsFrozen {
			e.frozen[key] = true
		} else {
			delete(e.frozen, key)
		}
	}
}

// ScanResultsAddToProject is a no-op placeholder: project persistence is
// out of scope for this engine (see spec.md's Non-goals), but the request
// is accepted so callers don't need to special-case it.
func (e *Engine) ScanResultsAddToProject(req api.ScanResultsAddToProjectRequest) {}

// ScanResultsDelete removes refs from the frozen set; the underlying
// snapshot filters are left untouched (deletion is a project-view concept,
// not a rescan).
func (e *Engine) ScanResultsDelete(req api.ScanResultsDeleteRequest) {
	for _, ref := range req.ScanResultRefs {
		delete(e.frozen, scanResultKey{Address: ref.Address, Type: ref.DataTypeRef})
	}
}
