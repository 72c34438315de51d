// Package api is the engine's transport-agnostic command/response wire
// contract of spec.md §6: JSON-serializable request/response/event structs
// dispatched by internal/enginecore.Engine. A real transport (gRPC, local
// IPC) is out of scope; this is what would sit behind one.
package api

import "github.com/memscan/engine/internal/datatype"

// AnonymousScanConstraint is the user-space half of a scan constraint
// before it is resolved against a data type, per spec.md §3.
type AnonymousScanConstraint struct {
	Compare datatype.CompareType `json:"compare"`
	Value   string               `json:"value,omitempty"`
}

// ScanNewRequest builds a baseline snapshot from settings-filtered pages.
type ScanNewRequest struct{}

// ScanCollectValuesRequest value-refreshes the current snapshot.
type ScanCollectValuesRequest struct{}

// ElementScanRequest narrows the current snapshot's filters by constraints
// evaluated across every listed data type.
type ElementScanRequest struct {
	Constraints  []AnonymousScanConstraint `json:"constraints"`
	DataTypeRefs []datatype.ID             `json:"data_type_refs"`
}

// PointerScanRequest is the reverse-BFS pointer scan request.
type PointerScanRequest struct {
	TargetAddress     string        `json:"target_address"`
	PointerDataTypeRef datatype.ID  `json:"pointer_data_type_ref"`
	OffsetSize        uint64        `json:"offset_size"`
	MaxDepth          int           `json:"max_depth"`
	ScanStatics       bool          `json:"scan_statics"`
	ScanHeaps         bool          `json:"scan_heaps"`
}

// TaskHandleResponse is returned synchronously by long-running requests.
type TaskHandleResponse struct {
	TaskID string `json:"task_id"`
}

// ScanResult is spec.md §4.9's materialized scan result row: an address
// plus display context, not just a bare address.
type ScanResult struct {
	Address       uint64      `json:"address"`
	ModuleName    string      `json:"module_name,omitempty"`
	ModuleOffset  uint64      `json:"module_offset,omitempty"`
	DataTypeRef   datatype.ID `json:"data_type_ref"`
	CurrentValue  string      `json:"current_value"`
	PreviousValue string      `json:"previous_value,omitempty"`
	IsFrozen      bool        `json:"is_frozen"`
}

// ScanResultsQueryRequest pages the current filters materialized to
// ScanResults.
type ScanResultsQueryRequest struct {
	PageIndex int  `json:"page_index"`
	PageSize  *int `json:"page_size,omitempty"`
}

type ScanResultsQueryResponse struct {
	Results    []ScanResult `json:"results"`
	TotalCount int          `json:"total_count"`
}

// ScanResultRef identifies one previously-queried scan result for
// follow-up requests (refresh, set-property, freeze, delete).
type ScanResultRef struct {
	Address     uint64      `json:"address"`
	DataTypeRef datatype.ID `json:"data_type_ref"`
}

type ScanResultsRefreshRequest struct {
	ScanResultRefs []ScanResultRef `json:"scan_result_refs"`
}

type ScanResultsSetPropertyRequest struct {
	ScanResultRefs      []ScanResultRef `json:"scan_result_refs"`
	FieldNamespace       string          `json:"field_namespace"`
	AnonymousValueString string          `json:"anonymous_value_string"`
}

type ScanResultsFreezeRequest struct {
	ScanResultRefs []ScanResultRef `json:"scan_result_refs"`
	IsFrozen       bool            `json:"is_frozen"`
}

type ScanResultsAddToProjectRequest struct {
	ScanResultRefs []ScanResultRef `json:"scan_result_refs"`
}

type ScanResultsDeleteRequest struct {
	ScanResultRefs []ScanResultRef `json:"scan_result_refs"`
}

type PointerScanResultsQueryRequest struct {
	PageIndex int `json:"page_index"`
}

type PointerScanResult struct {
	Address      uint64  `json:"address"`
	Offsets      []int64 `json:"offsets"`
	ModuleName   string  `json:"module_name,omitempty"`
	ModuleOffset uint64  `json:"module_offset,omitempty"`
}

type PointerScanResultsQueryResponse struct {
	Results    []PointerScanResult `json:"results"`
	TotalCount int                 `json:"total_count"`
}

// MemoryRegionsRequest always uses FromUserMode, not settings, so UI
// navigation never hides a requested region, per spec.md §6.
type MemoryRegionsRequest struct{}

type MemoryRegion struct {
	Base       uint64 `json:"base"`
	Size       uint64 `json:"size"`
	Protection string `json:"protection"`
	ModuleName string `json:"module_name,omitempty"`
}

type MemoryRegionsResponse struct {
	Regions []MemoryRegion `json:"regions"`
}

type MemoryReadRequest struct {
	Address     uint64 `json:"address"`
	ModuleName  string `json:"module_name,omitempty"`
	Size        int    `json:"size"`
}

type MemoryReadResponse struct {
	Bytes []byte `json:"bytes"`
}

type MemoryWriteRequest struct {
	Address    uint64 `json:"address"`
	ModuleName string `json:"module_name,omitempty"`
	Bytes      []byte `json:"bytes"`
}

type TrackableTasksCancelRequest struct {
	TaskID string `json:"task_id"`
}

// SettingsGroup names one of the three settings groups exposed by
// SettingsList/SettingsSet.
type SettingsGroup string

const (
	SettingsGroupScan    SettingsGroup = "scan"
	SettingsGroupMemory  SettingsGroup = "memory"
	SettingsGroupGeneral SettingsGroup = "general"
)

type SettingsListRequest struct {
	Group SettingsGroup `json:"group"`
}

type SettingsListResponse struct {
	Group    SettingsGroup `json:"group"`
	Settings interface{}   `json:"settings"`
}

type SettingsSetRequest struct {
	Group    SettingsGroup `json:"group"`
	Settings interface{}   `json:"settings"`
}
