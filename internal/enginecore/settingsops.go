package enginecore

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/settings"
)

// SettingsList returns the current value of one settings group. "general"
// has no backing store yet (spec.md §6 lists it alongside Scan/Memory but
// defines no fields for it), so it returns an empty object.
func (e *Engine) SettingsList(req api.SettingsListRequest) api.SettingsListResponse {
	switch req.Group {
	case api.SettingsGroupScan:
		return api.SettingsListResponse{Group: req.Group, Settings: e.scanSettings()}
	case api.SettingsGroupMemory:
		return api.SettingsListResponse{Group: req.Group, Settings: e.memorySettings()}
	default:
		return api.SettingsListResponse{Group: req.Group, Settings: struct{}{}}
	}
}

// SettingsSet decodes req.Settings (a JSON-shaped interface{}, matching
// how SettingsList returns it) into the target group's struct, persists it
// to disk via Settings, then commits the same value into the matching
// engine-scoped Dependency so every subsequent read through
// ScanSettingsDep/MemorySettingsDep (planner, executor, collector) sees it
// without re-reading the JSON file, per spec.md §9.
func (e *Engine) SettingsSet(req api.SettingsSetRequest) error {
	raw, err := json.Marshal(req.Settings)
	if err != nil {
		return errors.Wrap(err, "enginecore: settings-set marshal")
	}

	switch req.Group {
	case api.SettingsGroupScan:
		var s settings.ScanSettings
		if err := json.Unmarshal(raw, &s); err != nil {
			return errors.Wrap(err, "enginecore: settings-set scan decode")
		}
		if err := e.Settings.SetScan(s); err != nil {
			return err
		}
		g := e.ScanSettingsDep.BeginWrite()
		g.Value = e.Settings.Scan()
		g.Commit()
		return nil
	case api.SettingsGroupMemory:
		var s settings.MemorySettings
		if err := json.Unmarshal(raw, &s); err != nil {
			return errors.Wrap(err, "enginecore: settings-set memory decode")
		}
		if err := e.Settings.SetMemory(s); err != nil {
			return err
		}
		g := e.MemorySettingsDep.BeginWrite()
		g.Value = e.Settings.Memory()
		g.Commit()
		return nil
	default:
		return nil
	}
}

// TrackableTasksCancel cancels a running task by id, per spec.md §6.
func (e *Engine) TrackableTasksCancel(req api.TrackableTasksCancelRequest) bool {
	return e.Tasks.Cancel(req.TaskID)
}
