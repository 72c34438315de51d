package enginecore

import (
	"github.com/pkg/errors"

	"github.com/memscan/engine/internal/api"
	"github.com/memscan/engine/internal/memquery"
)

// MemoryRegions always uses FromUserMode, never settings, so UI navigation
// never hides a requested region, per spec.md §6.
func (e *Engine) MemoryRegions() api.MemoryRegionsResponse {
	descriptors := e.Retrieval.FromUserMode()
	modules := e.Query.Modules()

	out := make([]api.MemoryRegion, 0, len(descriptors))
	for _, d := range descriptors {
		name, _, _ := memquery.AddressToModule(d.Base, modules)
		out = append(out, api.MemoryRegion{
			Base: d.Base, Size: d.Size, Protection: d.Protection.String(), ModuleName: name,
		})
	}
	return api.MemoryRegionsResponse{Regions: out}
}

// MemoryRead resolves req.Address (optionally relative to a named module)
// and reads Size bytes directly from the process, bypassing the snapshot.
func (e *Engine) MemoryRead(req api.MemoryReadRequest) (api.MemoryReadResponse, error) {
	addr := e.resolveAddress(req.Address, req.ModuleName)
	buf := make([]byte, req.Size)
	if !e.ReaderWriter.ReadBytes(addr, buf) {
		return api.MemoryReadResponse{}, errors.Errorf("enginecore: failed to read %d bytes at %#x", req.Size, addr)
	}
	return api.MemoryReadResponse{Bytes: buf}, nil
}

// MemoryWrite resolves req.Address (optionally relative to a named module)
// and writes Bytes directly.
func (e *Engine) MemoryWrite(req api.MemoryWriteRequest) error {
	addr := e.resolveAddress(req.Address, req.ModuleName)
	if !e.ReaderWriter.WriteBytes(addr, req.Bytes) {
		return errors.Errorf("enginecore: failed to write %d bytes at %#x", len(req.Bytes), addr)
	}
	return nil
}

func (e *Engine) resolveAddress(addr uint64, moduleName string) uint64 {
	if moduleName == "" {
		return addr
	}
	for _, m := range e.Query.Modules() {
		if m.Name == moduleName {
			return m.Base + addr
		}
	}
	return addr
}
