package memquery

import "github.com/memscan/engine/internal/settings"

// protectionAndTypes translates the memory_settings.json fields (spec.md
// §6) into the Protection/AllocationType bitsets VirtualPages expects.
func protectionAndTypes(s *settings.MemorySettings) (required, excluded Protection, allowed AllocationType) {
	if s.RequiredWrite {
		required |= Write
	}
	if s.RequiredExecute {
		required |= Execute
	}
	if s.RequiredCopyOnWrite {
		required |= CopyOnWrite
	}
	if s.ExcludedWrite {
		excluded |= Write
	}
	if s.ExcludedExecute {
		excluded |= Execute
	}
	if s.ExcludedCopyOnWrite {
		excluded |= CopyOnWrite
	}
	if s.ExcludedNoCache {
		excluded |= NoCache
	}
	if s.ExcludedWriteCombine {
		excluded |= WriteCombine
	}

	if s.MemoryTypeNone {
		allowed |= TypeNone
	}
	if s.MemoryTypePrivate {
		allowed |= TypePrivate
	}
	if s.MemoryTypeImage {
		allowed |= TypeImage
	}
	if s.MemoryTypeMapped {
		allowed |= TypeMapped
	}
	if allowed == 0 {
		allowed = AllTypes
	}
	return
}
