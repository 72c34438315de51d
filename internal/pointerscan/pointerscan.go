package pointerscan

import (
	"context"

	"github.com/memscan/engine/internal/memquery"
	"github.com/memscan/engine/internal/taskregistry"
)

// MaxResults bounds result-set memory, per spec.md §4.7 step 4.
const MaxResults = 250_000

// Result is one discovered pointer chain from a module/heap base to the
// original target address.
type Result struct {
	Address      uint64
	Offsets      []int64
	ModuleName   string
	ModuleOffset uint64
	HasModule    bool
}

type frontierItem struct {
	target  uint64
	offsets []int64
}

// Scan runs the bounded reverse BFS of spec.md §4.7 steps 3-5: frontier
// starts at target, each round queries idx for values within maxOffset of
// the current frontier targets, emitting a result per pointer address
// found and enqueuing it (if unvisited at this depth) for the next round.
func Scan(ctx context.Context, idx *ValueIndex, target uint64, maxDepth int, maxOffset uint64, modules []memquery.Module, task *taskregistry.Task) []Result {
	frontier := []frontierItem{{target: target}}
	visited := make(map[[2]uint64]bool)
	var results []Result

	for d := 0; d < maxDepth; d++ {
		if task != nil && task.Cancelled() {
			break
		}
		select {
		case <-ctx.Done():
			return results
		default:
		}

		var next []frontierItem
		for _, item := range frontier {
			lo := uint64(0)
			if item.target > maxOffset {
				lo = item.target - maxOffset
			}
			hi := item.target + maxOffset

			for value, addresses := range idx.Range(lo, hi) {
				offset := int64(item.target) - int64(value)
				for _, addr := range addresses {
					newOffsets := make([]int64, 0, len(item.offsets)+1)
					newOffsets = append(newOffsets, offset)
					newOffsets = append(newOffsets, item.offsets...)

					if len(results) < MaxResults {
						name, modOff, ok := memquery.AddressToModule(addr, modules)
						results = append(results, Result{
							Address: addr, Offsets: newOffsets,
							ModuleName: name, ModuleOffset: modOff, HasModule: ok,
						})
					}

					key := [2]uint64{addr, uint64(d + 1)}
					if !visited[key] {
						visited[key] = true
						next = append(next, frontierItem{target: addr, offsets: newOffsets})
					}
				}
			}
		}
		frontier = next

		if task != nil {
			task.SetProgress(float64(d+1) / float64(maxDepth))
		}
		if len(results) >= MaxResults || len(frontier) == 0 {
			break
		}
	}
	return results
}
