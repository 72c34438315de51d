package pointerscan

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/snapshot"
)

// TestScanFindsTwoHopChain is the literal scenario from spec.md §8: heap
// 0x100 -> 0x200, 0x400 -> 0x100; target 0x200, depth 2, offset 0 should
// yield a result at base 0x400 with offsets [0, 0].
func TestScanFindsTwoHopChain(t *testing.T) {
	region, err := snapshot.NewRegion(0x100, 0x400, nil)
	require.NoError(t, err)
	region.CurrentValues = make([]byte, 0x400)
	binary.LittleEndian.PutUint64(region.CurrentValues[0:8], 0x200)       // addr 0x100 -> 0x200
	binary.LittleEndian.PutUint64(region.CurrentValues[0x300:0x308], 0x100) // addr 0x400 -> 0x100

	idx := BuildValueIndex([]*snapshot.Region{region}, 8, binary.LittleEndian, 0xFFFFFFFFFFFF)

	results := Scan(context.Background(), idx, 0x200, 2, 0, nil, nil)

	var found *Result
	for i := range results {
		if results[i].Address == 0x400 {
			found = &results[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, []int64{0, 0}, found.Offsets)
}

func TestScanRespectsMaxDepth(t *testing.T) {
	region, _ := snapshot.NewRegion(0x100, 0x400, nil)
	region.CurrentValues = make([]byte, 0x400)
	binary.LittleEndian.PutUint64(region.CurrentValues[0:8], 0x200)

	idx := BuildValueIndex([]*snapshot.Region{region}, 8, binary.LittleEndian, 0xFFFFFFFFFFFF)
	results := Scan(context.Background(), idx, 0x200, 1, 0, nil, nil)

	require.Len(t, results, 1)
	assert.Equal(t, uint64(0x100), results[0].Address)
}
