package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetScanClampsFastScanLastDigits(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	over := uint8(200)
	s := DefaultScanSettings()
	s.FastScanLastDigits = &over
	require.NoError(t, store.SetScan(s))

	got := store.Scan()
	require.NotNil(t, got.FastScanLastDigits)
	assert.Equal(t, uint8(MaxFastScanLastDigits), *got.FastScanLastDigits)
}

func TestLoadClampsFastScanLastDigitsFromDisk(t *testing.T) {
	dir := t.TempDir()
	raw := `{"fast_scan_last_digits": 255}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan_settings.json"), []byte(raw), 0o644))

	store := NewStore(dir, nil)
	store.Load()

	got := store.Scan()
	require.NotNil(t, got.FastScanLastDigits)
	assert.Equal(t, uint8(MaxFastScanLastDigits), *got.FastScanLastDigits)
}

func TestClampFastScanLastDigitsLeavesNilAndInRangeAlone(t *testing.T) {
	assert.Nil(t, ClampFastScanLastDigits(nil))

	in := uint8(10)
	got := ClampFastScanLastDigits(&in)
	require.NotNil(t, got)
	assert.Equal(t, uint8(10), *got)
}
