package preheap_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyir/internal/layout"
	"copyir/internal/preheap"
	"copyir/internal/stub"
)

type fixed uint64

func (f fixed) Initialize() int              { return preheap.StatusOK }
func (f fixed) RequiredPreHeapBytes() uint64 { return uint64(f) }
func (f fixed) Install(uint64) int           { return preheap.StatusOK }

func TestPreHeapBytesRoundsToAlignment(t *testing.T) {
	tests := []struct {
		need, align, want uint64
	}{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{24, 8, 24},
		{25, 16, 32},
	}
	for _, tt := range tests {
		got, err := preheap.PreHeapBytes(fixed(tt.need), tt.align)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "need=%d align=%d", tt.need, tt.align)
	}
}

func TestPreHeapBytesRejectsBadAlignment(t *testing.T) {
	for _, align := range []uint64{0, 3, 24} {
		_, err := preheap.PreHeapBytes(fixed(8), align)
		assert.ErrorIs(t, err, preheap.ErrAlignment)
	}
}

func TestPreHeapBytesRejectsOverflow(t *testing.T) {
	_, err := preheap.PreHeapBytes(fixed(math.MaxUint64-10), 4096)
	assert.ErrorIs(t, err, preheap.ErrOverflow)

	got, err := preheap.PreHeapBytes(fixed(math.MaxUint64-4095), 4096)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-4095), got)

	huge := preheap.NewRegion(layout.X86_64LinuxGNU(), math.MaxUint64-1)
	require.Equal(t, preheap.StatusOK, huge.Initialize())
	assert.Equal(t, uint64(math.MaxUint64), huge.RequiredPreHeapBytes())
	_, err = preheap.PreHeapBytes(huge, 8)
	assert.ErrorIs(t, err, preheap.ErrOverflow)
	_, err = preheap.PreHeapStartAddress(huge, 1<<40)
	assert.ErrorIs(t, err, preheap.ErrUnderflow)
}

func TestStartAddressSubtractsUnalignedSize(t *testing.T) {
	start, err := preheap.PreHeapStartAddress(fixed(40), 0x10000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10000-40), start)

	_, err = preheap.PreHeapStartAddress(fixed(0x20000), 0x10000)
	assert.ErrorIs(t, err, preheap.ErrUnderflow)
}

func TestRegionLifecycle(t *testing.T) {
	r := preheap.NewRegion(layout.X86_64LinuxGNU(), 0)
	assert.Equal(t, preheap.StatusNotReady, r.Install(0x1000))

	require.Equal(t, preheap.StatusOK, r.Initialize())
	assert.Equal(t, preheap.StatusAlreadyReady, r.Initialize())

	names := stub.Names()
	assert.Equal(t, uint64(8*(2+len(names))), r.RequiredPreHeapBytes())
	slots := r.Slots()
	require.Len(t, slots, len(names))
	assert.Equal(t, uint64(16), slots[0].Offset)

	_, ok := r.Address(stub.GenericArraycopy)
	assert.False(t, ok, "address resolves only after install")

	assert.Equal(t, preheap.StatusMisaligned, r.Install(0x1003))

	base := uint64(0x400000)
	start, err := preheap.PreHeapStartAddress(r, base)
	require.NoError(t, err)
	require.Equal(t, preheap.StatusOK, r.Install(start))

	addr, ok := r.Address(stub.GenericArraycopy)
	require.True(t, ok)
	assert.Equal(t, start+16, addr)

	off, err := r.HeapOffset(stub.CheckcastArraycopy, base)
	require.NoError(t, err)
	assert.Less(t, off, int64(0))
	assert.Equal(t, base, uint64(int64(base)+off)+uint64(r.RequiredPreHeapBytes())-slots[1].Offset)
}

func TestDescribeListsSlots(t *testing.T) {
	r := preheap.NewRegion(layout.X86_64LinuxGNU(), 64)
	require.Equal(t, preheap.StatusOK, r.Initialize())
	out, err := r.Describe(0x400000, 4096)
	require.NoError(t, err)
	assert.Contains(t, out, "reserved   4096 bytes")
	for _, name := range stub.Names() {
		assert.Contains(t, out, string(name))
	}
}
