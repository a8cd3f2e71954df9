package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarter-lang/quarter/memory"
)

func TestCellRoundTrip(t *testing.T) {
	a := memory.New(memory.Config{})
	_, uEnd := a.UserRegion()
	addr := uEnd - 64

	require.NoError(t, a.Store(addr, 42))
	v, err := a.Fetch(addr)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestCellLittleEndian(t *testing.T) {
	a := memory.New(memory.Config{})
	_, uEnd := a.UserRegion()
	addr := uEnd - 64

	require.NoError(t, a.Store(addr, 0x12345678))
	b0, _ := a.FetchByte(addr)
	b1, _ := a.FetchByte(addr + 1)
	b2, _ := a.FetchByte(addr + 2)
	b3, _ := a.FetchByte(addr + 3)
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, []byte{b0, b1, b2, b3})
}

func TestByteRoundTrip(t *testing.T) {
	a := memory.New(memory.Config{})
	_, uEnd := a.UserRegion()
	addr := uEnd - 64

	require.NoError(t, a.StoreByte(addr, 0xAB))
	b, err := a.FetchByte(addr)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)
}

func TestAllotAdvancesHere(t *testing.T) {
	a := memory.New(memory.Config{})
	before := a.Here()

	got, err := a.Allot(16)
	require.NoError(t, err)
	assert.Equal(t, before, got)
	assert.Equal(t, before+16, a.Here())
}

func TestMisalignedCellAccessFaults(t *testing.T) {
	a := memory.New(memory.Config{})
	_, uEnd := a.UserRegion()
	addr := uEnd - 64

	_, err := a.Fetch(addr + 1)
	require.Error(t, err)
	assert.IsType(t, memory.Fault{}, err)
}

func TestOutOfBoundsFaults(t *testing.T) {
	a := memory.New(memory.Config{Capacity: memory.MinCapacity})
	_, err := a.Fetch(a.Cap())
	require.Error(t, err)
}

func TestRegionsDoNotOverlap(t *testing.T) {
	a := memory.New(memory.Config{})
	dBegin, dEnd := a.DataStackRegion()
	rBegin, rEnd := a.ReturnStackRegion()
	uBegin, _ := a.UserRegion()

	assert.Equal(t, dEnd, rBegin)
	assert.Equal(t, rEnd, uBegin)
	assert.Zero(t, dBegin)
	assert.Equal(t, uBegin, a.Here())
}
