package buffer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_WriteIsAllOrNothing(t *testing.T) {
	r := New(4)
	n, err := r.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = r.Write([]byte{4, 5})
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 1, r.Available())

	require.NoError(t, r.WriteByte(4))
	assert.True(t, r.IsFull())
	assert.ErrorIs(t, r.WriteByte(5), ErrFull)
}

func TestRing_Wrap(t *testing.T) {
	r := New(5)
	out := make([]byte, 2)
	// one byte always stays queued so the cursors travel around the ring
	require.NoError(t, r.WriteByte(0))
	last := byte(0)
	for round := 1; round <= 10; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			in := []byte{byte(2*round - 1), byte(2 * round)}
			_, err := r.Write(in)
			require.NoError(t, err)
			n := r.Read(out)
			assert.Equal(t, 2, n)
			assert.Equal(t, []byte{last, in[0]}, out)
			assert.Equal(t, 1, r.Len())
			last = in[1]
		})
	}
}

func TestRing_ReadPartial(t *testing.T) {
	r := New(8)
	_, err := r.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	out := make([]byte, 2)
	assert.Equal(t, 2, r.Read(out))
	assert.Equal(t, []byte{1, 2}, out)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 0, r.Read(nil))

	_, err = New(1).ReadByte()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDuplex_Direction(t *testing.T) {
	d := NewDuplex(3)
	assert.Equal(t, ModeNone, d.Mode())
	assert.ErrorIs(t, d.PutIn(1), ErrMode)

	d.ResetAsInput()
	require.NoError(t, d.PutIn(1))
	require.NoError(t, d.PutIn(2))
	_, err := d.WriteOut([]byte{9})
	assert.ErrorIs(t, err, ErrMode)

	d.ResetAsOutput()
	assert.True(t, d.IsEmpty(), "switching direction discards input")
	n, err := d.WriteOut([]byte{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = d.WriteOut([]byte{10})
	assert.ErrorIs(t, err, ErrFull)

	b, err := d.NextOut()
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)
	_, err = d.ReadIn(make([]byte, 1))
	assert.ErrorIs(t, err, ErrMode)
}
