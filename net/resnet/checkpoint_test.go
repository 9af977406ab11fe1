package resnet

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func requireSameModel(t *testing.T, want, got *Model) {
	t.Helper()
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.Parameters(), got.Parameters())
	assert.True(t, mat.EqualApprox(want.Head.W, got.Head.W, 1e-6))
	assert.True(t, mat.EqualApprox(want.Head.B, got.Head.B, 1e-6))
}

func TestWriteToRead(t *testing.T) {
	m, err := New(tiny(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, int64(4*headerLen+4*m.NumParameters()), n)

	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	requireSameModel(t, m, got)
}

func TestHeaderLayout(t *testing.T) {
	m, err := New(tiny(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	h := make([]int32, headerLen)
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, h))
	assert.Equal(t, []int32{Magic, Version, 4, 2, 5}, h[:5])
	assert.Equal(t, []int32{4, 6, 1, 2}, h[8:12])
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	m, err := New(tiny(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	for _, name := range []string{"model.pt", "model.pt.lzw", filepath.Join("nested", "model.pt")} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, m.Save(path))
			got, err := Load(path)
			require.NoError(t, err)
			requireSameModel(t, m, got)
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.pt")
	first, err := New(tiny(), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	second, err := New(tiny(), rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	require.NoError(t, first.Save(path))
	require.NoError(t, second.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	requireSameModel(t, second, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestSaveIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	m, err := New(tiny(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	a, b := filepath.Join(dir, "a.pt"), filepath.Join(dir, "b.pt")
	require.NoError(t, m.Save(a))
	require.NoError(t, m.Save(b))
	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestReadRejectsCorrupt(t *testing.T) {
	m, err := New(tiny(), rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	good := buf.Bytes()

	corrupt := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), good...))
	}
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty"},
		{name: "bad magic", data: corrupt(func(b []byte) []byte { b[0]++; return b })},
		{name: "bad version", data: corrupt(func(b []byte) []byte { b[4] = 9; return b })},
		{name: "no stages", data: corrupt(func(b []byte) []byte { b[12] = 0; return b })},
		{name: "truncated", data: good[:len(good)-1]},
		{name: "trailing data", data: append(append([]byte(nil), good...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestReadRejectsOversizedHeader(t *testing.T) {
	h := make([]int32, headerLen)
	h[slotMagic], h[slotVersion] = Magic, Version
	h[slotStem], h[slotStages], h[slotClasses] = maxWidth, MaxStages, 1000
	for i := 0; i < MaxStages; i++ {
		h[slotWidths+i] = maxWidth
		h[slotWidths+MaxStages+i] = maxBlocks
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))

	_, err := Read(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameters")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.pt"))
	assert.Error(t, err)
}
