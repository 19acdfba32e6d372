package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArrays() map[string][]float64 {
	return map[string][]float64{
		"running_var":  {1, 0.5, math.Inf(1)},
		"running_mean": {0, -1.25, 3},
		"weight":       {1, 1, 1},
		"empty":        {},
	}
}

// TestRoundTrip verifies write and read with checksum validation.
func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	header := Header{
		Metadata: map[string]string{"source": "test"},
		Layer:    &LayerMeta{Mode: "spatial", NumFeatures: 3, Epsilon: 1e-5, Momentum: 0.1, DType: "float32"},
		CheckpointMeta: &CheckpointMeta{
			Epoch: 2, Step: 40, Loss: 0.25, OptimizerType: "SGD",
		},
	}
	require.NoError(t, Write(&buf, sampleArrays(), header))

	ckpt, err := Read(&buf, ReaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, sampleArrays(), ckpt.Arrays)
	assert.Equal(t, []string{"empty", "running_mean", "running_var", "weight"}, ckpt.Names())
	assert.Equal(t, FormatVersion, ckpt.Header.FormatVersion)
	assert.Equal(t, ToolVersion, ckpt.Header.ToolVersion)
	assert.Equal(t, "test", ckpt.Header.Metadata["source"])
	require.NotNil(t, ckpt.Header.Layer)
	assert.Equal(t, 3, ckpt.Header.Layer.NumFeatures)
	require.NotNil(t, ckpt.Header.CheckpointMeta)
	assert.Equal(t, int64(40), ckpt.Header.CheckpointMeta.Step)
	assert.Equal(t, FlagHasMetadata|FlagHasOptimizer|FlagHasLayer, ckpt.Flags)

	mean, err := ckpt.Array("running_mean")
	require.NoError(t, err)
	assert.Equal(t, -1.25, mean[1])
	_, err = ckpt.Array("missing")
	assert.ErrorIs(t, err, ErrArrayNotFound)
}

// TestDataAlignment verifies that array data starts on a 64-byte boundary.
func TestDataAlignment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]float64{"a": {42}}, Header{}))

	raw := buf.Bytes()
	headerSize := int64(binary.LittleEndian.Uint64(raw[16:24]))
	offset := alignedDataOffset(headerSize)
	assert.Zero(t, offset%HeaderAlignment)
	assert.Equal(t, int64(len(raw)), offset+8)
	assert.Equal(t, 42.0, math.Float64frombits(binary.LittleEndian.Uint64(raw[offset:])))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bn.born")
	require.NoError(t, WriteFile(path, sampleArrays(), Header{}))

	ckpt, err := ReadFile(path, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, sampleArrays(), ckpt.Arrays)
	assert.Nil(t, ckpt.Header.Layer)
	assert.Zero(t, ckpt.Flags)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.born"), ReaderOptions{})
	assert.Error(t, err)
}

// TestChecksumMismatch verifies that corrupted data is rejected unless
// checksum validation is skipped.
func TestChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]float64{"a": {1, 2}}, Header{}))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(raw), ReaderOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	ckpt, err := Read(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ckpt.Arrays["a"][0])
}

func TestReadRejectsBadFixedHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]float64{"a": {1}}, Header{}))

	t.Run("magic", func(t *testing.T) {
		raw := bytes.Clone(buf.Bytes())
		copy(raw, "NOPE")
		_, err := Read(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("short", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte("BORN")), ReaderOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("version", func(t *testing.T) {
		raw := bytes.Clone(buf.Bytes())
		binary.LittleEndian.PutUint32(raw[4:8], 1)
		_, err := Read(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})
	t.Run("header size", func(t *testing.T) {
		raw := bytes.Clone(buf.Bytes())
		binary.LittleEndian.PutUint64(raw[16:24], MaxHeaderSize+1)
		_, err := Read(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})
	t.Run("data size", func(t *testing.T) {
		raw := bytes.Clone(buf.Bytes())
		binary.LittleEndian.PutUint64(raw[24:32], 1<<20)
		_, err := Read(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})
}

// TestReadValidatesHeader forges a file whose header points outside the
// data section.
func TestReadValidatesHeader(t *testing.T) {
	header := Header{
		FormatVersion: FormatVersion,
		Arrays:        []ArrayMeta{{Name: "a", DType: DTypeFloat64, Shape: []int{4}, Offset: 0, Size: 32}},
	}
	raw := forge(t, header, float64Bytes([]float64{1, 2}))

	_, err := Read(bytes.NewReader(raw), ReaderOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, "a", verr.Array)
}

// TestReadRejectsOverflowingRegion forges an array whose offset+size
// overflows int64 and checks it is reported instead of read.
func TestReadRejectsOverflowingRegion(t *testing.T) {
	header := Header{
		FormatVersion: FormatVersion,
		Arrays: []ArrayMeta{{
			Name: "a", DType: DTypeFloat64, Shape: []int{1 << 59},
			Offset: 1 << 62, Size: 1 << 62,
		}},
	}
	raw := forge(t, header, float64Bytes([]float64{1, 2}))

	for _, level := range []ValidationLevel{ValidationStrict, ValidationNone} {
		_, err := Read(bytes.NewReader(raw), ReaderOptions{ValidationLevel: level})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "level %d", level)
		assert.ErrorIs(t, err, ErrOutOfBounds)
		assert.Equal(t, "a", verr.Array)
	}

	err := ValidateArrayOffsets([]ArrayMeta{{Name: "b", Offset: 8, Size: math.MaxInt64}}, 16)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

// forge assembles a v2 file by hand from an arbitrary header.
func forge(t *testing.T, header Header, data []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	sum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:], sum[:])

	out := append(fixed, headerJSON...)
	pad := alignedDataOffset(int64(len(headerJSON))) - int64(len(out))
	out = append(out, make([]byte, pad)...)
	return append(out, data...)
}

func TestWriteRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "../x", "a/b", "a\\b", "a\x00b"} {
		err := Write(&bytes.Buffer{}, map[string][]float64{name: {1}}, Header{})
		assert.ErrorIs(t, err, ErrInvalidArrayName, "name %q", name)
	}
}

func TestSafeTensors(t *testing.T) {
	var buf bytes.Buffer
	arrays := map[string][]float64{"b": {3}, "a": {1, 2}}
	require.NoError(t, WriteSafeTensors(&buf, arrays, map[string]string{"format": "pt"}))

	raw := buf.Bytes()
	n := binary.LittleEndian.Uint64(raw[:8])
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw[8:8+n], &header))
	assert.Contains(t, header, "__metadata__")

	var a SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["a"], &a))
	assert.Equal(t, "F64", a.DType)
	assert.Equal(t, []int64{2}, a.Shape)
	assert.Equal(t, [2]int64{0, 16}, a.DataOffsets)

	data := raw[8+n:]
	require.Len(t, data, 24)
	assert.Equal(t, 3.0, math.Float64frombits(binary.LittleEndian.Uint64(data[16:])))

	path := filepath.Join(t.TempDir(), "stats.safetensors")
	require.NoError(t, WriteSafeTensorsFile(path, arrays, nil))
}
