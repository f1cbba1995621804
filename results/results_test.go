package results

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(steps ...time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	i := 0
	return func() time.Time {
		if i < len(steps) {
			t = t.Add(steps[i])
			i++
		}
		return t
	}
}

func TestRecordAcc_PerfectBatch(t *testing.T) {
	r := New()
	require.NoError(t, r.RecordAcc([][]float32{{0.9, 0.1}, {0.2, 0.8}}, []int{0, 1}))

	s := r.Snapshot()
	assert.Equal(t, 1, s.Batches)
	assert.Equal(t, 2, s.Samples)
	assert.Equal(t, 1.0, s.BatchTop1)
	assert.Equal(t, 1.0, s.Top1)
	assert.Equal(t, 1.0, s.Top5)
}

func TestRecordAcc_TopK(t *testing.T) {
	r := New()
	logits := []float32{0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	// label 0 is top-1, label 4 is top-5 only, label 6 is neither.
	require.NoError(t, r.RecordAcc([][]float32{logits, logits, logits, logits}, []int{0, 4, 6, 1}))

	s := r.Snapshot()
	assert.Equal(t, 0.25, s.Top1)
	assert.Equal(t, 0.75, s.Top5)
	assert.Equal(t, 0.25, s.BatchTop1)

	require.NoError(t, r.RecordAcc([][]float32{logits}, []int{0}))
	s = r.Snapshot()
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 0.4, s.Top1)
	assert.Equal(t, 1.0, s.BatchTop1)
}

func TestRecordAcc_UniformLogits(t *testing.T) {
	r := New()
	require.NoError(t, r.RecordAcc([][]float32{{0, 0, 0}, {0, 0, 0}}, []int{0, 1}))

	s := r.Snapshot()
	assert.Equal(t, 0.5, s.Top1)
	assert.Equal(t, 0.5, s.BatchTop1)
	assert.Equal(t, 1.0, s.Top5)
}

func TestRecordAcc_NaNLogits(t *testing.T) {
	nan := float32(math.NaN())
	r := New()
	require.NoError(t, r.RecordAcc([][]float32{{nan, nan, nan}, {nan, nan, nan}}, []int{0, 2}))

	s := r.Snapshot()
	assert.Equal(t, 0.0, s.Top1)
	assert.Equal(t, 0.0, s.Top5)
	assert.Equal(t, 0.0, s.BatchTop1)
}

func TestRecordAcc_Mismatch(t *testing.T) {
	r := New()
	assert.Error(t, r.RecordAcc([][]float32{{1, 0}}, []int{0, 1}))
	assert.Error(t, r.RecordAcc([][]float32{{1, 0}}, []int{2}))
	assert.Equal(t, 0, r.Snapshot().Batches)
}

func TestTimer(t *testing.T) {
	r := New()
	r.now = fakeClock(0, 2*time.Second, 0, 4*time.Second)

	_, err := r.EndTimer()
	assert.ErrorIs(t, err, ErrTimerNotStarted)

	r.StartTimer()
	d, err := r.EndTimer()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	require.NoError(t, r.RecordAcc([][]float32{{1, 0}, {1, 0}}, []int{0, 1}))

	r.StartTimer()
	_, err = r.EndTimer()
	require.NoError(t, err)
	require.NoError(t, r.RecordAcc([][]float32{{1, 0}, {1, 0}}, []int{0, 0}))

	s := r.Snapshot()
	assert.Equal(t, 4.0, s.LastBatchSeconds)
	assert.Equal(t, 3.0, s.AvgBatchSeconds)
	assert.InDelta(t, 4.0/6.0, s.ImagesPerSecond, 1e-9)
	assert.Equal(t, 0.75, s.Top1)
}

func TestPrintResults(t *testing.T) {
	r := New()
	r.now = fakeClock(0, 500*time.Millisecond)
	r.StartTimer()
	_, _ = r.EndTimer()
	require.NoError(t, r.RecordAcc([][]float32{{0.9, 0.1}, {0.2, 0.8}}, []int{0, 1}))

	var buf bytes.Buffer
	require.NoError(t, r.PrintResults(&buf))
	assert.Equal(t,
		"batch 1: 0.5000 s (avg 0.5000 s, 4.00 img/s) top-1 100.00% (batch 100.00%) top-5 100.00%\n",
		buf.String())
}
