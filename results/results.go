package results

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

var ErrTimerNotStarted = errors.New("timer not started")

// Snapshot is a point-in-time copy of the aggregate, safe to serialize.
type Snapshot struct {
	Batches          int     `json:"batches"`
	Samples          int     `json:"samples"`
	LastBatchSeconds float64 `json:"last_batch_seconds"`
	AvgBatchSeconds  float64 `json:"avg_batch_seconds"`
	ImagesPerSecond  float64 `json:"images_per_second"`
	Top1             float64 `json:"top1"`
	Top5             float64 `json:"top5"`
	BatchTop1        float64 `json:"batch_top1"`
}

// Results accumulates inference timings and top-1/top-5 accuracy across
// batches. The driving loop mutates it; Snapshot may be called concurrently.
type Results struct {
	mu sync.Mutex

	now     func() time.Time
	started time.Time
	timing  bool

	timings []time.Duration
	timed   time.Duration

	batches   int
	samples   int
	top1      int
	top5      int
	batchTop1 float64
}

func New() *Results {
	return &Results{now: time.Now}
}

func (r *Results) StartTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = r.now()
	r.timing = true
}

func (r *Results) EndTimer() (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.timing {
		return 0, ErrTimerNotStarted
	}
	d := r.now().Sub(r.started)
	r.timing = false
	r.timings = append(r.timings, d)
	r.timed += d
	return d, nil
}

// RecordAcc scores one batch of logits against the true class indices.
func (r *Results) RecordAcc(preds [][]float32, labels []int) error {
	if len(preds) != len(labels) {
		return fmt.Errorf("got %d predictions for %d labels", len(preds), len(labels))
	}
	hits1, hits5 := 0, 0
	for i, logits := range preds {
		label := labels[i]
		if label < 0 || label >= len(logits) {
			return fmt.Errorf("label %d out of range for %d classes", label, len(logits))
		}
		rank := labelRank(logits, label)
		if rank < 1 {
			hits1++
		}
		if rank < 5 {
			hits5++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	r.samples += len(labels)
	r.top1 += hits1
	r.top5 += hits5
	if len(labels) > 0 {
		r.batchTop1 = float64(hits1) / float64(len(labels))
	}
	return nil
}

// labelRank is the position of label in logits sorted descending, with ties
// going to the lower index as argmax does. A NaN label logit never ranks.
func labelRank(logits []float32, label int) int {
	x := logits[label]
	if math.IsNaN(float64(x)) {
		return len(logits)
	}
	rank := 0
	for j, v := range logits {
		if v > x || (v == x && j < label) {
			rank++
		}
	}
	return rank
}

func (r *Results) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Batches:   r.batches,
		Samples:   r.samples,
		BatchTop1: r.batchTop1,
	}
	if n := len(r.timings); n > 0 {
		s.LastBatchSeconds = r.timings[n-1].Seconds()
		s.AvgBatchSeconds = r.timed.Seconds() / float64(n)
	}
	if r.timed > 0 {
		s.ImagesPerSecond = float64(r.samples) / r.timed.Seconds()
	}
	if r.samples > 0 {
		s.Top1 = float64(r.top1) / float64(r.samples)
		s.Top5 = float64(r.top5) / float64(r.samples)
	}
	return s
}

func (r *Results) PrintResults(w io.Writer) error {
	s := r.Snapshot()
	_, err := fmt.Fprintf(w,
		"batch %d: %.4f s (avg %.4f s, %.2f img/s) top-1 %.2f%% (batch %.2f%%) top-5 %.2f%%\n",
		s.Batches, s.LastBatchSeconds, s.AvgBatchSeconds, s.ImagesPerSecond,
		100*s.Top1, 100*s.BatchTop1, 100*s.Top5)
	return err
}
