package bench

import (
	"fmt"
	"io"

	"github.com/krau/imagenetbench/zoo"
)

// bytesPerElement assumes float32 activations.
const bytesPerElement = 4

func SizeToMB(elements int64, typeBytes int) float64 {
	return float64(int64(typeBytes)*elements) / (1024 * 1024)
}

// PrintModelSize lists every layer and, for convolutional and dense layers,
// the size of one sample's output activations. It returns the total element
// count. Parameters are not counted.
func PrintModelSize(w io.Writer, arch *zoo.Architecture) (int64, error) {
	var total int64
	for _, l := range arch.Layers {
		if _, err := fmt.Fprintln(w, l.Name); err != nil {
			return 0, err
		}
		if !l.ProducesActivations() {
			continue
		}
		n := l.Output.Elements()
		total += n
		if _, err := fmt.Fprintf(w, "Layer %s: %.4f MB\n", l.Name, SizeToMB(n, bytesPerElement)); err != nil {
			return 0, err
		}
	}
	if _, err := fmt.Fprintf(w, "Total Size: %.2f MB\n", SizeToMB(total, bytesPerElement)); err != nil {
		return 0, err
	}
	return total, nil
}
