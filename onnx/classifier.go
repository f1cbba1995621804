package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/krau/imagenetbench/imagenet"
	"github.com/krau/imagenetbench/zoo"
)

// Classifier runs fixed-size batches through an ONNX image classifier. Input
// and output tensors are allocated once and reused for every batch.
type Classifier struct {
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	inputName  string
	outputName string

	batchSize  int
	size       int
	numClasses int
	// channelsFirst is set for models exported with NCHW inputs. Batches are
	// always produced NHWC and transposed on the way in.
	channelsFirst bool

	mu sync.Mutex
}

type ClassifierOptions struct {
	IntraOpThreads int
}

func NewClassifier(onnxPath string, arch *zoo.Architecture, batchSize int, o ClassifierOptions) (*Classifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(onnxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", onnxPath)
	}

	channelsFirst, err := inputLayout(inputs[0].Dimensions, arch.InputSize)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", onnxPath, err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if o.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(o.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	size := int64(arch.InputSize)
	inputShape := ort.NewShape(int64(batchSize), size, size, 3)
	if channelsFirst {
		inputShape = ort.NewShape(int64(batchSize), 3, size, size)
	}
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batchSize), int64(arch.NumClasses)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		onnxPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}

	slog.Info("Loaded model",
		slog.String("path", onnxPath),
		slog.String("input", inputs[0].Name),
		slog.String("output", outputs[0].Name),
		slog.Bool("channels_first", channelsFirst))

	return &Classifier{
		session:       session,
		input:         inputTensor,
		output:        outputTensor,
		inputName:     inputs[0].Name,
		outputName:    outputs[0].Name,
		batchSize:     batchSize,
		size:          arch.InputSize,
		numClasses:    arch.NumClasses,
		channelsFirst: channelsFirst,
	}, nil
}

// inputLayout reports whether dims describe an NCHW input and checks the
// spatial size against the architecture. Dynamic dimensions are negative.
func inputLayout(dims ort.Shape, size int) (bool, error) {
	if len(dims) != 4 {
		return false, fmt.Errorf("expected a 4-d image input, got %v", dims)
	}
	channelsFirst := dims[1] == 3 && dims[3] != 3
	h, w := dims[1], dims[2]
	if channelsFirst {
		h, w = dims[2], dims[3]
	}
	for _, d := range []int64{h, w} {
		if d > 0 && d != int64(size) {
			return false, fmt.Errorf("input resolution %v does not match %dx%d", dims, size, size)
		}
	}
	return channelsFirst, nil
}

// Predict returns one row of logits per sample.
func (c *Classifier) Predict(ctx context.Context, b imagenet.Batch) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := c.batchSize * c.size * c.size * 3
	if b.Size != c.batchSize || len(b.Images) != want {
		return nil, fmt.Errorf("batch of %d samples (%d values) does not fit input %q of %d samples (%d values)",
			b.Size, len(b.Images), c.inputName, c.batchSize, want)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dst := c.input.GetData()
	if c.channelsFirst {
		nhwcToNCHW(dst, b.Images, c.batchSize, c.size, c.size)
	} else {
		copy(dst, b.Images)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference %s -> %s failed: %w", c.inputName, c.outputName, err)
	}

	logits := c.output.GetData()
	preds := make([][]float32, c.batchSize)
	for i := range preds {
		row := make([]float32, c.numClasses)
		copy(row, logits[i*c.numClasses:(i+1)*c.numClasses])
		preds[i] = row
	}
	return preds, nil
}

func nhwcToNCHW(dst, src []float32, n, h, w int) {
	plane := h * w
	for b := 0; b < n; b++ {
		in := src[b*plane*3:]
		out := dst[b*plane*3:]
		for p := 0; p < plane; p++ {
			out[p] = in[p*3]
			out[plane+p] = in[p*3+1]
			out[2*plane+p] = in[p*3+2]
		}
	}
}

func (c *Classifier) Close() error {
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	return nil
}
