package zoo

import "fmt"

type padding int

const (
	valid padding = iota
	same
)

// builder records layers in definition order and infers their output shapes
// the way the Keras layers do. Unnamed layers get Keras-style names
// (conv2d_1, conv2d_2, ...).
type builder struct {
	layers   []Layer
	counters map[string]int
}

func newBuilder() *builder {
	return &builder{counters: make(map[string]int)}
}

func (b *builder) name(name, prefix string) string {
	if name != "" {
		return name
	}
	b.counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, b.counters[prefix])
}

func (b *builder) add(name string, kind Kind, out Shape) Shape {
	b.layers = append(b.layers, Layer{Name: name, Kind: kind, Output: out})
	return out
}

func outDim(in, k, stride int, p padding) int {
	if p == same {
		return (in + stride - 1) / stride
	}
	return (in-k)/stride + 1
}

func (b *builder) input(size int) Shape {
	return b.add(b.name("", "input"), KindInput, Shape{size, size, 3})
}

func (b *builder) conv2d(name string, x Shape, filters, kh, kw, stride int, p padding) Shape {
	out := Shape{outDim(x[0], kh, stride, p), outDim(x[1], kw, stride, p), filters}
	return b.add(b.name(name, "conv2d"), KindConv2D, out)
}

func (b *builder) batchNorm(x Shape) Shape {
	return b.add(b.name("", "batch_normalization"), KindBatchNorm, x)
}

func (b *builder) activation(x Shape) Shape {
	return b.add(b.name("", "activation"), KindActivation, x)
}

func (b *builder) maxPool(name string, x Shape, k, stride int, p padding) Shape {
	out := Shape{outDim(x[0], k, stride, p), outDim(x[1], k, stride, p), x[2]}
	return b.add(b.name(name, "max_pooling2d"), KindMaxPool, out)
}

func (b *builder) avgPool(x Shape, k, stride int, p padding) Shape {
	out := Shape{outDim(x[0], k, stride, p), outDim(x[1], k, stride, p), x[2]}
	return b.add(b.name("", "average_pooling2d"), KindAvgPool, out)
}

func (b *builder) globalAvgPool(name string, x Shape) Shape {
	return b.add(b.name(name, "global_average_pooling2d"), KindGlobalAvgPool, Shape{x[2]})
}

func (b *builder) flatten(name string, x Shape) Shape {
	return b.add(b.name(name, "flatten"), KindFlatten, Shape{int(x.Elements())})
}

func (b *builder) dense(name string, units int) Shape {
	return b.add(b.name(name, "dense"), KindDense, Shape{units})
}

// concat joins feature maps on the channel axis.
func (b *builder) concat(name string, xs ...Shape) Shape {
	out := append(Shape(nil), xs[0]...)
	for _, x := range xs[1:] {
		out[len(out)-1] += x[len(x)-1]
	}
	return b.add(b.name(name, "concatenate"), KindConcat, out)
}

// convBN is the InceptionV3 conv2d_bn block: bias-free convolution, batch
// normalization and a ReLU activation.
func (b *builder) convBN(x Shape, filters, kh, kw, stride int, p padding) Shape {
	x = b.conv2d("", x, filters, kh, kw, stride, p)
	x = b.batchNorm(x)
	return b.activation(x)
}
