package zoo

import "fmt"

type Kind int

const (
	KindInput Kind = iota
	KindConv2D
	KindBatchNorm
	KindActivation
	KindMaxPool
	KindAvgPool
	KindGlobalAvgPool
	KindFlatten
	KindDense
	KindConcat
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "InputLayer"
	case KindConv2D:
		return "Conv2D"
	case KindBatchNorm:
		return "BatchNormalization"
	case KindActivation:
		return "Activation"
	case KindMaxPool:
		return "MaxPooling2D"
	case KindAvgPool:
		return "AveragePooling2D"
	case KindGlobalAvgPool:
		return "GlobalAveragePooling2D"
	case KindFlatten:
		return "Flatten"
	case KindDense:
		return "Dense"
	case KindConcat:
		return "Concatenate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Shape is a layer output shape without the batch dimension.
type Shape []int

func (s Shape) Elements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= int64(d)
	}
	return n
}

type Layer struct {
	Name   string
	Kind   Kind
	Output Shape
}

// ProducesActivations reports whether the layer is a convolution or a fully
// connected layer, the only kinds counted by size accounting.
func (l Layer) ProducesActivations() bool {
	return l.Kind == KindConv2D || l.Kind == KindDense
}
