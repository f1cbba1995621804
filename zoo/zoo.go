// Package zoo describes the pretrained ImageNet architectures the benchmark
// can run: input resolution, preprocessing and the layer list with static
// output shapes.
package zoo

import (
	"errors"
	"fmt"
)

const NumClasses = 1000

var ErrUnknownModel = errors.New("unknown model")

// Preprocessing names the input normalization the pretrained weights expect.
type Preprocessing string

const (
	// PreprocessCaffe converts RGB to BGR and subtracts the ImageNet channel mean.
	PreprocessCaffe Preprocessing = "caffe"
	// PreprocessTF scales pixels to [-1, 1].
	PreprocessTF Preprocessing = "tf"
)

type Architecture struct {
	Name          string
	InputSize     int
	NumClasses    int
	Preprocessing Preprocessing
	Layers        []Layer
}

// Resolve returns the architecture for name. It allocates no runtime
// resources, so an unknown name fails before any session exists.
func Resolve(name string) (*Architecture, error) {
	switch name {
	case "vgg_16":
		return VGG16(), nil
	case "inception_v3":
		return InceptionV3(), nil
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownModel, name)
	}
}

func VGG16() *Architecture {
	b := newBuilder()
	x := b.input(224)

	blocks := []struct {
		convs   int
		filters int
	}{{2, 64}, {2, 128}, {3, 256}, {3, 512}, {3, 512}}
	for i, blk := range blocks {
		for j := 1; j <= blk.convs; j++ {
			x = b.conv2d(fmt.Sprintf("block%d_conv%d", i+1, j), x, blk.filters, 3, 3, 1, same)
		}
		x = b.maxPool(fmt.Sprintf("block%d_pool", i+1), x, 2, 2, valid)
	}

	b.flatten("flatten", x)
	b.dense("fc1", 4096)
	b.dense("fc2", 4096)
	b.dense("predictions", NumClasses)

	return &Architecture{
		Name:          "vgg_16",
		InputSize:     224,
		NumClasses:    NumClasses,
		Preprocessing: PreprocessCaffe,
		Layers:        b.layers,
	}
}

func InceptionV3() *Architecture {
	b := newBuilder()
	x := b.input(299)

	x = b.convBN(x, 32, 3, 3, 2, valid)
	x = b.convBN(x, 32, 3, 3, 1, valid)
	x = b.convBN(x, 64, 3, 3, 1, same)
	x = b.maxPool("", x, 3, 2, valid)

	x = b.convBN(x, 80, 1, 1, 1, valid)
	x = b.convBN(x, 192, 3, 3, 1, valid)
	x = b.maxPool("", x, 3, 2, valid)

	// mixed 0, 1, 2: 35 x 35 x 256/288
	for i, poolFilters := range []int{32, 64, 64} {
		branch1x1 := b.convBN(x, 64, 1, 1, 1, same)

		branch5x5 := b.convBN(x, 48, 1, 1, 1, same)
		branch5x5 = b.convBN(branch5x5, 64, 5, 5, 1, same)

		branch3x3dbl := b.convBN(x, 64, 1, 1, 1, same)
		branch3x3dbl = b.convBN(branch3x3dbl, 96, 3, 3, 1, same)
		branch3x3dbl = b.convBN(branch3x3dbl, 96, 3, 3, 1, same)

		branchPool := b.avgPool(x, 3, 1, same)
		branchPool = b.convBN(branchPool, poolFilters, 1, 1, 1, same)

		x = b.concat(fmt.Sprintf("mixed%d", i), branch1x1, branch5x5, branch3x3dbl, branchPool)
	}

	// mixed 3: 17 x 17 x 768
	{
		branch3x3 := b.convBN(x, 384, 3, 3, 2, valid)

		branch3x3dbl := b.convBN(x, 64, 1, 1, 1, same)
		branch3x3dbl = b.convBN(branch3x3dbl, 96, 3, 3, 1, same)
		branch3x3dbl = b.convBN(branch3x3dbl, 96, 3, 3, 2, valid)

		branchPool := b.maxPool("", x, 3, 2, valid)
		x = b.concat("mixed3", branch3x3, branch3x3dbl, branchPool)
	}

	// mixed 4, 5, 6, 7: 17 x 17 x 768
	for i, width := range []int{128, 160, 160, 192} {
		branch1x1 := b.convBN(x, 192, 1, 1, 1, same)

		branch7x7 := b.convBN(x, width, 1, 1, 1, same)
		branch7x7 = b.convBN(branch7x7, width, 1, 7, 1, same)
		branch7x7 = b.convBN(branch7x7, 192, 7, 1, 1, same)

		branch7x7dbl := b.convBN(x, width, 1, 1, 1, same)
		branch7x7dbl = b.convBN(branch7x7dbl, width, 7, 1, 1, same)
		branch7x7dbl = b.convBN(branch7x7dbl, width, 1, 7, 1, same)
		branch7x7dbl = b.convBN(branch7x7dbl, width, 7, 1, 1, same)
		branch7x7dbl = b.convBN(branch7x7dbl, 192, 1, 7, 1, same)

		branchPool := b.avgPool(x, 3, 1, same)
		branchPool = b.convBN(branchPool, 192, 1, 1, 1, same)

		x = b.concat(fmt.Sprintf("mixed%d", 4+i), branch1x1, branch7x7, branch7x7dbl, branchPool)
	}

	// mixed 8: 8 x 8 x 1280
	{
		branch3x3 := b.convBN(x, 192, 1, 1, 1, same)
		branch3x3 = b.convBN(branch3x3, 320, 3, 3, 2, valid)

		branch7x7x3 := b.convBN(x, 192, 1, 1, 1, same)
		branch7x7x3 = b.convBN(branch7x7x3, 192, 1, 7, 1, same)
		branch7x7x3 = b.convBN(branch7x7x3, 192, 7, 1, 1, same)
		branch7x7x3 = b.convBN(branch7x7x3, 192, 3, 3, 2, valid)

		branchPool := b.maxPool("", x, 3, 2, valid)
		x = b.concat("mixed8", branch3x3, branch7x7x3, branchPool)
	}

	// mixed 9, 10: 8 x 8 x 2048
	for i := 0; i < 2; i++ {
		branch1x1 := b.convBN(x, 320, 1, 1, 1, same)

		branch3x3 := b.convBN(x, 384, 1, 1, 1, same)
		branch3x3a := b.convBN(branch3x3, 384, 1, 3, 1, same)
		branch3x3b := b.convBN(branch3x3, 384, 3, 1, 1, same)
		branch3x3 = b.concat(fmt.Sprintf("mixed9_%d", i), branch3x3a, branch3x3b)

		branch3x3dbl := b.convBN(x, 448, 1, 1, 1, same)
		branch3x3dbl = b.convBN(branch3x3dbl, 384, 3, 3, 1, same)
		branch3x3dblA := b.convBN(branch3x3dbl, 384, 1, 3, 1, same)
		branch3x3dblB := b.convBN(branch3x3dbl, 384, 3, 1, 1, same)
		branch3x3dbl = b.concat("", branch3x3dblA, branch3x3dblB)

		branchPool := b.avgPool(x, 3, 1, same)
		branchPool = b.convBN(branchPool, 192, 1, 1, 1, same)

		x = b.concat(fmt.Sprintf("mixed%d", 9+i), branch1x1, branch3x3, branch3x3dbl, branchPool)
	}

	b.globalAvgPool("avg_pool", x)
	b.dense("predictions", NumClasses)

	return &Architecture{
		Name:          "inception_v3",
		InputSize:     299,
		NumClasses:    NumClasses,
		Preprocessing: PreprocessTF,
		Layers:        b.layers,
	}
}
