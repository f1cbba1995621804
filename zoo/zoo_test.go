package zoo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countKind(arch *Architecture, kind Kind) int {
	n := 0
	for _, l := range arch.Layers {
		if l.Kind == kind {
			n++
		}
	}
	return n
}

func findLayer(t *testing.T, arch *Architecture, name string) Layer {
	t.Helper()
	for _, l := range arch.Layers {
		if l.Name == name {
			return l
		}
	}
	t.Fatalf("layer %s not found in %s", name, arch.Name)
	return Layer{}
}

func TestResolve(t *testing.T) {
	vgg, err := Resolve("vgg_16")
	require.NoError(t, err)
	assert.Equal(t, 224, vgg.InputSize)
	assert.Equal(t, PreprocessCaffe, vgg.Preprocessing)

	inc, err := Resolve("inception_v3")
	require.NoError(t, err)
	assert.Equal(t, 299, inc.InputSize)
	assert.Equal(t, PreprocessTF, inc.Preprocessing)
}

func TestResolve_UnknownModel(t *testing.T) {
	arch, err := Resolve("resnet_50")
	assert.Nil(t, arch)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Equal(t, "unknown model resnet_50", err.Error())
}

func TestVGG16_Shapes(t *testing.T) {
	arch := VGG16()

	assert.Equal(t, 13, countKind(arch, KindConv2D))
	assert.Equal(t, 3, countKind(arch, KindDense))

	assert.Equal(t, Shape{224, 224, 3}, arch.Layers[0].Output)
	assert.Equal(t, Shape{224, 224, 64}, findLayer(t, arch, "block1_conv1").Output)
	assert.Equal(t, Shape{56, 56, 256}, findLayer(t, arch, "block3_conv3").Output)
	assert.Equal(t, Shape{7, 7, 512}, findLayer(t, arch, "block5_pool").Output)
	assert.Equal(t, Shape{25088}, findLayer(t, arch, "flatten").Output)
	assert.Equal(t, Shape{1000}, findLayer(t, arch, "predictions").Output)

	var total int64
	for _, l := range arch.Layers {
		if l.ProducesActivations() {
			total += l.Output.Elements()
		}
	}
	assert.Equal(t, int64(13556712), total)
}

func TestInceptionV3_Shapes(t *testing.T) {
	arch := InceptionV3()

	assert.Equal(t, 94, countKind(arch, KindConv2D))
	assert.Equal(t, 94, countKind(arch, KindBatchNorm))
	assert.Equal(t, 1, countKind(arch, KindDense))

	assert.Equal(t, "input_1", arch.Layers[0].Name)
	assert.Equal(t, Shape{149, 149, 32}, findLayer(t, arch, "conv2d_1").Output)
	assert.Equal(t, Shape{35, 35, 256}, findLayer(t, arch, "mixed0").Output)
	assert.Equal(t, Shape{35, 35, 288}, findLayer(t, arch, "mixed2").Output)
	assert.Equal(t, Shape{17, 17, 768}, findLayer(t, arch, "mixed3").Output)
	assert.Equal(t, Shape{17, 17, 768}, findLayer(t, arch, "mixed7").Output)
	assert.Equal(t, Shape{8, 8, 1280}, findLayer(t, arch, "mixed8").Output)
	assert.Equal(t, Shape{8, 8, 768}, findLayer(t, arch, "mixed9_0").Output)
	assert.Equal(t, Shape{8, 8, 2048}, findLayer(t, arch, "mixed10").Output)
	assert.Equal(t, Shape{2048}, findLayer(t, arch, "avg_pool").Output)
	assert.Equal(t, Shape{1000}, findLayer(t, arch, "predictions").Output)

	last := arch.Layers[len(arch.Layers)-1]
	assert.Equal(t, "predictions", last.Name)
}

func TestLayer_ProducesActivations(t *testing.T) {
	cases := map[Kind]bool{
		KindInput:         false,
		KindConv2D:        true,
		KindBatchNorm:     false,
		KindActivation:    false,
		KindMaxPool:       false,
		KindAvgPool:       false,
		KindGlobalAvgPool: false,
		KindFlatten:       false,
		KindDense:         true,
		KindConcat:        false,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Layer{Kind: kind}.ProducesActivations(), kind.String())
	}
}
