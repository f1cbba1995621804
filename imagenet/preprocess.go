package imagenet

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/krau/imagenetbench/zoo"
)

// centerFraction is the share of the resized image kept by the center crop.
const centerFraction = 0.875

var caffeMean = [3]float32{103.939, 116.779, 123.68}

// Preprocessor turns a decoded image into the NHWC float input of one sample.
type Preprocessor struct {
	Mode zoo.Preprocessing
	Size int
}

func NewPreprocessor(mode zoo.Preprocessing, size int) (Preprocessor, error) {
	if mode != zoo.PreprocessCaffe && mode != zoo.PreprocessTF {
		return Preprocessor{}, fmt.Errorf("unsupported preprocessing mode %q", mode)
	}
	if size <= 0 {
		return Preprocessor{}, fmt.Errorf("invalid input size %d", size)
	}
	return Preprocessor{Mode: mode, Size: size}, nil
}

// SampleLen is the number of floats Process returns.
func (p Preprocessor) SampleLen() int {
	return p.Size * p.Size * 3
}

// Process resizes the shorter side, center-crops to Size x Size and
// normalizes each pixel.
func (p Preprocessor) Process(img image.Image) []float32 {
	b := img.Bounds()
	short := int(math.Round(float64(p.Size) / centerFraction))
	if b.Dx() < b.Dy() {
		img = imaging.Resize(img, short, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, short, imaging.Lanczos)
	}
	crop := imaging.CropCenter(img, p.Size, p.Size)

	out := make([]float32, p.SampleLen())
	i := 0
	for y := 0; y < p.Size; y++ {
		row := crop.Pix[y*crop.Stride:]
		for x := 0; x < p.Size; x++ {
			r := float32(row[x*4])
			g := float32(row[x*4+1])
			bl := float32(row[x*4+2])

			switch p.Mode {
			case zoo.PreprocessCaffe:
				out[i] = bl - caffeMean[0]
				out[i+1] = g - caffeMean[1]
				out[i+2] = r - caffeMean[2]
			default:
				out[i] = r/127.5 - 1
				out[i+1] = g/127.5 - 1
				out[i+2] = bl/127.5 - 1
			}
			i += 3
		}
	}
	return out
}

func decode(path string) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(true))
}
