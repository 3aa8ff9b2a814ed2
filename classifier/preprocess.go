package classifier

import (
	"image"

	"golang.org/x/image/draw"
)

// Tensor converts img to a size x size x 3 RGB tensor scaled to [0,1], the
// input layout the waste models were trained on.
func Tensor(img image.Image, size int) [][][3]float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	tensor := make([][][3]float32, size)
	for y := 0; y < size; y++ {
		row := make([][3]float32, size)
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			row[x] = [3]float32{
				float32(dst.Pix[off]) / 255,
				float32(dst.Pix[off+1]) / 255,
				float32(dst.Pix[off+2]) / 255,
			}
		}
		tensor[y] = row
	}
	return tensor
}
