package mask_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"staging-server/internal/mask"
)

func decodeMask(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
	return img
}

func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func TestRasterize_NotReady(t *testing.T) {
	c := mask.NewCanvas(zap.NewNop())
	_, err := mask.Rasterize(c)
	assert.ErrorIs(t, err, mask.ErrCanvasNotReady)
}

func TestRasterize_EmptyCanvasIsAllBlack(t *testing.T) {
	c := newTestCanvas(t, 64, 48)

	data, err := mask.Rasterize(c)
	assert.NoError(t, err)

	img := decodeMask(t, data)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	for y := 0; y < 48; y += 4 {
		for x := 0; x < 64; x += 4 {
			assert.Equal(t, uint8(0), grayAt(img, x, y), "pixel (%d,%d) must be black", x, y)
		}
	}
}

func TestRasterize_StrokePaintedWhite(t *testing.T) {
	c := newTestCanvas(t, 100, 100)
	c.AddStroke(mask.Stroke{
		Points: []mask.Point{{X: 20, Y: 50}, {X: 80, Y: 50}},
		Width:  10,
		Tag:    mask.StrokeTagRemove,
	})

	data, err := mask.Rasterize(c)
	assert.NoError(t, err)
	img := decodeMask(t, data)

	// Пиксели вдоль линии штриха — белые
	for _, x := range []int{20, 50, 80} {
		assert.Equal(t, uint8(255), grayAt(img, x, 50), "stroke pixel (%d,50) must be white", x)
	}
	// Углы далеко от штриха — черные
	for _, p := range [][2]int{{0, 0}, {99, 0}, {0, 99}, {99, 99}} {
		assert.Equal(t, uint8(0), grayAt(img, p[0], p[1]))
	}
}

func TestRasterize_LiveTagDoesNotAffectMask(t *testing.T) {
	render := func(tag mask.StrokeTag) []byte {
		c := newTestCanvas(t, 60, 60)
		c.AddStroke(mask.Stroke{
			Points: []mask.Point{{X: 30, Y: 30}},
			Width:  12,
			Tag:    tag,
		})
		data, err := mask.Rasterize(c)
		assert.NoError(t, err)
		return data
	}

	assert.Equal(t, render(mask.StrokeTagRemove), render(mask.StrokeTagAdd),
		"remove and add strokes must rasterize identically")
}

func TestRasterize_SinglePointStroke(t *testing.T) {
	c := newTestCanvas(t, 50, 50)
	c.AddStroke(mask.Stroke{
		Points: []mask.Point{{X: 25, Y: 25}},
		Width:  8,
		Tag:    mask.StrokeTagAdd,
	})

	data, err := mask.Rasterize(c)
	assert.NoError(t, err)
	img := decodeMask(t, data)

	assert.Equal(t, uint8(255), grayAt(img, 25, 25))
	assert.Equal(t, uint8(0), grayAt(img, 5, 5))
}

func TestRasterize_StrokeClippedAtCanvasEdge(t *testing.T) {
	c := newTestCanvas(t, 40, 40)
	// Центр почти на границе, диск частично за пределами канваса
	c.AddStroke(mask.Stroke{
		Points: []mask.Point{{X: 0, Y: 0}},
		Width:  30,
		Tag:    mask.StrokeTagRemove,
	})

	data, err := mask.Rasterize(c)
	assert.NoError(t, err)
	img := decodeMask(t, data)

	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
	assert.Equal(t, uint8(255), grayAt(img, 0, 0))
	assert.Equal(t, uint8(0), grayAt(img, 39, 39))
}
