package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
)

// ErrCanvasNotReady растеризация запрошена до инициализации канваса.
var ErrCanvasNotReady = errors.New("mask canvas is not initialized")

// Rasterize превращает закоммиченные штрихи канваса в бинарную маску:
// черный фон, штрихи сплошным белым (независимо от их живой метки),
// с записанными ширинами. Размер растра равен отображаемым размерам
// канваса; внешний провайдер сам ресемплирует маску до разрешения
// исходного изображения (контракт FLUX-fill-подобных эндпоинтов).
// Результат — PNG как байтовый payload, без записи в хранилище.
//
// Проверка "маска не пуста" — обязанность state machine, не растеризатора:
// пустой канвас здесь честно кодируется полностью черным PNG.
func Rasterize(c *Canvas) ([]byte, error) {
	if !c.ready {
		return nil, ErrCanvasNotReady
	}

	img := image.NewGray(image.Rect(0, 0, c.width, c.height))
	// Новый Gray уже нулевой (черный), отдельная заливка не нужна.

	for _, s := range c.committed {
		drawStroke(img, s)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawStroke рисует один штрих белым: диски радиуса width/2, проштампованные
// вдоль каждого сегмента с шагом в один пиксель. Одноточечный штрих — один диск.
func drawStroke(img *image.Gray, s Stroke) {
	r := s.Width / 2
	if r < 0.5 {
		r = 0.5
	}

	if len(s.Points) == 1 {
		drawDisc(img, s.Points[0].X, s.Points[0].Y, r)
		return
	}

	for i := 0; i < len(s.Points)-1; i++ {
		a, b := s.Points[i], s.Points[i+1]
		dx, dy := b.X-a.X, b.Y-a.Y
		dist := math.Hypot(dx, dy)
		steps := int(math.Ceil(dist))
		if steps == 0 {
			drawDisc(img, a.X, a.Y, r)
			continue
		}
		for t := 0; t <= steps; t++ {
			f := float64(t) / float64(steps)
			drawDisc(img, a.X+dx*f, a.Y+dy*f, r)
		}
	}
}

// drawDisc заполняет белым круг с центром (cx, cy) и радиусом r.
func drawDisc(img *image.Gray, cx, cy, r float64) {
	bounds := img.Bounds()
	x0 := int(math.Floor(cx - r))
	x1 := int(math.Ceil(cx + r))
	y0 := int(math.Floor(cy - r))
	y1 := int(math.Ceil(cy + r))

	for y := y0; y <= y1; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			fx := float64(x) + 0.5 - cx
			fy := float64(y) + 0.5 - cy
			if fx*fx+fy*fy <= r*r {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}
