package mask_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"staging-server/internal/mask"
)

func newTestCanvas(t *testing.T, w, h int) *mask.Canvas {
	t.Helper()
	c := mask.NewCanvas(zap.NewNop())
	c.Init(w, h)
	return c
}

func TestFitDisplay(t *testing.T) {
	t.Run("Landscape image fits by width", func(t *testing.T) {
		w, h := mask.FitDisplay(2000, 1000, 800, 800)
		assert.Equal(t, 800, w)
		assert.Equal(t, 400, h)
	})

	t.Run("Portrait image fits by height", func(t *testing.T) {
		w, h := mask.FitDisplay(1000, 2000, 800, 800)
		assert.Equal(t, 400, w)
		assert.Equal(t, 800, h)
	})

	t.Run("Small image is not upscaled beyond view", func(t *testing.T) {
		w, h := mask.FitDisplay(4000, 3000, 1024, 768)
		assert.LessOrEqual(t, w, 1024)
		assert.LessOrEqual(t, h, 768)
		// Пропорции сохранены
		assert.InDelta(t, 4.0/3.0, float64(w)/float64(h), 0.01)
	})
}

func TestCanvas_StrokeLifecycle(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	t.Run("Begin extend end commits one stroke", func(t *testing.T) {
		c.BeginStroke(100, 100, mask.StrokeTagRemove)
		c.ExtendStroke(150, 120)
		c.ExtendStroke(200, 140)
		assert.Equal(t, 0, c.StrokeCount(), "stroke must not be committed until EndStroke")
		c.EndStroke()
		assert.Equal(t, 1, c.StrokeCount())
	})

	t.Run("AddStroke commits whole stroke", func(t *testing.T) {
		c.AddStroke(mask.Stroke{
			Points: []mask.Point{{X: 300, Y: 300}, {X: 320, Y: 310}},
			Width:  40,
			Tag:    mask.StrokeTagRemove,
		})
		assert.Equal(t, 2, c.StrokeCount())
	})

	t.Run("Undo pops most recent stroke", func(t *testing.T) {
		c.Undo()
		assert.Equal(t, 1, c.StrokeCount())
	})

	t.Run("Undo to empty fully resets mask state", func(t *testing.T) {
		c.Undo()
		assert.Equal(t, 0, c.StrokeCount())
		assert.Nil(t, c.Bounds())
		assert.Empty(t, c.Strokes())
	})

	t.Run("Undo on empty canvas is a no-op", func(t *testing.T) {
		c.Undo()
		assert.Equal(t, 0, c.StrokeCount())
	})
}

func TestCanvas_BrushWidthClamped(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	c.SetBrushWidth(1)
	assert.Equal(t, float64(mask.MinBrushWidth), c.BrushWidth())

	c.SetBrushWidth(500)
	assert.Equal(t, float64(mask.MaxBrushWidth), c.BrushWidth())

	c.SetBrushWidth(42)
	assert.Equal(t, 42.0, c.BrushWidth())
}

func TestCanvas_BrushChangeDoesNotAffectCommittedStrokes(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	c.SetBrushWidth(20)
	c.BeginStroke(100, 100, mask.StrokeTagRemove)
	c.EndStroke()

	c.SetBrushWidth(80)
	strokes := c.Strokes()
	assert.Len(t, strokes, 1)
	assert.Equal(t, 20.0, strokes[0].Width)
}

func TestCanvas_Bounds(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	t.Run("Empty canvas has nil bounds", func(t *testing.T) {
		assert.Nil(t, c.Bounds())
	})

	t.Run("Bounds expand by half brush width", func(t *testing.T) {
		c.SetBrushWidth(20)
		c.AddStroke(mask.Stroke{
			Points: []mask.Point{{X: 100, Y: 100}, {X: 200, Y: 150}},
			Width:  20,
			Tag:    mask.StrokeTagAdd,
		})

		b := c.Bounds()
		assert.NotNil(t, b)
		assert.InDelta(t, 90, b.X, 0.001)
		assert.InDelta(t, 90, b.Y, 0.001)
		assert.InDelta(t, 120, b.Width, 0.001)
		assert.InDelta(t, 70, b.Height, 0.001)
	})

	t.Run("Bounds are clamped to canvas", func(t *testing.T) {
		c.Clear()
		c.AddStroke(mask.Stroke{
			Points: []mask.Point{{X: 2, Y: 2}},
			Width:  40,
			Tag:    mask.StrokeTagRemove,
		})
		b := c.Bounds()
		assert.NotNil(t, b)
		assert.GreaterOrEqual(t, b.X, 0.0)
		assert.GreaterOrEqual(t, b.Y, 0.0)
		assert.LessOrEqual(t, b.X+b.Width, 800.0)
		assert.LessOrEqual(t, b.Y+b.Height, 600.0)
	})
}

func TestCanvas_Subscribe(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	var calls []*mask.Bounds
	c.Subscribe(func(b *mask.Bounds) {
		calls = append(calls, b)
	})

	c.AddStroke(mask.Stroke{Points: []mask.Point{{X: 50, Y: 50}}, Width: 10, Tag: mask.StrokeTagAdd})
	assert.Len(t, calls, 1)
	assert.NotNil(t, calls[0])

	c.Undo()
	assert.Len(t, calls, 2)
	assert.Nil(t, calls[1], "undo to empty must notify with nil bounds")
}

func TestCanvas_NotReady(t *testing.T) {
	c := mask.NewCanvas(zap.NewNop())

	// Операции до Init — no-op, не паника
	c.BeginStroke(10, 10, mask.StrokeTagRemove)
	c.ExtendStroke(20, 20)
	c.EndStroke()
	c.AddStroke(mask.Stroke{Points: []mask.Point{{X: 1, Y: 1}}, Width: 10})
	c.Undo()
	c.Clear()

	assert.False(t, c.Ready())
	assert.Equal(t, 0, c.StrokeCount())
	assert.Nil(t, c.Bounds())
}

func TestCanvas_AddStrokeClampsWidth(t *testing.T) {
	c := newTestCanvas(t, 800, 600)

	c.AddStroke(mask.Stroke{Points: []mask.Point{{X: 10, Y: 10}}, Width: 1})
	c.AddStroke(mask.Stroke{Points: []mask.Point{{X: 20, Y: 20}}, Width: 900})

	strokes := c.Strokes()
	assert.Len(t, strokes, 2)
	assert.Equal(t, float64(mask.MinBrushWidth), strokes[0].Width)
	assert.Equal(t, float64(mask.MaxBrushWidth), strokes[1].Width)
}

func TestCanvas_EmptyStrokeIgnored(t *testing.T) {
	c := newTestCanvas(t, 800, 600)
	c.AddStroke(mask.Stroke{Width: 10})
	assert.Equal(t, 0, c.StrokeCount())
}
