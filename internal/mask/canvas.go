package mask

import (
	"math"

	"go.uber.org/zap"
)

// Пределы ширины кисти в экранных пикселях.
const (
	MinBrushWidth     = 5
	MaxBrushWidth     = 100
	DefaultBrushWidth = 30
)

// Point точка штриха в координатах канваса.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeTag семантическая метка штриха. Используется только для живой
// подсветки в UI (remove — красный, add — зеленый), в маску не попадает
// и не персистится.
type StrokeTag string

const (
	StrokeTagRemove StrokeTag = "remove"
	StrokeTagAdd    StrokeTag = "add"
)

// Stroke один свободный штрих: упорядоченные точки, ширина кисти и метка.
type Stroke struct {
	Points []Point   `json:"points"`
	Width  float64   `json:"width"`
	Tag    StrokeTag `json:"tag"`
}

// Bounds осевой bounding box всех закоммиченных штрихов в пикселях канваса.
// nil-значение означает "штрихов нет".
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundsListener получает новый bounding box после каждого коммита/undo.
// nil означает пустую маску. Используется для позиционирования индикатора
// размещения объекта в режиме add.
type BoundsListener func(*Bounds)

// Canvas поверхность рисования маски одной сессии редактирования.
// Владеет ею ровно одна открытая сессия; создается при открытии и
// уничтожается при закрытии, не переживает сессию.
//
// До вызова Init (т.е. до того, как известны размеры исходного изображения)
// все операции рисования — no-op без ошибок.
type Canvas struct {
	logger *zap.Logger

	width  int
	height int
	ready  bool

	brushWidth float64
	current    *Stroke
	committed  []Stroke
	bounds     *Bounds

	listeners []BoundsListener
}

// NewCanvas создает неинициализированный канвас.
func NewCanvas(logger *zap.Logger) *Canvas {
	return &Canvas{
		logger:     logger.Named("MaskCanvas"),
		brushWidth: DefaultBrushWidth,
	}
}

// FitDisplay вычисляет размеры канваса: исходное изображение вписывается
// в доступную область viewport с сохранением пропорций, без увеличения
// сверх натуральных размеров.
func FitDisplay(imgW, imgH, viewW, viewH int) (int, int) {
	if imgW <= 0 || imgH <= 0 || viewW <= 0 || viewH <= 0 {
		return 0, 0
	}

	imgAspect := float64(imgW) / float64(imgH)
	viewAspect := float64(viewW) / float64(viewH)

	var w, h float64
	if imgAspect > viewAspect {
		w = math.Min(float64(viewW), float64(imgW))
		h = w / imgAspect
	} else {
		h = math.Min(float64(viewH), float64(imgH))
		w = h * imgAspect
	}

	return int(math.Round(w)), int(math.Round(h))
}

// Init финализирует размеры канваса. Вызывается после успешной загрузки
// исходного изображения.
func (c *Canvas) Init(width, height int) {
	if width <= 0 || height <= 0 {
		c.logger.Warn("Canvas init with non-positive dimensions ignored",
			zap.Int("width", width), zap.Int("height", height))
		return
	}
	c.width = width
	c.height = height
	c.ready = true
	c.logger.Debug("Canvas initialized", zap.Int("width", width), zap.Int("height", height))
}

// Ready возвращает true после Init.
func (c *Canvas) Ready() bool { return c.ready }

// Size возвращает размеры канваса (0,0 до Init).
func (c *Canvas) Size() (int, int) { return c.width, c.height }

// SetBrushWidth задает ширину кисти для последующих штрихов.
// Значение зажимается в [MinBrushWidth, MaxBrushWidth]; уже закоммиченные
// штрихи не меняются.
func (c *Canvas) SetBrushWidth(w float64) {
	if w < MinBrushWidth {
		w = MinBrushWidth
	}
	if w > MaxBrushWidth {
		w = MaxBrushWidth
	}
	c.brushWidth = w
}

// BrushWidth текущая ширина кисти.
func (c *Canvas) BrushWidth() float64 { return c.brushWidth }

// BeginStroke начинает новый штрих. No-op, если канвас не готов
// или предыдущий штрих не завершен.
func (c *Canvas) BeginStroke(x, y float64, tag StrokeTag) {
	if !c.ready || c.current != nil {
		return
	}
	c.current = &Stroke{
		Points: []Point{{X: x, Y: y}},
		Width:  c.brushWidth,
		Tag:    tag,
	}
}

// ExtendStroke добавляет точку к текущему штриху. No-op без активного штриха.
func (c *Canvas) ExtendStroke(x, y float64) {
	if !c.ready || c.current == nil {
		return
	}
	c.current.Points = append(c.current.Points, Point{X: x, Y: y})
}

// EndStroke коммитит текущий штрих в историю. Только закоммиченные штрихи
// попадают в маску и в undo-историю.
func (c *Canvas) EndStroke() {
	if !c.ready || c.current == nil {
		return
	}
	c.committed = append(c.committed, *c.current)
	c.current = nil
	c.recomputeBounds()
}

// AddStroke коммитит целый штрих одним вызовом (транспортный вариант
// Begin/Extend/End для HTTP API, где клиент передает штрих целиком).
func (c *Canvas) AddStroke(s Stroke) {
	if !c.ready || len(s.Points) == 0 {
		return
	}
	if s.Width < MinBrushWidth {
		s.Width = MinBrushWidth
	}
	if s.Width > MaxBrushWidth {
		s.Width = MaxBrushWidth
	}
	c.committed = append(c.committed, s)
	c.recomputeBounds()
}

// Undo убирает последний закоммиченный штрих. Если история опустела,
// канвас полностью чист: внутреннее состояние эквивалентно Clear.
func (c *Canvas) Undo() {
	if !c.ready || len(c.committed) == 0 {
		return
	}
	c.committed = c.committed[:len(c.committed)-1]
	if len(c.committed) == 0 {
		c.committed = nil
	}
	c.recomputeBounds()
}

// Clear безусловно сбрасывает все штрихи и историю.
func (c *Canvas) Clear() {
	if !c.ready {
		return
	}
	c.current = nil
	c.committed = nil
	c.recomputeBounds()
}

// StrokeCount число закоммиченных штрихов.
func (c *Canvas) StrokeCount() int { return len(c.committed) }

// Strokes возвращает копию закоммиченных штрихов.
func (c *Canvas) Strokes() []Stroke {
	out := make([]Stroke, len(c.committed))
	copy(out, c.committed)
	return out
}

// Bounds текущий bounding box маски; nil — маска пуста.
func (c *Canvas) Bounds() *Bounds {
	if c.bounds == nil {
		return nil
	}
	b := *c.bounds
	return &b
}

// Subscribe регистрирует слушателя изменений Bounds.
func (c *Canvas) Subscribe(l BoundsListener) {
	c.listeners = append(c.listeners, l)
}

// recomputeBounds пересчитывает bounding box по всем закоммиченным штрихам
// (с учетом радиуса кисти) и уведомляет подписчиков.
func (c *Canvas) recomputeBounds() {
	if len(c.committed) == 0 {
		c.bounds = nil
		c.notify()
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, s := range c.committed {
		r := s.Width / 2
		for _, p := range s.Points {
			minX = math.Min(minX, p.X-r)
			minY = math.Min(minY, p.Y-r)
			maxX = math.Max(maxX, p.X+r)
			maxY = math.Max(maxY, p.Y+r)
		}
	}

	// Зажимаем в границы канваса
	minX = math.Max(minX, 0)
	minY = math.Max(minY, 0)
	maxX = math.Min(maxX, float64(c.width))
	maxY = math.Min(maxY, float64(c.height))

	c.bounds = &Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	c.notify()
}

func (c *Canvas) notify() {
	for _, l := range c.listeners {
		l(c.Bounds())
	}
}
