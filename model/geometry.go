package model

import (
	"image"
	"math"
	"strings"

	"github.com/google/uuid"
)

// 内置的气泡遮罩默认值。
const (
	DefaultShape        = ShapeEllipse
	DefaultCornerRadius = 15.0
	DefaultFeather      = 10.0

	MinFontSize = 0.5
	MaxFontSize = 5.0
)

// Overlaps 判断气泡中心是否落在遮罩区域的半宽/半高范围内。
// 这是点与矩形的粗略判定，而非矩形求交；气泡的自动透明与批量填色都依赖它。
func Overlaps(b Bubble, m MaskRegion) bool {
	return math.Abs(b.X-m.X) <= m.Width/2 && math.Abs(b.Y-m.Y) <= m.Height/2
}

// PixelRect 将百分比几何换算为像素矩形：起点向下取整、终点向上取整，并裁剪到图片范围内。
func PixelRect(cx, cy, w, h float64, width, height int) image.Rectangle {
	x0 := int(math.Floor((cx - w/2) / 100 * float64(width)))
	y0 := int(math.Floor((cy - h/2) / 100 * float64(height)))
	x1 := int(math.Ceil((cx + w/2) / 100 * float64(width)))
	y1 := int(math.Ceil((cy + h/2) / 100 * float64(height)))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}

// Rect 返回区域在给定尺寸图片上的像素矩形。
func (m MaskRegion) Rect(width, height int) image.Rectangle {
	return PixelRect(m.X, m.Y, m.Width, m.Height, width, height)
}

// Shape 按 气泡覆盖 > 图片默认 > 内置默认 的顺序解析遮罩形状。
func (b Bubble) Shape(opts ExportOptions) MaskShape {
	if b.MaskShape != nil && *b.MaskShape != "" {
		return *b.MaskShape
	}
	if opts.DefaultMaskShape != "" {
		return opts.DefaultMaskShape
	}
	return DefaultShape
}

// CornerRadius 解析圆角半径（百分比）。
func (b Bubble) CornerRadius(opts ExportOptions) float64 {
	if b.MaskCornerRadius != nil {
		return *b.MaskCornerRadius
	}
	if opts.DefaultMaskCornerRadius != nil {
		return *opts.DefaultMaskCornerRadius
	}
	return DefaultCornerRadius
}

// Feather 解析羽化强度（0-100）。
func (b Bubble) Feather(opts ExportOptions) float64 {
	f := DefaultFeather
	if b.MaskFeather != nil {
		f = *b.MaskFeather
	} else if opts.DefaultMaskFeather != nil {
		f = *opts.DefaultMaskFeather
	}
	return math.Max(0, math.Min(100, f))
}

// HasBackground 报告是否需要绘制背景形状。
func (b Bubble) HasBackground() bool {
	bg := strings.TrimSpace(b.BackgroundColor)
	return bg != "" && !strings.EqualFold(bg, Transparent)
}

// Stroke 返回描边颜色；缺省或 transparent 时使用白色。
func (b Bubble) Stroke() string {
	s := strings.TrimSpace(b.StrokeColor)
	if s == "" || strings.EqualFold(s, Transparent) {
		return "#ffffff"
	}
	return s
}

// Method 返回导出方式，缺省为 canvas。
func (o ExportOptions) Method() ExportMethod {
	if o.ExportMethod == "" {
		return ExportCanvas
	}
	return o.ExportMethod
}

// NewID 生成新的实体标识。
func NewID() string { return uuid.NewString() }

// WithDefaults 用 d 补齐 o 中省略的字段。
func (o ExportOptions) WithDefaults(d ExportOptions) ExportOptions {
	if o.DefaultMaskShape == "" {
		o.DefaultMaskShape = d.DefaultMaskShape
	}
	if o.DefaultMaskCornerRadius == nil {
		o.DefaultMaskCornerRadius = d.DefaultMaskCornerRadius
	}
	if o.DefaultMaskFeather == nil {
		o.DefaultMaskFeather = d.DefaultMaskFeather
	}
	if o.ExportMethod == "" {
		o.ExportMethod = d.ExportMethod
	}
	return o
}
