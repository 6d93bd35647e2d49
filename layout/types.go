package layout

import "github.com/ByLCY/typesetter/model"

// 该文件定义布局结果，供两种渲染策略与调试 JSON 共用。
// 除特别说明外，长度单位均为像素；气泡内部坐标以气泡中心为原点、y 轴向下。

// Frame 是一张图片的完整布局结果。
type Frame struct {
	ImageID string      `json:"imageId"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Bubbles []BubbleBox `json:"bubbles"`
}

// BubbleBox 描述一个已换算成像素的气泡。
type BubbleBox struct {
	ID       string  `json:"id"`
	CX       float64 `json:"cx"`
	CY       float64 `json:"cy"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"` // 角度，顺时针

	Shape        model.MaskShape `json:"shape"`
	CornerRadius float64         `json:"cornerRadius"`
	Feather      float64         `json:"feather"`    // 阴影外扩距离
	Background   string          `json:"background"` // 为空表示不绘制背景

	Text TextBlock `json:"text"`
}

// TextBlock 是气泡内排好的文字。
type TextBlock struct {
	Content     string  `json:"content"`
	Font        string  `json:"font"`
	FontSize    float64 `json:"fontSize"`
	LineHeight  float64 `json:"lineHeight"`
	Color       string  `json:"color"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Vertical    bool    `json:"vertical"`

	Lines   []TextLine `json:"lines,omitempty"`
	Columns []Column   `json:"columns,omitempty"`

	// Bounds 是测量得到的文字外框；CenterX/CenterY 是修正前外框中心相对气泡中心的偏移。
	Bounds  Rect    `json:"bounds"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
}

// TextLine 表示横排的一行。X/Y 为行中心。
type TextLine struct {
	Content string  `json:"content"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Column 表示竖排的一列，列按从右到左排列。
type Column struct {
	X      float64 `json:"x"`
	Glyphs []Glyph `json:"glyphs"`
}

// Glyph 是竖排中的单个字符。X/Y 为字符框中心，Rotation 为绘制前需顺时针旋转的角度。
type Glyph struct {
	Char     string  `json:"char"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Advance  float64 `json:"advance"`
	Width    float64 `json:"width"`
	Rotation float64 `json:"rotation"`
}

// Rect 是轴对齐矩形。
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Union 返回包含两者的最小矩形。
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{min(r.X0, o.X0), min(r.Y0, o.Y0), max(r.X1, o.X1), max(r.Y1, o.Y1)}
}

func (r Rect) Center() (float64, float64) { return (r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2 }
