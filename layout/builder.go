package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/ByLCY/typesetter/model"
)

const defaultTextColor = "#000000"

// Build 将图片记录中的全部气泡换算为像素并完成文字排版。
func Build(rec model.ImageRecord, opts BuildOptions) (*Frame, error) {
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	if rec.Width <= 0 || rec.Height <= 0 {
		return nil, fmt.Errorf("layout: 图片 %s 尺寸无效 %dx%d", rec.Name, rec.Width, rec.Height)
	}
	frame := &Frame{
		ImageID: rec.ID,
		Width:   rec.Width,
		Height:  rec.Height,
		Bubbles: make([]BubbleBox, 0, len(rec.Bubbles)),
	}
	for _, b := range rec.Bubbles {
		box, err := BuildBubble(b, rec.Width, rec.Height, opts)
		if err != nil {
			return nil, fmt.Errorf("气泡 %s: %w", b.ID, err)
		}
		frame.Bubbles = append(frame.Bubbles, box)
	}
	return frame, nil
}

// BuildBubble 计算单个气泡的像素盒子、遮罩参数与文字位置。
func BuildBubble(b model.Bubble, width, height int, opts BuildOptions) (BubbleBox, error) {
	W, H := float64(width), float64(height)
	box := BubbleBox{
		ID:       b.ID,
		CX:       b.X / 100 * W,
		CY:       b.Y / 100 * H,
		Width:    b.Width / 100 * W,
		Height:   b.Height / 100 * H,
		Rotation: b.Rotation,
		Shape:    b.Shape(opts.Export),
	}
	box.CornerRadius = CornerPixels(b.CornerRadius(opts.Export), box.Width, box.Height)
	box.Feather = FeatherExtent(b.Feather(opts.Export), box.Width, box.Height)
	if b.HasBackground() {
		box.Background = strings.TrimSpace(b.BackgroundColor)
	}

	fontPx := FontPixels(b.FontSize, width)
	color := strings.TrimSpace(b.Color)
	if color == "" {
		color = defaultTextColor
	}
	tb := TextBlock{
		Content:     b.Text,
		Font:        strings.TrimSpace(b.FontFamily),
		FontSize:    fontPx,
		LineHeight:  fontPx * LineHeightFactor,
		Color:       color,
		Stroke:      b.Stroke(),
		StrokeWidth: StrokeWidth(fontPx),
		Vertical:    b.Vertical,
	}
	if strings.TrimSpace(b.Text) == "" || fontPx <= 0 {
		box.Text = tb
		return box, nil
	}

	innerW, innerH := box.Width*innerScale, box.Height*innerScale
	var err error
	if b.Vertical {
		tb.Columns = layoutColumns(b.Text, innerH, tb.Font, fontPx, tb.LineHeight, opts.Typesetter)
	} else {
		tb.Lines, err = layoutRows(b.Text, innerW, tb.Font, fontPx, tb.LineHeight, opts.Typesetter)
		if err != nil {
			return BubbleBox{}, err
		}
	}
	recenter(&tb)
	box.Text = tb
	return box, nil
}

// layoutRows 横排：逐行居中，整体在气泡内垂直居中。
func layoutRows(content string, width float64, font string, fontPx, lineHeight float64, ts Typesetter) ([]TextLine, error) {
	lines, err := ts.LayoutLines(content, width, font, fontPx, lineHeight)
	if err != nil {
		return nil, err
	}
	top := -float64(len(lines)) * lineHeight / 2
	for i := range lines {
		if lines[i].Width <= 0 && lines[i].Content != "" {
			lines[i].Width = ts.TextWidth(lines[i].Content, font, fontPx)
		}
		lines[i].Height = fontPx
		lines[i].X = 0
		lines[i].Y = top + lineHeight*(float64(i)+0.5)
	}
	return lines, nil
}

// layoutColumns 竖排：按换行符起新列，超出高度时折列；列自右向左排列，列内居中。
func layoutColumns(content string, height float64, font string, fontPx, lineHeight float64, ts Typesetter) []Column {
	var cols [][]Glyph
	for _, para := range strings.Split(content, "\n") {
		var col []Glyph
		used := 0.0
		for _, r := range para {
			g := Glyph{Char: string(r), Rotation: GlyphRotation(r), Width: fontPx, Advance: fontPx}
			if g.Rotation != 0 {
				// 旋转后字宽成为列方向的步进，列宽仍占一个字号。
				g.Advance = ts.TextWidth(g.Char, font, fontPx)
			}
			if len(col) > 0 && used+g.Advance > height {
				cols = append(cols, col)
				col, used = nil, 0
			}
			col = append(col, g)
			used += g.Advance
		}
		cols = append(cols, col)
	}

	right := float64(len(cols)) * lineHeight / 2
	out := make([]Column, len(cols))
	for j, glyphs := range cols {
		x := right - lineHeight*(float64(j)+0.5)
		length := 0.0
		for _, g := range glyphs {
			length += g.Advance
		}
		y := -length / 2
		for i := range glyphs {
			glyphs[i].X = x
			glyphs[i].Y = y + glyphs[i].Advance/2
			y += glyphs[i].Advance
		}
		out[j] = Column{X: x, Glyphs: glyphs}
	}
	return out
}

// recenter 测量文字外框，并把全部位置平移到以气泡中心为外框中心。
func recenter(tb *TextBlock) {
	bounds := Measure(*tb)
	if bounds.Empty() {
		return
	}
	dx, dy := bounds.Center()
	tb.CenterX, tb.CenterY = dx, dy
	if math.Abs(dx) < 1e-9 && math.Abs(dy) < 1e-9 {
		tb.Bounds = bounds
		return
	}
	for i := range tb.Lines {
		tb.Lines[i].X -= dx
		tb.Lines[i].Y -= dy
	}
	for i := range tb.Columns {
		tb.Columns[i].X -= dx
		for k := range tb.Columns[i].Glyphs {
			tb.Columns[i].Glyphs[k].X -= dx
			tb.Columns[i].Glyphs[k].Y -= dy
		}
	}
	tb.Bounds = Rect{bounds.X0 - dx, bounds.Y0 - dy, bounds.X1 - dx, bounds.Y1 - dy}
}

// Measure 返回文字的实际外框。横排取各行宽度，竖排取每个字符框。
func Measure(tb TextBlock) Rect {
	var r Rect
	for _, l := range tb.Lines {
		if l.Content == "" {
			continue
		}
		r = r.Union(Rect{l.X - l.Width/2, l.Y - l.Height/2, l.X + l.Width/2, l.Y + l.Height/2})
	}
	for _, c := range tb.Columns {
		for _, g := range c.Glyphs {
			w, h := g.Width, g.Advance
			r = r.Union(Rect{g.X - w/2, g.Y - h/2, g.X + w/2, g.Y + h/2})
		}
	}
	return r
}
