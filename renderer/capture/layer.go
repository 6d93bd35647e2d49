package capture

import (
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ByLCY/typesetter/layout"
	"github.com/ByLCY/typesetter/model"
)

const strokeSteps = 16

// 文字绘制不受变换矩阵影响，因此每个气泡先在未旋转的独立图层上绘制，
// 竖排中需要旋转的字符单独转置，最后整层按气泡角度旋转后贴回表面。

// bubbleLayer 返回气泡图层及其在表面上的左上角位置；气泡无可见内容时返回 nil。
func (r *Renderer) bubbleLayer(box layout.BubbleBox) (image.Image, image.Point, error) {
	tb := box.Text
	hasText := len(tb.Lines) > 0 || len(tb.Columns) > 0
	if box.Background == "" && !hasText {
		return nil, image.Point{}, nil
	}

	// 图层需要容纳羽化后的形状以及可能溢出的文字。
	spread := box.Feather * 2
	halfW := box.Width/2 + spread
	halfH := box.Height/2 + spread
	if hasText {
		pad := tb.StrokeWidth + tb.FontSize
		halfW = math.Max(halfW, math.Max(-tb.Bounds.X0, tb.Bounds.X1)+pad)
		halfH = math.Max(halfH, math.Max(-tb.Bounds.Y0, tb.Bounds.Y1)+pad)
	}
	lw, lh := int(math.Ceil(halfW*2)), int(math.Ceil(halfH*2))
	if lw <= 0 || lh <= 0 {
		return nil, image.Point{}, nil
	}
	ox, oy := float64(lw)/2, float64(lh)/2

	lc := gg.NewContext(lw, lh)
	defer lc.Close()

	if box.Background != "" {
		if box.Feather > 0 {
			shadow, err := featherShadow(box, lw, lh)
			if err != nil {
				return nil, image.Point{}, err
			}
			lc.DrawImage(gg.ImageBufFromImage(shadow), 0, 0)
		}
		lc.SetHexColor(box.Background)
		tracePath(lc, box, ox, oy, 0)
		if err := lc.Fill(); err != nil {
			return nil, image.Point{}, err
		}
	}
	if hasText {
		r.drawText(lc, tb, ox, oy)
	}

	layer := lc.Image()
	if box.Rotation == 0 {
		return layer, image.Pt(int(math.Round(box.CX-ox)), int(math.Round(box.CY-oy))), nil
	}
	rotated := rotate(layer, box.Rotation)
	rb := rotated.Bounds()
	return rotated, image.Pt(int(math.Round(box.CX-float64(rb.Dx())/2)), int(math.Round(box.CY-float64(rb.Dy())/2))), nil
}

// featherShadow 把外扩后的形状做高斯模糊，得到与编辑视图阴影一致的柔边。
func featherShadow(box layout.BubbleBox, lw, lh int) (image.Image, error) {
	sc := gg.NewContext(lw, lh)
	defer sc.Close()
	sc.SetHexColor(box.Background)
	tracePath(sc, box, float64(lw)/2, float64(lh)/2, box.Feather)
	if err := sc.Fill(); err != nil {
		return nil, err
	}
	return imaging.Blur(sc.Image(), box.Feather/2), nil
}

func tracePath(dc *gg.Context, box layout.BubbleBox, cx, cy, grow float64) {
	w, h := box.Width+2*grow, box.Height+2*grow
	switch box.Shape {
	case model.ShapeRectangle:
		dc.DrawRectangle(cx-w/2, cy-h/2, w, h)
	case model.ShapeRounded:
		dc.DrawRoundedRectangle(cx-w/2, cy-h/2, w, h, math.Min(box.CornerRadius+grow, math.Min(w, h)/2))
	default:
		dc.DrawEllipse(cx, cy, w/2, h/2)
	}
}

func (r *Renderer) drawText(dc *gg.Context, tb layout.TextBlock, ox, oy float64) {
	face := r.face(tb.Font, tb.FontSize)
	dc.SetFont(face)
	m := face.Metrics()
	baseline := (m.Ascent - m.Descent) / 2

	paint := func(target *gg.Context, x, y float64, s string) {
		target.SetHexColor(tb.Stroke)
		for k := 0; k < strokeSteps; k++ {
			a := 2 * math.Pi * float64(k) / strokeSteps
			target.DrawStringAnchored(s, x+math.Cos(a)*tb.StrokeWidth, y+math.Sin(a)*tb.StrokeWidth, 0.5, 0)
		}
		target.SetHexColor(tb.Color)
		target.DrawStringAnchored(s, x, y, 0.5, 0)
	}

	for _, line := range tb.Lines {
		if strings.TrimSpace(line.Content) == "" {
			continue
		}
		paint(dc, ox+line.X, oy+line.Y+baseline, line.Content)
	}
	for _, col := range tb.Columns {
		for _, g := range col.Glyphs {
			if strings.TrimSpace(g.Char) == "" {
				continue
			}
			x, y := ox+g.X, oy+g.Y
			if g.Rotation == 0 {
				paint(dc, x, y+baseline, g.Char)
				continue
			}
			// 横向绘制到小图层，再顺时针转置 90 度贴到字符框中心。
			pad := tb.StrokeWidth + 1
			gw, gh := int(math.Ceil(g.Advance+2*pad)), int(math.Ceil(tb.FontSize+2*pad))
			gc := gg.NewContext(gw, gh)
			gc.SetFont(face)
			paint(gc, float64(gw)/2, float64(gh)/2+baseline, g.Char)
			turned := turnClockwise(gc.Image())
			gc.Close()
			tbnd := turned.Bounds()
			dc.DrawImage(gg.ImageBufFromImage(turned), math.Round(x-float64(tbnd.Dx())/2), math.Round(y-float64(tbnd.Dy())/2))
		}
	}
}

// turnClockwise 将图像顺时针旋转 90 度。
func turnClockwise(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, src.At(x, y))
		}
	}
	return dst
}

// rotate 将图层绕中心顺时针旋转 deg 度，返回容纳旋转结果的新图像。
func rotate(src image.Image, deg float64) *image.RGBA {
	b := src.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dw := math.Abs(sw*cos) + math.Abs(sh*sin)
	dh := math.Abs(sw*sin) + math.Abs(sh*cos)
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(dw-1e-9)), int(math.Ceil(dh-1e-9))))
	dcx, dcy := float64(dst.Bounds().Dx())/2, float64(dst.Bounds().Dy())/2

	// y 轴向下时该矩阵表现为顺时针旋转。
	m := f64.Aff3{
		cos, -sin, dcx - (cos*sw/2 - sin*sh/2),
		sin, cos, dcy - (sin*sw/2 + cos*sh/2),
	}
	draw.BiLinear.Transform(dst, m, src, b, draw.Over, nil)
	return dst
}
