package canvasrenderer

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/typesetter/fonts"
	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/layout"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/renderer"
	"github.com/ByLCY/typesetter/utils"
	"go.uber.org/zap"
)

const (
	featherPasses = 8
	featherAlpha  = 0.15
	strokeSteps   = 16
	// kappa 为用三次贝塞尔曲线逼近四分之一圆的控制点比例。
	kappa = 0.5522847498
)

// Renderer 基于 github.com/tdewolff/canvas 直接在画布上绘制气泡，
// 同时作为 layout.Typesetter 提供文字测量。
type Renderer struct {
	fonts *fonts.Library

	fontMu         sync.Mutex
	fontFamilies   map[string]*canvas.FontFamily
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.Strategy = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// NewRenderer 创建测量布局渲染器。lib 为空时只使用内置字体。
func NewRenderer(lib *fonts.Library) *Renderer {
	return &Renderer{
		fonts:        lib,
		fontFamilies: map[string]*canvas.FontFamily{},
	}
}

// Render 绘制底图、烧录填色遮罩，再逐个绘制气泡背景与文字，输出 PNG。
func (r *Renderer) Render(ctx context.Context, rec model.ImageRecord, opts model.ExportOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bg, rec, err := renderer.LoadBackground(ctx, rec)
	if err != nil {
		return nil, err
	}
	for _, b := range rec.Bubbles {
		r.preloadFamily(ctx, b.FontFamily)
	}
	frame, err := r.Layout(rec, opts)
	if err != nil {
		return nil, err
	}

	W, H := float64(rec.Width), float64(rec.Height)
	c := canvas.New(W, H)
	cx := canvas.NewContext(c)
	cx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	cx.DrawImage(0, 0, bg, canvas.DPMM(float64(bg.Bounds().Dx())/W))
	cx.SetStrokeColor(canvas.Transparent)
	for _, f := range renderer.Fills(rec) {
		cx.SetFillColor(canvas.Hex(f.Color))
		cx.DrawPath(float64(f.Rect.Min.X), float64(f.Rect.Min.Y), canvas.Rectangle(float64(f.Rect.Dx()), float64(f.Rect.Dy())))
	}
	for _, box := range frame.Bubbles {
		r.drawBubble(cx, box)
	}

	img := rasterizer.Draw(c, canvas.DPMM(1), canvas.DefaultColorSpace)
	if img == nil {
		return nil, fmt.Errorf("%w: 光栅化 %s 失败", renderer.ErrResourceUnavailable, rec.Name)
	}
	return imageio.EncodePNG(img)
}

// Layout 使用本渲染器的字体度量计算整张图的布局。
func (r *Renderer) Layout(rec model.ImageRecord, opts model.ExportOptions) (*layout.Frame, error) {
	return layout.Build(rec, layout.BuildOptions{Typesetter: r, Export: opts})
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 画布以 1mm = 1px 建立，字号入参为 px，创建字体面时换算为 pt。
func (r *Renderer) LayoutLines(content string, width float64, font string, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	face := r.fontFace(font, fontSize, canvas.Black)
	lines := greedyWrapTokens(content, width, face)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: ""}}
	}
	return lines, nil
}

// TextWidth 实现 layout.Typesetter 接口。
func (r *Renderer) TextWidth(text string, font string, fontSize float64) float64 {
	return r.fontFace(font, fontSize, canvas.Black).TextWidth(text)
}

func (r *Renderer) drawBubble(ctx *canvas.Context, box layout.BubbleBox) {
	ctx.Push()
	defer ctx.Pop()
	if box.Rotation != 0 {
		ctx.RotateAbout(box.Rotation, box.CX, box.CY)
	}
	if box.Background != "" {
		drawShape(ctx, box)
	}
	tb := box.Text
	if len(tb.Lines) == 0 && len(tb.Columns) == 0 {
		return
	}
	face := r.fontFace(tb.Font, tb.FontSize, canvas.Hex(tb.Color))
	strokeFace := r.fontFace(tb.Font, tb.FontSize, canvas.Hex(tb.Stroke))
	m := face.Metrics()
	// 以字框中心为锚点时基线相对中心的偏移。
	baseline := (m.Ascent - m.Descent) / 2

	paint := func(x, y float64, s string) {
		for k := 0; k < strokeSteps; k++ {
			a := 2 * math.Pi * float64(k) / strokeSteps
			dx, dy := math.Cos(a)*tb.StrokeWidth, math.Sin(a)*tb.StrokeWidth
			ctx.DrawText(x+dx, y+dy, canvas.NewTextLine(strokeFace, s, canvas.Center))
		}
		ctx.DrawText(x, y, canvas.NewTextLine(face, s, canvas.Center))
	}

	for _, line := range tb.Lines {
		if strings.TrimSpace(line.Content) == "" {
			continue
		}
		paint(box.CX+line.X, box.CY+line.Y+baseline, line.Content)
	}
	for _, col := range tb.Columns {
		for _, g := range col.Glyphs {
			if strings.TrimSpace(g.Char) == "" {
				continue
			}
			x, y := box.CX+g.X, box.CY+g.Y
			if g.Rotation == 0 {
				paint(x, y+baseline, g.Char)
				continue
			}
			ctx.Push()
			ctx.RotateAbout(g.Rotation, x, y)
			paint(x, y+baseline, g.Char)
			ctx.Pop()
		}
	}
}

// drawShape 先以递减透明度绘制 8 层逐步外扩的阴影，再绘制实心形状。
func drawShape(ctx *canvas.Context, box layout.BubbleBox) {
	base := canvas.Hex(box.Background)
	ctx.SetStrokeColor(canvas.Transparent)
	if box.Feather > 0 {
		for i := featherPasses; i >= 1; i-- {
			grow := box.Feather * float64(i) / featherPasses
			ctx.SetFillColor(withAlpha(base, featherAlpha/float64(i)))
			ctx.DrawPath(box.CX, box.CY, shapePath(box, grow))
		}
	}
	ctx.SetFillColor(base)
	ctx.DrawPath(box.CX, box.CY, shapePath(box, 0))
}

func withAlpha(c color.RGBA, alpha float64) color.RGBA {
	a := float64(c.A) / 255 * alpha
	return canvas.RGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, a)
}

// shapePath 返回以原点为中心、向外扩展 grow 的形状路径。
func shapePath(box layout.BubbleBox, grow float64) *canvas.Path {
	w, h := box.Width+2*grow, box.Height+2*grow
	switch box.Shape {
	case model.ShapeRectangle:
		return roundedRectPath(w, h, 0)
	case model.ShapeRounded:
		return roundedRectPath(w, h, math.Min(box.CornerRadius+grow, math.Min(w, h)/2))
	default:
		return ellipsePath(w/2, h/2)
	}
}

func ellipsePath(rx, ry float64) *canvas.Path {
	p := &canvas.Path{}
	kx, ky := rx*kappa, ry*kappa
	p.MoveTo(rx, 0)
	p.CubeTo(rx, ky, kx, ry, 0, ry)
	p.CubeTo(-kx, ry, -rx, ky, -rx, 0)
	p.CubeTo(-rx, -ky, -kx, -ry, 0, -ry)
	p.CubeTo(kx, -ry, rx, -ky, rx, 0)
	p.Close()
	return p
}

func roundedRectPath(w, h, radius float64) *canvas.Path {
	x0, y0, x1, y1 := -w/2, -h/2, w/2, h/2
	p := &canvas.Path{}
	if radius <= 0 {
		p.MoveTo(x0, y0)
		p.LineTo(x1, y0)
		p.LineTo(x1, y1)
		p.LineTo(x0, y1)
		p.Close()
		return p
	}
	k := radius * (1 - kappa)
	p.MoveTo(x0+radius, y0)
	p.LineTo(x1-radius, y0)
	p.CubeTo(x1-k, y0, x1, y0+k, x1, y0+radius)
	p.LineTo(x1, y1-radius)
	p.CubeTo(x1, y1-k, x1-k, y1, x1-radius, y1)
	p.LineTo(x0+radius, y1)
	p.CubeTo(x0+k, y1, x0, y1-k, x0, y1-radius)
	p.LineTo(x0, y0+radius)
	p.CubeTo(x0, y0+k, x0+k, y0, x0+radius, y0)
	p.Close()
	return p
}

func (r *Renderer) fontFace(font string, sizePx float64, col color.RGBA) *canvas.FontFace {
	return r.ensureFontFamily(font).Face(layout.PxToPt(sizePx), col, canvas.FontRegular, canvas.FontNormal)
}

// preloadFamily 在布局之前通过字体库解析字体族，失败时该族回退到内置字体。
func (r *Renderer) preloadFamily(ctx context.Context, font string) {
	key := fonts.FamilyKey(font)
	if key == "" {
		return
	}
	r.fontMu.Lock()
	_, ok := r.fontFamilies[key]
	r.fontMu.Unlock()
	if ok || r.fonts == nil {
		return
	}

	data, found := r.fonts.Regular(ctx, font)
	if !found {
		utils.Logger.Debug("字体不可用，使用内置字体", zap.String("family", font))
		return
	}
	family := canvas.NewFontFamily(font)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		utils.Logger.Warn("加载字体失败", zap.String("family", font), zap.Error(err))
		return
	}
	r.fontMu.Lock()
	r.fontFamilies[key] = family
	r.fontMu.Unlock()
}

func (r *Renderer) ensureFontFamily(font string) *canvas.FontFamily {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if family, ok := r.fontFamilies[fonts.FamilyKey(font)]; ok {
		return family
	}
	if r.fallbackFamily == nil {
		family := canvas.NewFontFamily(fonts.FallbackFamily)
		if err := family.LoadFont(fonts.Fallback(), 0, canvas.FontRegular); err != nil {
			// 内置字体随二进制发布，解析失败属于构建问题。
			panic(fmt.Sprintf("加载内置字体失败: %v", err))
		}
		r.fallbackFamily = family
	}
	return r.fallbackFamily
}

// greedyWrapTokens 优先在空白处折行，单个词超过宽度时在词内拆分；显式换行总会开启新行。
func greedyWrapTokens(content string, width float64, face *canvas.FontFace) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	tokens := tokenizeContent(content)
	var lines []layout.TextLine
	var builder strings.Builder
	currentWidth := 0.0

	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lineStr := strings.TrimRightFunc(builder.String(), unicode.IsSpace)
		lines = append(lines, layout.TextLine{
			Content: lineStr,
			Width:   face.TextWidth(lineStr),
		})
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		// 行首空白不占宽度。
		if builder.Len() == 0 && strings.TrimSpace(token) == "" {
			return
		}
		builder.WriteString(token)
		currentWidth += face.TextWidth(token)
	}

	for _, token := range tokens {
		if token == "\n" {
			emit(true)
			continue
		}

		tokenWidth := face.TextWidth(token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit && strings.TrimSpace(token) != "" {
			emit(false)
		}
		if tokenWidth <= limit {
			appendToken(token)
			continue
		}

		for _, chunk := range splitTokenByWidth(token, limit, face) {
			chunkWidth := face.TextWidth(chunk)
			if currentWidth > 0 && currentWidth+chunkWidth > limit {
				emit(false)
			}
			appendToken(chunk)
		}
	}

	emit(true)
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, face *canvas.FontFace) []string {
	// limit 与 face.TextWidth 同为 px（画布 1mm = 1px）。
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if face.TextWidth(builder.String()) > limit && utf8.RuneCountInString(builder.String()) > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}
