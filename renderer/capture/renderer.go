package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/fonts"
	"github.com/ByLCY/typesetter/layout"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/renderer"
	"github.com/ByLCY/typesetter/utils"
)

// Renderer 在共享的离屏表面上重建整张图（底图、填色遮罩、气泡背景、文字）后直接栅格化。
// 字体取自字体缓存内嵌后的样式规则，与编辑视图使用同一份资源。
type Renderer struct {
	fonts   *fonts.Library
	surface *Surface

	mu       sync.Mutex
	sources  map[string]*text.FontSource
	fallback *text.FontSource
}

var (
	_ renderer.Strategy = (*Renderer)(nil)
	_ renderer.Releaser = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// NewRenderer 创建截图式渲染器。surface 为空时创建私有表面。
func NewRenderer(lib *fonts.Library, surface *Surface) *Renderer {
	if surface == nil {
		surface = NewSurface()
	}
	return &Renderer{fonts: lib, surface: surface, sources: map[string]*text.FontSource{}}
}

// Release 销毁渲染表面。
func (r *Renderer) Release() error { return r.surface.Destroy() }

// Render 实现 renderer.Strategy。
func (r *Renderer) Render(ctx context.Context, rec model.ImageRecord, opts model.ExportOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bg, rec, err := renderer.LoadBackground(ctx, rec)
	if err != nil {
		return nil, err
	}
	r.embedFonts(ctx, rec.Bubbles)
	frame, err := layout.Build(rec, layout.BuildOptions{Typesetter: r, Export: opts})
	if err != nil {
		return nil, err
	}

	dc, release, err := r.surface.acquire(rec.Width, rec.Height)
	if err != nil {
		return nil, err
	}
	defer release()

	dc.DrawImageEx(gg.ImageBufFromImage(bg), gg.DrawImageOptions{
		DstWidth:  float64(rec.Width),
		DstHeight: float64(rec.Height),
	})
	for _, f := range renderer.Fills(rec) {
		dc.SetHexColor(f.Color)
		dc.DrawRectangle(float64(f.Rect.Min.X), float64(f.Rect.Min.Y), float64(f.Rect.Dx()), float64(f.Rect.Dy()))
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("填充遮罩失败: %w", err)
		}
	}
	for _, box := range frame.Bubbles {
		layer, at, err := r.bubbleLayer(box)
		if err != nil {
			return nil, fmt.Errorf("气泡 %s: %w", box.ID, err)
		}
		if layer == nil || layer.Bounds().Empty() {
			continue
		}
		dc.DrawImage(gg.ImageBufFromImage(layer), float64(at.X), float64(at.Y))
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("编码 %s 失败: %w", rec.Name, err)
	}
	return buf.Bytes(), nil
}

// LayoutLines 使用字体自带的断行规则（先按词、再按字符）。
func (r *Renderer) LayoutLines(content string, width float64, font string, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	face := r.face(font, fontSize)
	wrapped := text.WrapText(content, face, width, text.WrapWordChar)
	lines := make([]layout.TextLine, 0, len(wrapped))
	for _, w := range wrapped {
		s := strings.TrimRight(w.Text, " \t")
		lines = append(lines, layout.TextLine{Content: s, Width: face.Advance(s)})
	}
	return lines, nil
}

// TextWidth 实现 layout.Typesetter。
func (r *Renderer) TextWidth(s string, font string, fontSize float64) float64 {
	return r.face(font, fontSize).Advance(s)
}

// embedFonts 一次性请求全部气泡用到的字体族，把内嵌后的字体文件解析为字体源。
func (r *Renderer) embedFonts(ctx context.Context, bubbles []model.Bubble) {
	if r.fonts == nil {
		return
	}
	var missing []string
	seen := map[string]bool{}
	r.mu.Lock()
	for _, b := range bubbles {
		key := fonts.FamilyKey(b.FontFamily)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := r.sources[key]; !ok {
			missing = append(missing, b.FontFamily)
		}
	}
	r.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	css := r.fonts.StyleRules(ctx, missing...)
	for key, data := range fonts.RegularByFamily(fonts.ParseFaces(css)) {
		src, err := text.NewFontSource(data)
		if err != nil {
			utils.Logger.Warn("解析字体失败", zap.String("family", key), zap.Error(err))
			continue
		}
		r.mu.Lock()
		r.sources[key] = src
		r.mu.Unlock()
	}
}

func (r *Renderer) face(font string, sizePx float64) text.Face {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.sources[fonts.FamilyKey(font)]; ok {
		return src.Face(sizePx)
	}
	if r.fallback == nil {
		src, err := text.NewFontSource(fonts.Fallback())
		if err != nil {
			// 内置字体随二进制发布，解析失败属于构建问题。
			panic(fmt.Sprintf("加载内置字体失败: %v", err))
		}
		r.fallback = src
	}
	return r.fallback.Face(sizePx)
}
