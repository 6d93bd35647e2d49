package mask

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/model"
)

// ErrRegionNotFound 表示引用的遮罩区域不存在。
var ErrRegionNotFound = errors.New("mask: region not found")

const (
	outlineColor = "#ff0000"
	outlineRatio = 250.0
	minOutline   = 2.0

	// PreviewQuality 是标注预览的 JPEG 质量。
	PreviewQuality = 85
)

// Filter 选择生成去字蒙版时需要涂白的区域，RegionID 优先于 InpaintOnly；两者都为空时选择全部区域。
type Filter struct {
	RegionID    string `json:"regionId,omitempty"`
	InpaintOnly bool   `json:"inpaintOnly,omitempty"`
}

func (f Filter) match(m model.MaskRegion) bool {
	switch {
	case f.RegionID != "":
		return m.ID == f.RegionID
	case f.InpaintOnly:
		return m.Method == model.MethodInpaint
	default:
		return true
	}
}

// Region 返回区域在图片上的像素矩形。
func Region(rec model.ImageRecord, id string) (image.Rectangle, error) {
	m, ok := rec.FindRegion(id)
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	return m.Rect(rec.Width, rec.Height), nil
}

// Image 生成与图片等大的二值蒙版：黑色保留，白色为需要去除的区域。
func Image(rec model.ImageRecord, f Filter) (*image.Gray, error) {
	if rec.Width <= 0 || rec.Height <= 0 {
		return nil, fmt.Errorf("mask: 图片 %s 尺寸无效 %dx%d", rec.Name, rec.Width, rec.Height)
	}
	if f.RegionID != "" {
		if _, ok := rec.FindRegion(f.RegionID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, f.RegionID)
		}
	}
	out := image.NewGray(image.Rect(0, 0, rec.Width, rec.Height))
	draw.Draw(out, out.Bounds(), image.Black, image.Point{}, draw.Src)
	for _, m := range rec.Masks {
		if !f.match(m) {
			continue
		}
		draw.Draw(out, m.Rect(rec.Width, rec.Height), image.White, image.Point{}, draw.Src)
	}
	return out, nil
}

// InpaintMask 返回 PNG 编码的二值蒙版，供外部去字服务使用。
func InpaintMask(rec model.ImageRecord, f Filter) ([]byte, error) {
	img, err := Image(rec, f)
	if err != nil {
		return nil, err
	}
	return imageio.EncodePNG(img)
}

// Annotated 在原图上用红框标出所有遮罩区域，输出 JPEG。
func Annotated(ctx context.Context, rec model.ImageRecord) ([]byte, error) {
	src, err := imageio.Load(ctx, rec.Original)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	W, H := b.Dx(), b.Dy()
	dc := gg.NewContext(W, H)
	defer dc.Close()
	dc.DrawImage(gg.ImageBufFromImage(src), 0, 0)

	dc.SetHexColor(outlineColor)
	dc.SetLineWidth(math.Max(minOutline, float64(min(W, H))/outlineRatio))
	for _, m := range rec.Masks {
		r := m.Rect(W, H)
		if r.Empty() {
			continue
		}
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("绘制区域 %s 失败: %w", m.ID, err)
		}
	}
	var buf bytes.Buffer
	if err := dc.EncodeJPEG(&buf, PreviewQuality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Masked 在白底上只保留遮罩区域并集内的原图内容；没有遮罩时返回完整原图。
func Masked(src image.Image, rec model.ImageRecord) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if len(rec.Masks) == 0 {
		draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
		return out
	}
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	for _, m := range rec.Masks {
		r := m.Rect(b.Dx(), b.Dy())
		draw.Draw(out, r, src, b.Min.Add(r.Min), draw.Src)
	}
	return out
}

// MaskedPreview 解码原图并输出 Masked 的 PNG。
func MaskedPreview(ctx context.Context, rec model.ImageRecord) ([]byte, error) {
	src, err := imageio.Load(ctx, rec.Original)
	if err != nil {
		return nil, err
	}
	return imageio.EncodePNG(Masked(src, rec))
}

// Restore 以当前图为底，把指定区域还原为原图内容。区域不存在时 ok 为 false。
func Restore(ctx context.Context, rec model.ImageRecord, id string) (img *image.RGBA, ok bool, err error) {
	m, found := rec.FindRegion(id)
	if !found {
		return nil, false, nil
	}
	current, err := imageio.Load(ctx, rec.Background())
	if err != nil {
		return nil, true, err
	}
	original, err := imageio.Load(ctx, rec.Original)
	if err != nil {
		return nil, true, err
	}
	b := current.Bounds()
	r := m.Rect(b.Dx(), b.Dy())
	return Composite(current, Crop(original, r), r), true, nil
}

// Crop 复制出 r 范围内的子图，结果以 (0,0) 为原点。
func Crop(src image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(src.Bounds().Sub(src.Bounds().Min))
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min.Add(r.Min), draw.Src)
	return out
}

// Composite 返回 full 的副本，并把 sub 原样覆盖到 r 处；sub 尺寸与 r 不同时缩放到 r。
func Composite(full, sub image.Image, r image.Rectangle) *image.RGBA {
	fb := full.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	draw.Draw(out, out.Bounds(), full, fb.Min, draw.Src)
	r = r.Intersect(out.Bounds())
	if r.Empty() {
		return out
	}
	if sub.Bounds().Size() == r.Size() {
		draw.Draw(out, r, sub, sub.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(out, r, sub, sub.Bounds(), draw.Src, nil)
	}
	return out
}
