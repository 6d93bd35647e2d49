// Package colordetect 估算区域周围的主色，用于气泡自动背景色。
package colordetect

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/model"
)

const (
	// Fallback 是任何失败情况下的返回值。
	Fallback = "#ffffff"

	maxSide     = 1024
	stride      = 4
	minAlpha    = 128
	quantum     = 16
	minRing     = 5.0
	ringPercent = 0.2
)

// DetectSource 解码来源后调用 Detect；解码失败时返回白色。
func DetectSource(ctx context.Context, src model.Source, cx, cy, w, h float64) string {
	img, err := imageio.Load(ctx, src)
	if err != nil {
		return Fallback
	}
	return Detect(img, cx, cy, w, h)
}

// Detect 在区域外扩的"甜甜圈"环内统计量化颜色的众数。
// 区域内部与半透明像素不参与统计；频次相同时先出现者胜出。
func Detect(img image.Image, cx, cy, w, h float64) string {
	if img == nil {
		return Fallback
	}
	img = downscale(img)
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return Fallback
	}

	innerX := (cx - w/2) / 100 * float64(width)
	innerY := (cy - h/2) / 100 * float64(height)
	innerW := w / 100 * float64(width)
	innerH := h / 100 * float64(height)
	padX := math.Max(minRing, innerW*ringPercent)
	padY := math.Max(minRing, innerH*ringPercent)

	outer := image.Rect(
		int(math.Floor(innerX-padX)), int(math.Floor(innerY-padY)),
		int(math.Ceil(innerX+innerW+padX)), int(math.Ceil(innerY+innerH+padY)),
	).Intersect(image.Rect(0, 0, width, height))
	if outer.Empty() {
		return Fallback
	}

	type key struct{ r, g, b uint8 }
	counts := map[key]int{}
	var seen []key
	for y := outer.Min.Y; y < outer.Max.Y; y += stride {
		for x := outer.Min.X; x < outer.Max.X; x += stride {
			fx, fy := float64(x), float64(y)
			if fx >= innerX && fx < innerX+innerW && fy >= innerY && fy < innerY+innerH {
				continue
			}
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a>>8 < minAlpha {
				continue
			}
			k := key{quantize(r, a), quantize(g, a), quantize(bl, a)}
			if counts[k] == 0 {
				seen = append(seen, k)
			}
			counts[k]++
		}
	}
	if len(seen) == 0 {
		return Fallback
	}
	// 按首次出现顺序比较，频次相同时保留先出现者。
	best := seen[0]
	for _, k := range seen[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return fmt.Sprintf("#%02x%02x%02x", best.r, best.g, best.b)
}

// quantize 将预乘通道还原为 8 位后取最接近的 16 的倍数。
func quantize(c, a uint32) uint8 {
	v := float64(c*0xffff/a) / 257
	q := math.Round(v/quantum) * quantum
	return uint8(math.Min(255, q))
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
