package layout

import "math"

// 渲染画布以 1mm = 1px 建立，因此字号需要在 px 与 pt 之间换算。
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// 排版常量。
const (
	LineHeightFactor = 1.5
	// fontBase 为字号比例 1.0 时对应的图片宽度份数：fontPx = fontSize * width / fontBase。
	fontBase     = 50.0
	innerScale   = 0.9
	featherRatio = 0.3
	strokeRatio  = 1.0 / 12
)

// PxToPt 将像素字号换算为字体系统使用的 pt。
func PxToPt(px float64) float64 { return px * MmToPt }

// FontPixels 将页面相对字号换算为像素。
func FontPixels(fontSize float64, imageWidth int) float64 {
	return fontSize * float64(imageWidth) / fontBase
}

// StrokeWidth 返回给定字号下的描边宽度。
func StrokeWidth(fontPx float64) float64 { return math.Max(1, fontPx*strokeRatio) }

// FeatherExtent 将 0-100 的羽化强度换算为外扩像素。
func FeatherExtent(feather, w, h float64) float64 {
	return feather / 100 * math.Min(w, h) * featherRatio
}

// CornerPixels 将百分比圆角换算为像素，并限制在短边的一半以内。
func CornerPixels(radius, w, h float64) float64 {
	short := math.Min(w, h)
	return math.Max(0, math.Min(short/2, radius/100*short))
}
