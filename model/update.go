package model

import "math"

// 以下函数都不修改入参，而是返回新的值，便于外部的历史记录按整体快照保存。

// NewImageRecord 用尺寸与原图来源创建新的图片记录。
func NewImageRecord(name string, width, height int, original Source) ImageRecord {
	return ImageRecord{
		ID:       NewID(),
		Name:     name,
		Width:    width,
		Height:   height,
		Current:  original,
		Original: original,
		Bubbles:  []Bubble{},
		Masks:    []MaskRegion{},
		Status:   StageStatus{Detect: StageIdle, Translate: StageIdle, Inpaint: StageIdle},
	}
}

// NewMaskRegion 创建一块尚未清理的修复区域。
func NewMaskRegion(x, y, w, h float64) MaskRegion {
	return ClampRegion(MaskRegion{ID: NewID(), X: x, Y: y, Width: w, Height: h, Method: MethodInpaint})
}

// AddRegions 为每个矩形创建新区域并追加到记录末尾。
func AddRegions(r ImageRecord, rects ...MaskRegion) ImageRecord {
	masks := make([]MaskRegion, len(r.Masks), len(r.Masks)+len(rects))
	copy(masks, r.Masks)
	for _, m := range rects {
		masks = append(masks, NewMaskRegion(m.X, m.Y, m.Width, m.Height))
	}
	r.Masks = masks
	return r
}

// EnsureIDs 为缺少 ID 的记录、气泡与区域补上新 ID。
func EnsureIDs(r ImageRecord) ImageRecord {
	if r.ID == "" {
		r.ID = NewID()
	}
	bubbles := append([]Bubble(nil), r.Bubbles...)
	for i := range bubbles {
		if bubbles[i].ID == "" {
			bubbles[i].ID = NewID()
		}
	}
	masks := append([]MaskRegion(nil), r.Masks...)
	for i := range masks {
		if masks[i].ID == "" {
			masks[i].ID = NewID()
		}
	}
	r.Bubbles, r.Masks = bubbles, masks
	return r
}

func clampPct(v float64) float64 { return math.Max(0, math.Min(100, v)) }

// ClampBubble 将宽高限制在 [0,100]。
func ClampBubble(b Bubble) Bubble {
	b.Width = clampPct(b.Width)
	b.Height = clampPct(b.Height)
	return b
}

// ClampRegion 将宽高限制在 [0,100]。
func ClampRegion(m MaskRegion) MaskRegion {
	m.Width = clampPct(m.Width)
	m.Height = clampPct(m.Height)
	return m
}

// ScaleFontSizes 按比例缩放所有气泡字号，结果限制在 [MinFontSize, MaxFontSize]。
func ScaleFontSizes(r ImageRecord, factor float64) ImageRecord {
	bubbles := make([]Bubble, len(r.Bubbles))
	for i, b := range r.Bubbles {
		b.FontSize = math.Max(MinFontSize, math.Min(MaxFontSize, b.FontSize*factor))
		bubbles[i] = b
	}
	r.Bubbles = bubbles
	return r
}

// ReplaceBubble 用同 ID 的新气泡替换旧值；找不到时返回原记录与 false。
func ReplaceBubble(r ImageRecord, b Bubble) (ImageRecord, bool) {
	for i := range r.Bubbles {
		if r.Bubbles[i].ID != b.ID {
			continue
		}
		bubbles := append([]Bubble(nil), r.Bubbles...)
		bubbles[i] = ClampBubble(b)
		r.Bubbles = bubbles
		return r, true
	}
	return r, false
}

// RemoveRegion 删除指定区域。
func RemoveRegion(r ImageRecord, id string) (ImageRecord, bool) {
	masks := make([]MaskRegion, 0, len(r.Masks))
	found := false
	for _, m := range r.Masks {
		if m.ID == id {
			found = true
			continue
		}
		masks = append(masks, m)
	}
	if !found {
		return r, false
	}
	r.Masks = masks
	return r, true
}

// FindRegion 按 ID 查找区域。
func (r ImageRecord) FindRegion(id string) (MaskRegion, bool) {
	for _, m := range r.Masks {
		if m.ID == id {
			return m, true
		}
	}
	return MaskRegion{}, false
}

// MarkRegionCleaned 在一次修复完成后标记区域，并把中心落在该区域内的气泡背景设为透明。
func MarkRegionCleaned(r ImageRecord, id string, method RegionMethod) (ImageRecord, bool) {
	region, ok := r.FindRegion(id)
	if !ok {
		return r, false
	}
	region.Method = method
	region.IsCleaned = true
	r = withRegion(r, region)
	r.Bubbles = mapOverlapping(r.Bubbles, region, func(b Bubble) Bubble {
		b.BackgroundColor = Transparent
		return b
	})
	return r, true
}

// FillRegions 以纯色批量填充给定区域（ids 为空时表示全部），
// 并将覆盖到的气泡背景改为该颜色。
func FillRegions(r ImageRecord, ids []string, fill string) ImageRecord {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	masks := make([]MaskRegion, len(r.Masks))
	bubbles := append([]Bubble(nil), r.Bubbles...)
	for i, m := range r.Masks {
		if len(want) == 0 || want[m.ID] {
			m.Method = MethodFill
			m.IsCleaned = true
			m.FillColor = fill
			bubbles = mapOverlapping(bubbles, m, func(b Bubble) Bubble {
				b.BackgroundColor = fill
				return b
			})
		}
		masks[i] = m
	}
	r.Masks = masks
	r.Bubbles = bubbles
	return r
}

func withRegion(r ImageRecord, region MaskRegion) ImageRecord {
	masks := make([]MaskRegion, len(r.Masks))
	for i, m := range r.Masks {
		if m.ID == region.ID {
			m = region
		}
		masks[i] = m
	}
	r.Masks = masks
	return r
}

func mapOverlapping(bubbles []Bubble, region MaskRegion, fn func(Bubble) Bubble) []Bubble {
	out := make([]Bubble, len(bubbles))
	for i, b := range bubbles {
		if Overlaps(b, region) {
			b = fn(b)
		}
		out[i] = b
	}
	return out
}
