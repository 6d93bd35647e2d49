package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/model"
)

var (
	// ErrResourceUnavailable 表示无法获得渲染表面或绘图上下文。
	ErrResourceUnavailable = errors.New("renderer: resource unavailable")
	// ErrUnknownMethod 表示没有为该导出方式登记渲染策略。
	ErrUnknownMethod = errors.New("renderer: unknown export method")
)

// Strategy 将一张图片记录渲染为原始尺寸的 PNG 字节。
type Strategy interface {
	Render(ctx context.Context, rec model.ImageRecord, opts model.ExportOptions) ([]byte, error)
}

// Releaser 由持有可复用渲染表面的策略实现。
type Releaser interface {
	Release() error
}

// Set 按导出方式登记渲染策略，调用方只依赖 Set 而不关心具体策略。
type Set struct {
	strategies map[model.ExportMethod]Strategy
}

func NewSet() *Set { return &Set{strategies: map[model.ExportMethod]Strategy{}} }

// Register 登记策略，同一方式后登记者覆盖先登记者。
func (s *Set) Register(method model.ExportMethod, st Strategy) *Set {
	s.strategies[method] = st
	return s
}

// Lookup 返回导出方式对应的策略。
func (s *Set) Lookup(method model.ExportMethod) (Strategy, error) {
	st, ok := s.strategies[method]
	if !ok || st == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return st, nil
}

// Render 按 opts.ExportMethod 分派到对应策略。
func (s *Set) Render(ctx context.Context, rec model.ImageRecord, opts model.ExportOptions) ([]byte, error) {
	st, err := s.Lookup(opts.Method())
	if err != nil {
		return nil, err
	}
	return st.Render(ctx, rec, opts)
}

// Release 释放所有策略持有的表面，返回遇到的第一个错误。
func (s *Set) Release() error {
	var first error
	for _, st := range s.strategies {
		if r, ok := st.(Releaser); ok {
			if err := r.Release(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Fill 是一块需要烧录进底图的纯色区域。
type Fill struct {
	Rect  image.Rectangle
	Color string
}

// Fills 收集已完成清理、且以手动填色方式处理的遮罩区域。
func Fills(rec model.ImageRecord) []Fill {
	var out []Fill
	for _, m := range rec.Masks {
		if m.Method != model.MethodFill || !m.IsCleaned || strings.TrimSpace(m.FillColor) == "" {
			continue
		}
		r := m.Rect(rec.Width, rec.Height)
		if r.Empty() {
			continue
		}
		out = append(out, Fill{Rect: r, Color: strings.TrimSpace(m.FillColor)})
	}
	return out
}

// LoadBackground 解码底图；记录缺少尺寸时以底图尺寸补齐。
func LoadBackground(ctx context.Context, rec model.ImageRecord) (image.Image, model.ImageRecord, error) {
	img, err := imageio.Load(ctx, rec.Background())
	if err != nil {
		return nil, rec, fmt.Errorf("读取图片 %s 失败: %w", rec.Name, err)
	}
	if rec.Width <= 0 || rec.Height <= 0 {
		b := img.Bounds()
		rec.Width, rec.Height = b.Dx(), b.Dy()
	}
	if rec.Width <= 0 || rec.Height <= 0 {
		return nil, rec, fmt.Errorf("%w: 图片 %s 尺寸为 0", ErrResourceUnavailable, rec.Name)
	}
	return img, rec, nil
}
