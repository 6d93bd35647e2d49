package capture

import (
	"fmt"
	"sync"

	"github.com/gogpu/gg"

	"github.com/ByLCY/typesetter/renderer"
)

// Surface 是可复用的离屏渲染表面：首次使用时创建，之后按图片尺寸复用，
// 直到 Destroy 释放。同一时刻只允许一次渲染持有它。
type Surface struct {
	mu sync.Mutex
	dc *gg.Context
}

func NewSurface() *Surface { return &Surface{} }

// acquire 锁定表面并调整到给定尺寸，调用方必须在用完后调用返回的 release。
func (s *Surface) acquire(width, height int) (*gg.Context, func(), error) {
	s.mu.Lock()
	if s.dc == nil {
		s.dc = gg.NewContext(width, height)
	} else if err := s.dc.Resize(width, height); err != nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %v", renderer.ErrResourceUnavailable, err)
	}
	if s.dc == nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: 无法创建 %dx%d 的渲染表面", renderer.ErrResourceUnavailable, width, height)
	}
	s.dc.Identity()
	s.dc.ResetClip()
	s.dc.ClearPath()
	s.dc.Clear()
	return s.dc, s.mu.Unlock, nil
}

// Active 报告表面当前是否已创建。
func (s *Surface) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc != nil
}

// Destroy 释放表面；之后的渲染会重新创建。可重复调用。
func (s *Surface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return nil
	}
	err := s.dc.Close()
	s.dc = nil
	return err
}
