package layout

import "github.com/ByLCY/typesetter/model"

// BuildOptions 配置布局阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
	Export     model.ExportOptions
}

// Typesetter 负责测量文字并将横排文本拆成不超过宽度的行。
// 所有长度均为像素，font 为逻辑字体族名。
type Typesetter interface {
	LayoutLines(content string, width float64, font string, fontSize, lineHeight float64) ([]TextLine, error)
	TextWidth(text string, font string, fontSize float64) float64
}
