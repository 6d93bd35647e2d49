package model

// 该文件定义编辑会话与导出引擎之间交换的数据结构。
// 所有几何字段均为相对图片宽高的百分比（0-100），与分辨率无关。

// Stage 表示处理阶段的状态。
type Stage string

const (
	StageIdle       Stage = "idle"
	StageProcessing Stage = "processing"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// Source 指向一张栅格图片：Blob 为可引用的句柄（文件路径或 URL），
// Data 为内嵌的编码数据（data URL 或裸 base64）。两者同时存在时优先使用 Data。
type Source struct {
	Blob string `json:"blob,omitempty"`
	Data string `json:"data,omitempty"`
}

// IsZero 报告该来源是否为空。
func (s Source) IsZero() bool { return s.Blob == "" && s.Data == "" }

// StageStatus 记录各处理阶段的状态。
type StageStatus struct {
	Detect    Stage `json:"detect,omitempty"`
	Translate Stage `json:"translate,omitempty"`
	Inpaint   Stage `json:"inpaint,omitempty"`
}

// ImageRecord 是一张漫画页的完整可编辑状态。
type ImageRecord struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Current  Source       `json:"current"`
	Original Source       `json:"original"`
	Cleaned  Source       `json:"cleaned,omitempty"`
	Bubbles  []Bubble     `json:"bubbles"`
	Masks    []MaskRegion `json:"masks"`
	Status   StageStatus  `json:"status"`
	Error    string       `json:"error,omitempty"`
	Skip     bool         `json:"skip,omitempty"`
}

// Background 返回绘制底图时应使用的来源：去字后的图 > 当前图 > 原图。
func (r ImageRecord) Background() Source {
	switch {
	case !r.Cleaned.IsZero():
		return r.Cleaned
	case !r.Current.IsZero():
		return r.Current
	default:
		return r.Original
	}
}

// MaskShape 为气泡背景形状。
type MaskShape string

const (
	ShapeRectangle MaskShape = "rectangle"
	ShapeRounded   MaskShape = "rounded"
	ShapeEllipse   MaskShape = "ellipse"
)

// Transparent 是颜色字段的特殊取值，表示不绘制。
const Transparent = "transparent"

// Bubble 是一段带样式的文字及其背景遮罩。
type Bubble struct {
	ID                   string     `json:"id"`
	X                    float64    `json:"x"`
	Y                    float64    `json:"y"`
	Width                float64    `json:"width"`
	Height               float64    `json:"height"`
	Rotation             float64    `json:"rotation"`
	Text                 string     `json:"text"`
	Vertical             bool       `json:"isVertical"`
	FontFamily           string     `json:"fontFamily"`
	FontSize             float64    `json:"fontSize"`
	Color                string     `json:"color"`
	StrokeColor          string     `json:"strokeColor,omitempty"`
	BackgroundColor      string     `json:"backgroundColor"`
	MaskShape            *MaskShape `json:"maskShape,omitempty"`
	MaskCornerRadius     *float64   `json:"maskCornerRadius,omitempty"`
	MaskFeather          *float64   `json:"maskFeather,omitempty"`
	AutoDetectBackground *bool      `json:"autoDetectBackground,omitempty"`
}

// RegionMethod 区分 AI 修复区域与手动填色区域。
type RegionMethod string

const (
	MethodInpaint RegionMethod = "inpaint"
	MethodFill    RegionMethod = "fill"
)

// MaskRegion 是一块待清除或遮盖的矩形区域。
type MaskRegion struct {
	ID        string       `json:"id"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Method    RegionMethod `json:"method,omitempty"`
	IsCleaned bool         `json:"isCleaned"`
	FillColor string       `json:"fillColor,omitempty"`
}

// ExportMethod 选择渲染策略。
type ExportMethod string

const (
	ExportCanvas     ExportMethod = "canvas"
	ExportScreenshot ExportMethod = "screenshot"
)

// ExportOptions 来自编辑界面；所有字段均可省略。
type ExportOptions struct {
	DefaultMaskShape        MaskShape    `json:"defaultMaskShape,omitempty"`
	DefaultMaskCornerRadius *float64     `json:"defaultMaskCornerRadius,omitempty"`
	DefaultMaskFeather      *float64     `json:"defaultMaskFeather,omitempty"`
	ExportMethod            ExportMethod `json:"exportMethod,omitempty"`
}
