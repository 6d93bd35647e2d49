package layout

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ByLCY/typesetter/model"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽度为半个字号，按宽度贪心断行，换行符强制断行。
type stubTypesetter struct{}

func (s *stubTypesetter) TextWidth(text string, font string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(text)) * fontSize / 2
}

func (s *stubTypesetter) LayoutLines(content string, width float64, font string, fontSize, lineHeight float64) ([]TextLine, error) {
	var lines []TextLine
	for _, para := range strings.Split(content, "\n") {
		var cur []rune
		for _, r := range para {
			if len(cur) > 0 && s.TextWidth(string(append(cur, r)), font, fontSize) > width {
				lines = append(lines, TextLine{Content: string(cur), Width: s.TextWidth(string(cur), font, fontSize)})
				cur = nil
			}
			cur = append(cur, r)
		}
		lines = append(lines, TextLine{Content: string(cur), Width: s.TextWidth(string(cur), font, fontSize)})
	}
	return lines, nil
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func testRecord(bubbles ...model.Bubble) model.ImageRecord {
	return model.ImageRecord{ID: "img", Name: "p1.png", Width: 1000, Height: 800, Bubbles: bubbles}
}

func TestBuildRequiresTypesetter(t *testing.T) {
	if _, err := Build(testRecord(), BuildOptions{}); err == nil {
		t.Fatalf("缺少 Typesetter 时应返回错误")
	}
	if _, err := Build(model.ImageRecord{}, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("尺寸为 0 时应返回错误")
	}
}

func TestBubbleGeometryInPixels(t *testing.T) {
	shape := model.ShapeRounded
	radius := 20.0
	b := model.Bubble{ID: "b1", X: 50, Y: 25, Width: 20, Height: 10, Rotation: 15, FontSize: 1, Text: "", BackgroundColor: "#ffffff", MaskShape: &shape, MaskCornerRadius: &radius}
	frame, err := Build(testRecord(b), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	box := frame.Bubbles[0]
	if !almostEqual(box.CX, 500) || !almostEqual(box.CY, 200) || !almostEqual(box.Width, 200) || !almostEqual(box.Height, 80) {
		t.Fatalf("像素盒子错误: %+v", box)
	}
	if box.Shape != model.ShapeRounded || !almostEqual(box.CornerRadius, 16) {
		t.Fatalf("圆角应为短边的 20%%: %+v", box)
	}
	// 默认羽化 10 => 0.1 * 80 * 0.3
	if !almostEqual(box.Feather, 2.4) {
		t.Fatalf("羽化外扩错误: %v", box.Feather)
	}
	if box.Background != "#ffffff" {
		t.Fatalf("背景色丢失: %q", box.Background)
	}
	if !almostEqual(box.Text.FontSize, 20) || !almostEqual(box.Text.LineHeight, 30) {
		t.Fatalf("字号应为 fontSize*width/50: %+v", box.Text)
	}
}

func TestTransparentBubbleHasNoBackground(t *testing.T) {
	b := model.Bubble{ID: "b", X: 50, Y: 50, Width: 10, Height: 10, FontSize: 1, BackgroundColor: model.Transparent}
	frame, err := Build(testRecord(b), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	if frame.Bubbles[0].Background != "" {
		t.Fatalf("transparent 不应绘制背景: %q", frame.Bubbles[0].Background)
	}
	if frame.Bubbles[0].Text.Stroke != "#ffffff" || frame.Bubbles[0].Text.Color != "#000000" {
		t.Fatalf("默认颜色错误: %+v", frame.Bubbles[0].Text)
	}
}

func TestHorizontalLinesCenteredAsBlock(t *testing.T) {
	// 字号 20px，字宽 10px，内宽 200*0.9=180 => 每行最多 18 个字符。
	b := model.Bubble{ID: "h", X: 50, Y: 50, Width: 20, Height: 50, FontSize: 1, Text: strings.Repeat("x", 40)}
	frame, err := Build(testRecord(b), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	lines := frame.Bubbles[0].Text.Lines
	if len(lines) != 3 {
		t.Fatalf("期望 3 行，实际 %d", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if !almostEqual(lines[i].Y-lines[i-1].Y, 30) {
			t.Fatalf("行距应为 1.5 倍字号: %v -> %v", lines[i-1].Y, lines[i].Y)
		}
	}
	if !almostEqual(lines[0].Y+lines[2].Y, 0) {
		t.Fatalf("文字块应垂直居中: %+v", lines)
	}
	for _, l := range lines {
		if l.Width > 180+1e-6 {
			t.Fatalf("行宽超出内框: %+v", l)
		}
	}
	bounds := frame.Bubbles[0].Text.Bounds
	cx, cy := bounds.Center()
	if !almostEqual(cx, 0) || !almostEqual(cy, 0) {
		t.Fatalf("测量中心应与气泡中心重合: %+v", bounds)
	}
}

func TestVerticalColumnsRightToLeft(t *testing.T) {
	// 高 100px，内高 90px，字号 20px：每列最多 4 个直立字符。
	b := model.Bubble{ID: "v", X: 50, Y: 50, Width: 20, Height: 12.5, FontSize: 1, Vertical: true, Text: "漫画文字排版测试\n第二"}
	frame, err := Build(testRecord(b), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	cols := frame.Bubbles[0].Text.Columns
	if len(cols) != 3 {
		t.Fatalf("期望 3 列，实际 %d", len(cols))
	}
	if !(cols[0].X > cols[1].X && cols[1].X > cols[2].X) {
		t.Fatalf("列应自右向左排列: %v %v %v", cols[0].X, cols[1].X, cols[2].X)
	}
	if !almostEqual(cols[0].X-cols[1].X, 30) {
		t.Fatalf("列距应为 1.5 倍字号: %v", cols[0].X-cols[1].X)
	}
	if got := cols[0].Glyphs[0].Char; got != "漫" {
		t.Fatalf("第一列首字错误: %q", got)
	}
	if got := cols[2].Glyphs[0].Char; got != "第" {
		t.Fatalf("换行符应开启新列: %q", got)
	}
	for _, c := range cols {
		for i := 1; i < len(c.Glyphs); i++ {
			if c.Glyphs[i].Y <= c.Glyphs[i-1].Y {
				t.Fatalf("列内字符应自上而下: %+v", c.Glyphs)
			}
		}
	}
	cx, cy := frame.Bubbles[0].Text.Bounds.Center()
	if !almostEqual(cx, 0) || !almostEqual(cy, 0) {
		t.Fatalf("竖排外框应居中: %+v", frame.Bubbles[0].Text.Bounds)
	}
}

func TestVerticalRotatedGlyphAdvance(t *testing.T) {
	b := model.Bubble{ID: "v", X: 50, Y: 50, Width: 20, Height: 50, FontSize: 1, Vertical: true, Text: "文A，"}
	frame, err := Build(testRecord(b), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	glyphs := frame.Bubbles[0].Text.Columns[0].Glyphs
	want := []float64{0, 90, 90}
	for i, g := range glyphs {
		if g.Rotation != want[i] {
			t.Fatalf("%q 旋转角度应为 %v，实际 %v", g.Char, want[i], g.Rotation)
		}
	}
	if !almostEqual(glyphs[0].Advance, 20) || !almostEqual(glyphs[1].Advance, 10) {
		t.Fatalf("直立字符步进一个字号，旋转字符步进为字宽: %+v", glyphs)
	}
}

func TestGlyphRotation(t *testing.T) {
	cases := map[rune]float64{
		'A': 90, 'z': 90, '1': 90, '!': 90, 'é': 90,
		'文': 0, 'あ': 0, 'カ': 0, 'Ａ': 0, '！': 0,
		'，': 90, '。': 90, '「': 90, '…': 90, 'ー': 90,
	}
	for r, want := range cases {
		if got := GlyphRotation(r); got != want {
			t.Fatalf("%q: 期望 %v，实际 %v", r, want, got)
		}
	}
}

func TestUnits(t *testing.T) {
	if !almostEqual(PxToPt(PtToMm), 1) {
		t.Fatalf("px/pt 换算不可逆")
	}
	if got := StrokeWidth(6); got != 1 {
		t.Fatalf("描边宽度下限为 1，实际 %v", got)
	}
	if got := StrokeWidth(48); !almostEqual(got, 4) {
		t.Fatalf("描边宽度应为字号的 1/12，实际 %v", got)
	}
	if got := CornerPixels(80, 100, 50); got != 25 {
		t.Fatalf("圆角不应超过短边一半，实际 %v", got)
	}
	if got := FeatherExtent(0, 100, 100); got != 0 {
		t.Fatalf("羽化 0 不应外扩，实际 %v", got)
	}
}

func TestWriteDebugJSON(t *testing.T) {
	frame, err := Build(testRecord(model.Bubble{ID: "b", X: 50, Y: 50, Width: 20, Height: 20, FontSize: 1, Text: "hi"}), BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteDebugJSON([]*Frame{frame}, path); err != nil {
		t.Fatalf("写出失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	var decoded debugDump
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("JSON 无效: %v", err)
	}
	if len(decoded.Frames) != 1 || decoded.Frames[0].Bubbles[0].Text.Lines[0].Content != "hi" {
		t.Fatalf("JSON 内容错误: %s", data)
	}
	if decoded.Rotated != 0 {
		t.Fatalf("横排不应统计旋转字符，得到 %d", decoded.Rotated)
	}
}
