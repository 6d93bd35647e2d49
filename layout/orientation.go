package layout

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// rotatedPunct 是竖排时使用旋转字形代替竖排变体的全角标点。
const rotatedPunct = "，、。．：；（）［］｛｝「」『』【】〈〉《》〔〕〖〗〘〙—―…‥～〜ー－＿｜"

// GlyphRotation 返回竖排时字符需要顺时针旋转的角度：
// 拉丁字母、ASCII 与部分全角标点旋转 90 度，其余（汉字、假名等）保持直立。
func GlyphRotation(r rune) float64 {
	if rotatesInVertical(r) {
		return 90
	}
	return 0
}

func rotatesInVertical(r rune) bool {
	if r < 0x80 {
		return unicode.IsPrint(r)
	}
	if strings.ContainsRune(rotatedPunct, r) {
		return true
	}
	if !unicode.Is(unicode.Latin, r) {
		return false
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianFullwidth, width.EastAsianWide:
		return false
	}
	return true
}
