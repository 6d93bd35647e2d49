package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeName = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// FileStem 去掉扩展名并清理文件名中的非法字符，结果为空时返回 "image"。
func FileStem(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(unsafeName.ReplaceAllString(stem, "_"))
	if stem == "" {
		return "image"
	}
	return stem
}
