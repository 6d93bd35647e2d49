package naming

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/utils"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Vars 返回输出文件名模板可引用的变量：stem、name、id、index（从 1 开始）以及 image.width/image.height。
func Vars(rec model.ImageRecord, index int) map[string]any {
	return map[string]any{
		"stem":  utils.FileStem(rec.Name),
		"name":  rec.Name,
		"id":    rec.ID,
		"index": index + 1,
		"image": map[string]any{
			"width":  rec.Width,
			"height": rec.Height,
		},
	}
}

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则返回原占位符。
func Interpolate(text string, data map[string]any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		key := strings.TrimSpace(groups[1])
		if key == "" {
			return match
		}
		if val, ok := resolvePath(data, key); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

func resolvePath(data map[string]any, key string) (any, bool) {
	var current any = data
	for _, segment := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[segment]; !ok {
			return nil, false
		}
	}
	return current, true
}

// Name 用记录展开模板，结果中的路径段会被清理，避免跳出归档根目录。
func Name(tmpl string, rec model.ImageRecord, index int) string {
	out := path.Clean("/" + Interpolate(tmpl, Vars(rec, index)))
	return strings.TrimPrefix(out, "/")
}
