package fonts

import (
	"context"
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/goregular"
)

// FallbackFamily 是远程字体不可用时使用的字体族名。
const FallbackFamily = "Go"

// Face 是一份已解码的字体文件。
type Face struct {
	Family string
	Style  string
	Weight int
	Data   []byte
}

// ParseFaces 从内嵌后的样式文本中取出字体文件字节，仍引用网络地址的 src 被跳过。
func ParseFaces(css string) []Face {
	if strings.TrimSpace(css) == "" {
		return nil
	}
	blocks, err := ParseStylesheet(css)
	if err != nil {
		return nil
	}
	var faces []Face
	for _, b := range blocks {
		for _, token := range b.URLs {
			data, ok := decodeDataURL(urlTarget(token))
			if !ok {
				continue
			}
			faces = append(faces, Face{
				Family: b.Family,
				Style:  strings.ToLower(strings.TrimSpace(b.Decls["font-style"])),
				Weight: parseWeight(b.Decls["font-weight"]),
				Data:   data,
			})
			break
		}
	}
	return faces
}

func decodeDataURL(s string) ([]byte, bool) {
	if !strings.HasPrefix(s, "data:") {
		return nil, false
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 || !strings.Contains(s[:comma], ";base64") {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return nil, false
	}
	return data, true
}

func parseWeight(v string) int {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "", "normal":
		return 400
	case "bold":
		return 700
	}
	// 可变字体写作 "100 900"，取起点。
	if i := strings.IndexByte(v, ' '); i > 0 {
		v = v[:i]
	}
	w, err := strconv.Atoi(v)
	if err != nil {
		return 400
	}
	return w
}

// Library 在 Cache 之上按字体族挑选常规字重的字体文件，并缓存解码结果。
type Library struct {
	cache *Cache

	mu    sync.Mutex
	faces map[string][]byte
}

func NewLibrary(cache *Cache) *Library {
	return &Library{cache: cache, faces: map[string][]byte{}}
}

// StyleRules 透传到 Cache；cache 为空时返回空串。
func (l *Library) StyleRules(ctx context.Context, families ...string) string {
	if l == nil || l.cache == nil {
		return ""
	}
	return l.cache.StyleRules(ctx, families...)
}

// Regular 返回最接近 400 常规体的字体文件；不可用时回退到内置 Go 字体，第二个返回值为 false。
func (l *Library) Regular(ctx context.Context, family string) ([]byte, bool) {
	key := familyKey(family)
	l.mu.Lock()
	data, ok := l.faces[key]
	l.mu.Unlock()
	if ok {
		return data, true
	}

	best := pickRegular(ParseFaces(l.StyleRules(ctx, family)))
	if best == nil {
		return Fallback(), false
	}
	l.mu.Lock()
	l.faces[key] = best
	l.mu.Unlock()
	return best, true
}

// RegularByFamily 为每个字体族挑选最接近常规体的字体文件，键为 FamilyKey。
func RegularByFamily(faces []Face) map[string][]byte {
	groups := map[string][]Face{}
	for _, f := range faces {
		k := familyKey(f.Family)
		groups[k] = append(groups[k], f)
	}
	out := make(map[string][]byte, len(groups))
	for k, g := range groups {
		out[k] = pickRegular(g)
	}
	return out
}

// FamilyKey 返回字体族的规范化键：去引号、去空白并转为小写。
func FamilyKey(family string) string { return familyKey(family) }

func pickRegular(faces []Face) []byte {
	var best []byte
	bestScore := math.MaxInt
	for _, f := range faces {
		score := abs(f.Weight - 400)
		if f.Style == "italic" || f.Style == "oblique" {
			score += 1000
		}
		if score < bestScore {
			bestScore = score
			best = f.Data
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Fallback 返回内置的 Go Regular 字体。
func Fallback() []byte { return goregular.TTF }
