package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/ByLCY/typesetter/model"
)

// ErrDecode 表示来源图片无法读取或解码。
var ErrDecode = errors.New("imageio: decode failure")

// Load 读取并解码一个图片来源。Data 优先于 Blob。
func Load(ctx context.Context, src model.Source) (image.Image, error) {
	data, err := Bytes(ctx, src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Bytes 返回来源的原始编码字节。
func Bytes(ctx context.Context, src model.Source) ([]byte, error) {
	switch {
	case src.Data != "":
		return decodeInline(src.Data)
	case strings.HasPrefix(src.Blob, "data:"):
		return decodeInline(src.Blob)
	case strings.HasPrefix(src.Blob, "http://"), strings.HasPrefix(src.Blob, "https://"):
		return fetch(ctx, src.Blob)
	case src.Blob != "":
		data, err := os.ReadFile(src.Blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: empty source", ErrDecode)
	}
}

func decodeInline(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data url", ErrDecode)
		}
		if !strings.Contains(s[:comma], ";base64") {
			return []byte(s[comma+1:]), nil
		}
		payload = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrDecode, url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// EncodePNG 将图片编码为 PNG。
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG 以给定质量编码为 JPEG。
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("编码 JPEG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL 将编码后的字节包装为 data URL。
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
