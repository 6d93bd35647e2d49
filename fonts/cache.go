// Package fonts 负责把逻辑字体族解析为可内嵌的字体资源。
//
// Cache 在进程生命周期内只拉取一次远程样式表，并按 URL 缓存转成 data URL 的字体文件，
// 因此产出的样式文本不再引用任何网络地址。
package fonts

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/config"
	"github.com/ByLCY/typesetter/utils"
)

const (
	defaultChunkSize = 48 * 1024
	pingTimeout      = 3 * time.Second
)

// Cache 是进程级的字体资源缓存。零值不可用，请使用 NewCache。
type Cache struct {
	sheetURL  string
	client    *http.Client
	userAgent string
	chunkSize int
	store     ResourceStore

	sheetMu  sync.Mutex
	loaded   bool
	families map[string][]Block

	resMu     sync.Mutex
	resources map[string]string
}

// Option 调整 Cache 的行为。
type Option func(*Cache)

// WithHTTPClient 替换抓取所用的 HTTP 客户端。
func WithHTTPClient(c *http.Client) Option { return func(cache *Cache) { cache.client = c } }

// WithStore 为内嵌资源增加一级持久化存储（例如 redis）。
func WithStore(s ResourceStore) Option { return func(cache *Cache) { cache.store = s } }

// WithChunkSize 设置二进制转文本时每块的字节数。
func WithChunkSize(n int) Option { return func(cache *Cache) { cache.chunkSize = n } }

// NewCache 创建以 sheetURL 为唯一来源的缓存。
func NewCache(sheetURL string, opts ...Option) *Cache {
	c := &Cache{
		sheetURL:  sheetURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		chunkSize: defaultChunkSize,
		resources: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCacheFromConfig 按配置创建缓存，redis 启用时挂上 RedisStore。
func NewCacheFromConfig(fc config.FontsConfig, rc config.RedisConfig) *Cache {
	opts := []Option{
		WithHTTPClient(&http.Client{Timeout: fc.Timeout}),
		WithChunkSize(fc.ChunkSize),
	}
	if rc.Enabled {
		store := NewRedisStore(&rc)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err := store.Ping(ctx)
		cancel()
		if err != nil {
			utils.Logger.Warn("redis connection failed, font store disabled",
				zap.String("addr", rc.Addr), zap.Error(err))
			_ = store.Close()
		} else {
			utils.Logger.Info("redis connected, font store enabled", zap.String("addr", rc.Addr))
			opts = append(opts, WithStore(store))
		}
	}
	c := NewCache(fc.StylesheetURL, opts...)
	c.userAgent = fc.UserAgent
	return c
}

// StyleRules 返回给定字体族所需的 @font-face 规则，其中的 URL 均已替换为 data URL。
// 没有匹配规则时返回空串；网络错误只会让结果变少，不会返回错误。
func (c *Cache) StyleRules(ctx context.Context, families ...string) string {
	index := c.sheet(ctx)
	var blocks []Block
	seen := map[string]bool{}
	for _, family := range families {
		key := familyKey(family)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		blocks = append(blocks, index[key]...)
	}
	if len(blocks) == 0 {
		return ""
	}

	var out []string
	for _, b := range blocks {
		raw, ok := c.embedBlock(ctx, b)
		if !ok {
			continue
		}
		out = append(out, raw)
	}
	return strings.Join(out, "\n")
}

// Families 返回样式表中声明的全部字体族。
func (c *Cache) Families(ctx context.Context) []string {
	index := c.sheet(ctx)
	names := make([]string, 0, len(index))
	for _, blocks := range index {
		if len(blocks) > 0 {
			names = append(names, blocks[0].Family)
		}
	}
	sort.Strings(names)
	return names
}

// Close 释放持久化存储的连接。内存缓存随进程结束。
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) sheet(ctx context.Context) map[string][]Block {
	c.sheetMu.Lock()
	defer c.sheetMu.Unlock()
	if c.loaded {
		return c.families
	}
	c.loaded = true
	c.families = map[string][]Block{}

	body, _, err := c.get(ctx, c.sheetURL)
	if err != nil && ctx.Err() != nil {
		// 调用方取消不算网络故障，下次调用重新拉取。
		c.loaded = false
		utils.Logger.Debug("font stylesheet fetch cancelled", zap.String("url", c.sheetURL), zap.Error(err))
		return map[string][]Block{}
	}
	if err != nil {
		utils.Logger.Warn("font stylesheet unavailable, falling back to system fonts",
			zap.String("url", c.sheetURL), zap.Error(err))
		return c.families
	}
	blocks, err := ParseStylesheet(string(body))
	if err != nil {
		utils.Logger.Warn("font stylesheet unparsable", zap.String("url", c.sheetURL), zap.Error(err))
		return c.families
	}
	for _, b := range blocks {
		key := familyKey(b.Family)
		c.families[key] = append(c.families[key], b)
	}
	return c.families
}

// embedBlock 替换块内所有外部 URL；任一资源抓取失败时丢弃整个块，保证输出自包含。
func (c *Cache) embedBlock(ctx context.Context, b Block) (string, bool) {
	raw := b.Raw
	for _, token := range b.URLs {
		target := urlTarget(token)
		if strings.HasPrefix(target, "data:") {
			continue
		}
		embedded, err := c.resource(ctx, target)
		if err != nil {
			utils.Logger.Warn("font resource unavailable", zap.String("url", target), zap.Error(err))
			return "", false
		}
		raw = strings.ReplaceAll(raw, token, "url("+embedded+")")
	}
	return raw, true
}

func (c *Cache) resource(ctx context.Context, url string) (string, error) {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	if v, ok := c.resources[url]; ok {
		return v, nil
	}
	if c.store != nil {
		if v, ok, err := c.store.Get(ctx, url); err == nil && ok {
			c.resources[url] = v
			return v, nil
		}
	}

	body, contentType, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	encoded, err := encodeChunked(ctx, body, c.chunkSize)
	if err != nil {
		return "", err
	}
	v := "data:" + mimeFor(url, contentType) + ";base64," + encoded
	c.resources[url] = v
	if c.store != nil {
		if err := c.store.Set(ctx, url, v); err != nil {
			utils.Logger.Warn("font resource store write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return v, nil
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// encodeChunked 分块做 base64 编码，块之间让出调度并检查取消。
// 块长度取 3 的倍数，各块编码结果直接拼接即为整体编码。
func encodeChunked(ctx context.Context, data []byte, chunk int) (string, error) {
	chunk -= chunk % 3
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(data)))
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		sb.WriteString(base64.StdEncoding.EncodeToString(data[off:end]))
		if err := ctx.Err(); err != nil {
			return "", err
		}
		runtime.Gosched()
	}
	return sb.String(), nil
}

func mimeFor(url, contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "font") {
		return mt
	}
	switch strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])) {
	case ".woff2":
		return "font/woff2"
	case ".woff":
		return "font/woff"
	case ".otf":
		return "font/otf"
	default:
		return "font/ttf"
	}
}

func familyKey(family string) string {
	return strings.ToLower(strings.TrimSpace(unquote(family)))
}
