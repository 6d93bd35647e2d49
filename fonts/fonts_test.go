package fonts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/typesetter/config"
	"github.com/ByLCY/typesetter/utils"
)

const sheetTemplate = `/* latin */
@font-face {
  font-family: 'Noto Sans JP';
  font-style: normal;
  font-weight: 700;
  src: url(%[1]s/jp-bold.ttf) format('truetype');
}
@font-face {
  font-family: 'Noto Sans JP';
  font-style: normal;
  font-weight: 400;
  src: url(%[1]s/jp-regular.ttf) format('truetype');
  unicode-range: U+0000-00FF, U+0131;
}
@font-face {
  font-family: Bangers;
  src: url("%[1]s/bangers.ttf") format('truetype');
}
@font-face {
  font-family: 'Broken';
  src: url(%[1]s/missing.ttf);
}
`

type fontServer struct {
	*httptest.Server
	sheetHits atomic.Int32
	fontHits  map[string]*atomic.Int32
}

func newFontServer(t *testing.T) *fontServer {
	t.Helper()
	fs := &fontServer{fontHits: map[string]*atomic.Int32{}}
	for _, name := range []string{"/jp-bold.ttf", "/jp-regular.ttf", "/bangers.ttf"} {
		fs.fontHits[name] = &atomic.Int32{}
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/css" {
			fs.sheetHits.Add(1)
			w.Header().Set("Content-Type", "text/css")
			fmt.Fprintf(w, sheetTemplate, fs.URL)
			return
		}
		hits, ok := fs.fontHits[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "font/ttf")
		_, _ = w.Write([]byte("FONT" + r.URL.Path))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func TestParseStylesheetCollectsFontFaces(t *testing.T) {
	blocks, err := ParseStylesheet(fmt.Sprintf(sheetTemplate, "http://x") + "body { color: red; }")
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, "Noto Sans JP", blocks[0].Family)
	assert.Equal(t, "700", blocks[0].Decls["font-weight"])
	assert.Equal(t, []string{"url(http://x/jp-bold.ttf)"}, blocks[0].URLs)
	assert.Equal(t, "U+0000-00FF, U+0131", blocks[1].Decls["unicode-range"])
	assert.Equal(t, "Bangers", blocks[2].Family)
	assert.Equal(t, "http://x/bangers.ttf", urlTarget(blocks[2].URLs[0]))
	assert.Contains(t, blocks[0].Raw, "src: url(http://x/jp-bold.ttf) format('truetype');")
}

func TestStyleRulesEmbedsOnlyRequestedFamilies(t *testing.T) {
	srv := newFontServer(t)
	cache := NewCache(srv.URL + "/css")
	ctx := context.Background()

	css := cache.StyleRules(ctx, "Noto Sans JP")
	assert.Equal(t, 2, strings.Count(css, "@font-face"))
	assert.NotContains(t, css, srv.URL)
	assert.Contains(t, css, "url(data:font/ttf;base64,"+base64.StdEncoding.EncodeToString([]byte("FONT/jp-regular.ttf"))+")")
	assert.NotContains(t, css, "Bangers")

	// 第二次调用命中样式表与资源缓存。
	again := cache.StyleRules(ctx, "noto sans jp", "Bangers")
	assert.Equal(t, 3, strings.Count(again, "@font-face"))
	assert.Equal(t, int32(1), srv.sheetHits.Load())
	assert.Equal(t, int32(1), srv.fontHits["/jp-regular.ttf"].Load())
	assert.Equal(t, int32(1), srv.fontHits["/bangers.ttf"].Load())

	assert.Empty(t, cache.StyleRules(ctx, "Unknown Family"))
	assert.Equal(t, []string{"Bangers", "Broken", "Noto Sans JP"}, cache.Families(ctx))
}

func TestStyleRulesDropsBlocksWithUnreachableResources(t *testing.T) {
	srv := newFontServer(t)
	cache := NewCache(srv.URL + "/css")
	assert.Empty(t, cache.StyleRules(context.Background(), "Broken"))
}

func TestSheetFailureYieldsEmptyMappingOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	cache := NewCache(srv.URL)
	assert.Empty(t, cache.StyleRules(context.Background(), "Noto Sans JP"))
	assert.Empty(t, cache.StyleRules(context.Background(), "Noto Sans JP"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestCancelledSheetFetchIsRetried(t *testing.T) {
	srv := newFontServer(t)
	cache := NewCache(srv.URL + "/css")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, cache.StyleRules(ctx, "Bangers"))

	assert.NotEmpty(t, cache.StyleRules(context.Background(), "Bangers"))
	assert.Equal(t, int32(1), srv.sheetHits.Load())
}

func TestStoreServesResourcesAcrossCaches(t *testing.T) {
	srv := newFontServer(t)
	store := NewMemoryStore()
	ctx := context.Background()

	first := NewCache(srv.URL+"/css", WithStore(store))
	require.NotEmpty(t, first.StyleRules(ctx, "Bangers"))
	second := NewCache(srv.URL+"/css", WithStore(store))
	require.NotEmpty(t, second.StyleRules(ctx, "Bangers"))

	assert.Equal(t, int32(1), srv.fontHits["/bangers.ttf"].Load())
	assert.Equal(t, int32(2), srv.sheetHits.Load())
}

func TestUnreachableRedisDisablesStore(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := utils.Logger
	utils.Logger = zap.New(core)
	t.Cleanup(func() { utils.Logger = prev })

	cache := NewCacheFromConfig(
		config.FontsConfig{StylesheetURL: "http://127.0.0.1:1/css", Timeout: time.Second},
		config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"},
	)
	assert.Nil(t, cache.store)
	assert.Equal(t, 1, logs.FilterMessage("redis connection failed, font store disabled").Len())
	assert.NoError(t, cache.Close())
}

func TestEncodeChunkedMatchesWholeEncoding(t *testing.T) {
	data := bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6, 250, 251}, 1000)
	for _, chunk := range []int{1, 3, 4, 7, 300, 1 << 20} {
		got, err := encodeChunked(context.Background(), data, chunk)
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString(data), got, "chunk %d", chunk)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := encodeChunked(ctx, data, 30)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLibraryRegularPicksNormalWeight(t *testing.T) {
	srv := newFontServer(t)
	lib := NewLibrary(NewCache(srv.URL + "/css"))
	ctx := context.Background()

	data, ok := lib.Regular(ctx, "Noto Sans JP")
	require.True(t, ok)
	assert.Equal(t, "FONT/jp-regular.ttf", string(data))

	data, ok = lib.Regular(ctx, "Nope")
	assert.False(t, ok)
	assert.Equal(t, Fallback(), data)
}

func TestRegularByFamily(t *testing.T) {
	faces := []Face{
		{Family: "Noto Sans JP", Weight: 700, Data: []byte("bold")},
		{Family: "Noto Sans JP", Weight: 400, Style: "italic", Data: []byte("italic")},
		{Family: "noto sans jp", Weight: 400, Data: []byte("regular")},
		{Family: "Bangers", Weight: 400, Data: []byte("bangers")},
	}
	got := RegularByFamily(faces)
	assert.Equal(t, map[string][]byte{"noto sans jp": []byte("regular"), "bangers": []byte("bangers")}, got)
	assert.Equal(t, "noto sans jp", FamilyKey(` 'Noto Sans JP' `))
}

func TestParseWeight(t *testing.T) {
	assert.Equal(t, 400, parseWeight(""))
	assert.Equal(t, 700, parseWeight("bold"))
	assert.Equal(t, 300, parseWeight("300"))
	assert.Equal(t, 100, parseWeight("100 900"))
	assert.Equal(t, 400, parseWeight("heavy-ish"))
}
