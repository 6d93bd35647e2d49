package imageio

import (
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/typesetter/model"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	data, err := EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestLoadFromEverySourceKind(t *testing.T) {
	data := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	path := filepath.Join(t.TempDir(), "p.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	sources := []model.Source{
		{Data: DataURL("image/png", data)},
		{Data: base64.StdEncoding.EncodeToString(data)},
		{Blob: DataURL("image/png", data)},
		{Blob: srv.URL + "/p.png"},
		{Blob: path},
	}
	for _, src := range sources {
		img, err := Load(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	}
}

func TestLoadFailuresAreDecodeErrors(t *testing.T) {
	for _, src := range []model.Source{
		{},
		{Data: "data:image/png;base64,@@@"},
		{Data: DataURL("image/png", []byte("not an image"))},
		{Blob: filepath.Join(t.TempDir(), "missing.png")},
	} {
		_, err := Load(context.Background(), src)
		assert.ErrorIs(t, err, ErrDecode)
	}
}
