package naming

import (
	"testing"

	"github.com/ByLCY/typesetter/model"
)

func TestInterpolate(t *testing.T) {
	data := map[string]any{"stem": "p01", "image": map[string]any{"width": 800}}
	cases := map[string]string{
		"typeset_${stem}.png":        "typeset_p01.png",
		"${ stem }-${image.width}":   "p01-800",
		"${missing}/${image.height}": "${missing}/${image.height}",
		"${stem.deeper}":             "${stem.deeper}",
		"plain":                      "plain",
	}
	for in, want := range cases {
		if got := Interpolate(in, data); got != want {
			t.Fatalf("Interpolate(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Interpolate("${stem}", nil); got != "${stem}" {
		t.Fatalf("nil data must keep placeholders, got %q", got)
	}
}

func TestNameForRecord(t *testing.T) {
	rec := model.ImageRecord{ID: "abc", Name: "chapter 1/page:02.jpg", Width: 10, Height: 20}
	if got := Name("typeset_manga/${stem}.png", rec, 0); got != "typeset_manga/page_02.png" {
		t.Fatalf("unexpected entry name %q", got)
	}
	if got := Name("${index}_${id}.png", rec, 4); got != "5_abc.png" {
		t.Fatalf("unexpected indexed name %q", got)
	}
	if got := Name("../../${stem}.png", rec, 0); got != "page_02.png" {
		t.Fatalf("names must not escape the archive root, got %q", got)
	}
}
