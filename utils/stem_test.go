package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStem(t *testing.T) {
	cases := map[string]string{
		"page01.jpg":        "page01",
		"dir/sub/page.webp": "page",
		`C:\manga\p 2.png`:  "p 2",
		"a:b?c.png":         "a_b_c",
		"":                  "image",
		".png":              "image",
		"noext":             "noext",
		"vol.1.page.3.jpeg": "vol.1.page.3",
	}
	for in, want := range cases {
		assert.Equal(t, want, FileStem(in), "input %q", in)
	}
}
