package layout

import (
	"encoding/json"
	"os"
)

type debugDump struct {
	Frames []*Frame `json:"frames"`
	// Rotated 统计竖排中被旋转绘制的字符数，方便核对标点方向。
	Rotated int `json:"rotated"`
}

// WriteDebugJSON 将布局结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(frames []*Frame, path string) error {
	if len(frames) == 0 {
		return nil
	}
	dump := debugDump{Frames: frames}
	for _, f := range frames {
		for _, b := range f.Bubbles {
			for _, col := range b.Text.Columns {
				for _, g := range col.Glyphs {
					if g.Rotation != 0 {
						dump.Rotated++
					}
				}
			}
		}
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
