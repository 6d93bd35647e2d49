package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/config"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/naming"
	"github.com/ByLCY/typesetter/renderer"
	"github.com/ByLCY/typesetter/utils"
)

// ErrNothingExported 表示批量导出中没有任何图片渲染成功。
var ErrNothingExported = errors.New("export: no image was exported")

// ProgressFunc 在每张图片开始渲染前以 (序号, 总数) 调用，序号从 1 开始。
type ProgressFunc func(current, total int)

// CancelFunc 在每张图片开始前被轮询，返回 true 时停止批量导出。
type CancelFunc func() bool

// File 是一份导出的文件。
type File struct {
	Name string
	Data []byte
}

// Result 汇总一次批量导出。取消时 Archive 为空。
type Result struct {
	Archive   []byte
	Name      string
	Exported  int
	Failed    int
	Cancelled bool
}

// Exporter 顺序调度渲染并打包结果。
type Exporter struct {
	renderer renderer.Strategy
	names    config.ExportConfig
	now      func() time.Time
}

// Option 配置 Exporter。
type Option func(*Exporter)

// WithNames 覆盖输出文件名模板。
func WithNames(cfg config.ExportConfig) Option {
	return func(e *Exporter) { e.names = cfg }
}

// New 创建导出器，r 通常是 *renderer.Set。
func New(r renderer.Strategy, opts ...Option) *Exporter {
	e := &Exporter{renderer: r, names: config.Default().Export, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportOne 渲染单张图片，错误直接返回给调用方。
func (e *Exporter) ExportOne(ctx context.Context, rec model.ImageRecord, opts model.ExportOptions) (File, error) {
	data, err := e.renderer.Render(ctx, rec, opts)
	if err != nil {
		return File{}, fmt.Errorf("导出 %s 失败: %w", rec.Name, err)
	}
	return File{Name: naming.Name(e.names.SingleName, rec, 0), Data: data}, nil
}

// ExportAll 按顺序渲染全部图片并打包为 zip。单张失败只记录日志并跳过；
// 全部失败时返回 ErrNothingExported。取消只在两张图片之间生效，
// 此时返回 Cancelled 且不生成归档。
func (e *Exporter) ExportAll(ctx context.Context, images []model.ImageRecord, onProgress ProgressFunc, opts model.ExportOptions, isCancelled CancelFunc) (*Result, error) {
	defer e.release()

	total := len(images)
	res := &Result{Name: e.names.ArchiveName}
	var files []File
	for i, rec := range images {
		if (isCancelled != nil && isCancelled()) || ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}
		data, err := e.renderer.Render(ctx, rec, opts)
		if err != nil {
			res.Failed++
			utils.Logger.Warn("图片导出失败，已跳过",
				zap.String("id", rec.ID),
				zap.String("name", rec.Name),
				zap.Error(err))
			continue
		}
		files = append(files, File{Name: naming.Name(e.names.EntryName, rec, i), Data: data})
	}
	res.Exported = len(files)

	if res.Cancelled {
		if onProgress != nil {
			onProgress(res.Exported+res.Failed, total)
		}
		utils.Logger.Info("批量导出已取消", zap.Int("exported", res.Exported), zap.Int("total", total))
		return res, nil
	}
	if res.Exported == 0 {
		return res, ErrNothingExported
	}
	archive, err := e.pack(files)
	if err != nil {
		return res, err
	}
	res.Archive = archive
	return res, nil
}

func (e *Exporter) release() {
	if r, ok := e.renderer.(renderer.Releaser); ok {
		if err := r.Release(); err != nil {
			utils.Logger.Warn("释放渲染表面失败", zap.Error(err))
		}
	}
}

// pack 写出 zip，重名条目追加序号。
func (e *Exporter) pack(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := map[string]int{}
	modified := e.now()
	for _, f := range files {
		name := uniqueName(f.Name, used)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("写入归档条目 %s 失败: %w", name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("写入归档条目 %s 失败: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("关闭归档失败: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
	if _, taken := used[candidate]; taken {
		return uniqueName(candidate, used)
	}
	used[candidate] = 1
	return candidate
}
