package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/config"
	"github.com/ByLCY/typesetter/export"
	"github.com/ByLCY/typesetter/fonts"
	"github.com/ByLCY/typesetter/handler"
	"github.com/ByLCY/typesetter/layout"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/renderer"
	canvasrenderer "github.com/ByLCY/typesetter/renderer/canvas"
	"github.com/ByLCY/typesetter/renderer/capture"
	"github.com/ByLCY/typesetter/utils"
)

// project 是编辑界面导出的工程文件。Pages 为尚未编辑的页面路径，读取时转换为新记录。
type project struct {
	Images  []model.ImageRecord  `json:"images"`
	Pages   []string             `json:"pages,omitempty"`
	Options *model.ExportOptions `json:"options,omitempty"`
}

func main() {
	projectPath := flag.String("project", "project.json", "工程 JSON 文件路径")
	outDir := flag.String("out", "output", "输出目录")
	imageID := flag.String("image", "", "只导出指定 id 的图片")
	method := flag.String("method", "", "渲染方式：canvas 或 screenshot，默认取配置")
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	serve := flag.Bool("serve", false, "以 HTTP 服务方式运行")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	flag.Parse()

	cfg := config.New(*configPath)

	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	cache := fonts.NewCacheFromConfig(cfg.Fonts, cfg.Redis)
	defer cache.Close()
	lib := fonts.NewLibrary(cache)

	canvasR := canvasrenderer.NewRenderer(lib)
	set := renderer.NewSet().
		Register(model.ExportCanvas, canvasR).
		Register(model.ExportScreenshot, capture.NewRenderer(lib, capture.NewSurface()))
	defer set.Release()

	exporter := export.New(set, export.WithNames(cfg.Export))

	if *serve {
		r := handler.NewRouter(cfg.Server.Mode,
			handler.NewExportHandler(exporter, cfg.Export.Options()),
			handler.NewMaskHandler(),
			handler.NewColorHandler())
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := r.Run(cfg.Server.Port); err != nil {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *projectPath, *outDir, *imageID, *method, *debug, cfg.Export.Options(), exporter, canvasR); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

// run 串联读取工程、导出与调试输出。
func run(ctx context.Context, projectPath, outDir, imageID, method, debugPath string, defaults model.ExportOptions, exporter *export.Exporter, lt *canvasrenderer.Renderer) error {
	if exporter == nil {
		return fmt.Errorf("exporter 不能为空")
	}
	proj, err := loadProject(projectPath)
	if err != nil {
		return err
	}
	opts := defaults
	if proj.Options != nil {
		opts = proj.Options.WithDefaults(defaults)
	}
	if method != "" {
		opts.ExportMethod = model.ExportMethod(method)
	}

	images := proj.Images
	if imageID != "" {
		images = nil
		for _, rec := range proj.Images {
			if rec.ID == imageID {
				images = append(images, rec)
			}
		}
		if len(images) == 0 {
			return fmt.Errorf("工程中没有 id 为 %s 的图片", imageID)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	if imageID != "" {
		file, err := exporter.ExportOne(ctx, images[0], opts)
		if err != nil {
			return err
		}
		target := filepath.Join(outDir, filepath.FromSlash(file.Name))
		if err := writeFile(target, file.Data); err != nil {
			return err
		}
		pterm.Success.Println("已导出 " + target)
	} else {
		res, err := exporter.ExportAll(ctx, images, func(current, total int) {
			if current < 1 || current > len(images) {
				return
			}
			pterm.Printf("[%d/%d] %s\n", current, total, images[current-1].Name)
		}, opts, nil)
		if err != nil {
			return err
		}
		if res.Cancelled {
			pterm.Warning.Printf("导出已取消，%d 张已完成的图片未写入\n", res.Exported)
			return nil
		}
		target := filepath.Join(outDir, res.Name)
		if err := writeFile(target, res.Archive); err != nil {
			return err
		}
		data := [][]string{
			{"归档", "成功", "失败"},
			{target, strconv.Itoa(res.Exported), strconv.Itoa(res.Failed)},
		}
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	if debugPath != "" && lt != nil {
		frames := make([]*layout.Frame, 0, len(images))
		for _, rec := range images {
			frame, err := lt.Layout(rec, opts)
			if err != nil {
				utils.Logger.Warn("布局失败，调试输出跳过该图片", zap.String("id", rec.ID), zap.Error(err))
				continue
			}
			frames = append(frames, frame)
		}
		if err := writeDebug(frames, debugPath); err != nil {
			return err
		}
	}
	return nil
}

func loadProject(path string) (*project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开工程文件 %s: %w", path, err)
	}
	var proj project
	if err := json.Unmarshal(raw, &proj); err != nil {
		return nil, fmt.Errorf("解析工程文件失败: %w", err)
	}
	for i, rec := range proj.Images {
		proj.Images[i] = model.EnsureIDs(rec)
	}
	dir := filepath.Dir(path)
	for _, page := range proj.Pages {
		if !filepath.IsAbs(page) {
			page = filepath.Join(dir, page)
		}
		// 尺寸留空，渲染时按底图补齐。
		proj.Images = append(proj.Images, model.NewImageRecord(filepath.Base(page), 0, 0, model.Source{Blob: page}))
	}
	return &proj, nil
}

func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("写入文件 %s 失败: %w", target, err)
	}
	return nil
}

func writeDebug(frames []*layout.Frame, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(frames, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
