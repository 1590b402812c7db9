package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/config"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/exporter"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/importer"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/logger"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/server"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/pipeline"
	facts "github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

var (
	port    = flag.Int("port", 0, "服务端口 (覆盖配置文件)")
	devMode = flag.Bool("dev", false, "开发模式")
	dataDir = flag.String("dataDir", "", "数据目录 (覆盖配置文件)")

	// 单批模式：导入事实工作簿，跑一次半月批次，输出报表后退出
	inputPath  = flag.String("input", "", "事实工作簿路径，设置后进入单批模式")
	outputPath = flag.String("out", "allocation.xlsx", "单批模式的报表输出路径")
	period     = flag.String("period", "", "半月期，如 2026-08A (单批模式必填)")
)

func main() {
	flag.Parse()

	fmt.Println("==========================================")
	fmt.Println("  Stockpilot - 门店铺货决策引擎")
	fmt.Println("==========================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if *dataDir != "" {
		cfg.Data.DataDir = *dataDir
	}

	appLog, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	if *inputPath != "" {
		if err := runOneShot(cfg, appLog); err != nil {
			log.Fatalf("单批执行失败: %v", err)
		}
		return
	}

	runServer(cfg, appLog)
}

// runOneShot 单批模式：导入 -> 批次 -> 报表
func runOneShot(cfg *config.AppConfig, appLog logger.Logger) error {
	if *period == "" {
		return fmt.Errorf("单批模式需要 -period, 如 2026-08A")
	}

	factStore := facts.NewMemoryStore()
	coordinator := importer.NewCoordinator(factStore, nil)

	importFailed := false
	for event := range coordinator.Import(importer.ImportOptions{FilePath: *inputPath}) {
		switch event.Type {
		case "error":
			importFailed = true
			fmt.Printf("[导入] 错误: %s\n", event.Message)
		case "warning", "sheet_done", "done":
			fmt.Printf("[导入] %s\n", event.Message)
		}
	}
	if importFailed {
		return fmt.Errorf("事实工作簿导入失败")
	}

	p := pipeline.NewPipeline(factStore, cfg.Pipeline, appLog)
	result, err := p.Run(context.Background(), *period)
	if err != nil {
		return fmt.Errorf("批次执行失败: %w", err)
	}
	fmt.Printf("批次 %s 完成: %d 条建议, %d 家门店跳过\n",
		result.BatchID, len(result.Detailed), len(result.Summary.SkippedStores))

	f, err := exporter.NewExporter().Export(result)
	if err != nil {
		return fmt.Errorf("生成报表失败: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(*outputPath); err != nil {
		return fmt.Errorf("保存报表失败: %w", err)
	}
	fmt.Printf("报表已写入: %s\n", *outputPath)
	return nil
}

// runServer 服务模式
func runServer(cfg *config.AppConfig, appLog logger.Logger) {
	srv, err := server.NewServer(cfg, appLog)
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		fmt.Printf("服务启动中，监听端口 %d ...\n", cfg.Server.Port)
		if err := srv.Run(addr); err != nil {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	fmt.Println("\n按 Ctrl+C 停止服务...")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n正在关闭服务...")
	if err := srv.Close(); err != nil {
		log.Printf("释放资源失败: %v", err)
	}
}
