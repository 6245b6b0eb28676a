// @title MCQ Tutor 后端 API
// @version 1.0
// @description 讲义笔记驱动的 MCQ 辅导平台后端：讲义上传、题目生成与答案解释（XAI）。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"
	"mcq_tutor_backend/internal/app"
	"mcq_tutor_backend/internal/config"
	"mcq_tutor_backend/pkg/configwatcher"
	"mcq_tutor_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	// 配置热加载：运行时修改 config.yaml 可切换解释缓存版本标签
	go configwatcher.WatchConfig("configs/config.yaml", application.ApplyConfig)

	application.Run()
}
