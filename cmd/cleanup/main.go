package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/model"
	"github.com/qs3c/reply_go_server/internal/repository"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete rows")
	retentionDays = flag.Int("retention-days", 0, "Days to keep finished replies (0 = use config)")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting reply retention cleanup...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	days := *retentionDays
	if days <= 0 {
		days = cfg.Dispatch.RetentionDays
	}
	if days <= 0 {
		days = 90
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	log.Printf("Retention: %d days, cutoff: %s", days, cutoff.Format("2006-01-02 15:04:05"))

	// 统计超过保留期的终态记录（pending 永不清理）
	var posted, failed int64
	db.Model(&model.QueuedReply{}).
		Where("status = ? AND updated_at < ?", model.ReplyStatusPosted, cutoff).
		Count(&posted)
	db.Model(&model.QueuedReply{}).
		Where("status = ? AND updated_at < ?", model.ReplyStatusFailed, cutoff).
		Count(&failed)

	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Posted replies past retention: %d", posted)
	log.Printf("Failed replies past retention: %d", failed)

	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - No rows were actually deleted")
		log.Println("   Run with -dry-run=false to actually delete rows")
		log.Println(strings.Repeat("=", 60))
		return
	}

	replyRepo := repository.NewReplyRepository(db)
	deleted, err := replyRepo.PurgeFinishedBefore(cutoff)
	if err != nil {
		log.Fatalf("Failed to purge finished replies: %v", err)
	}

	log.Printf("Deleted rows: %d", deleted)
	log.Println("\n✅ Cleanup completed!")
	log.Println(strings.Repeat("=", 60))
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
