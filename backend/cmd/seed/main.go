package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"upms-teamup/backend/config"
	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	"upms-teamup/backend/pkg/database"
	applogger "upms-teamup/backend/pkg/logger"
)

// ── 演示数据 ──

var demoStudents = []model.StudentRecord{
	{StudentID: "CS001", Name: "Alice Tan", Email: "cs001@student.upms.local", Faculty: "Computing", Program: "Computer Science", Batch: "2022"},
	{StudentID: "CS002", Name: "Bao Nguyen", Email: "cs002@student.upms.local", Faculty: "Computing", Program: "Computer Science", Batch: "2022"},
	{StudentID: "CS003", Name: "Chen Wei", Email: "cs003@student.upms.local", Faculty: "Computing", Program: "Software Engineering", Batch: "2022"},
}

func demoArchives() []model.TitleArchive {
	year := func(y int) *int { return &y }
	return []model.TitleArchive{
		{Title: "Smart Attendance System Using Face Recognition", ProjectType: "Application", Year: year(2023), Department: "Computing"},
		{Title: "Campus Navigation Mobile App", ProjectType: "Application", Year: year(2023), Department: "Computing"},
		{Title: "Sentiment Analysis of Course Feedback", ProjectType: "Research", Year: year(2024), Department: "Computing"},
	}
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	reset := flag.Bool("reset", false, "回滚并重建全部表后再写入演示数据")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if *reset {
		err = database.ResetSchema(sqlDB, logger)
	} else {
		err = database.RunMigrations(sqlDB, logger)
	}
	if err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := repository.NewRepository(db)
	if err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := ensurePrincipal(ctx, tx, "admin", "admin123", model.RoleAdmin, nil); err != nil {
			return err
		}
		profile := &model.SupervisorProfile{Name: "Dr. Siti Rahman", Email: "sup1001@upms.local"}
		if err := ensurePrincipal(ctx, tx, "SUP1001", "sup123", model.RoleSupervisor, profile); err != nil {
			return err
		}
		if err := tx.Student.UpsertRecords(ctx, demoStudents); err != nil {
			return fmt.Errorf("写入学生名册失败: %w", err)
		}

		existing, err := tx.Title.SearchArchive(ctx, "", 1)
		if err != nil {
			return fmt.Errorf("查询题目库失败: %w", err)
		}
		if len(existing) == 0 {
			if err := tx.Title.CreateArchives(ctx, demoArchives()); err != nil {
				return fmt.Errorf("写入题目库失败: %w", err)
			}
		}
		return nil
	}); err != nil {
		logger.Fatal("写入演示数据失败", zap.Error(err))
	}

	logger.Info("演示数据写入完成",
		zap.String("admin", "admin/admin123"),
		zap.String("supervisor", "SUP1001/sup123"),
		zap.String("students", "CS001-CS003（需通过邮箱验证码激活）"),
	)
}

// ensurePrincipal 账号不存在时创建，已存在则保持不变
func ensurePrincipal(
	ctx context.Context,
	tx *repository.Repository,
	username, password string,
	role model.Role,
	profile *model.SupervisorProfile,
) error {
	_, err := tx.Principal.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询账号 %s 失败: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	p := &model.Principal{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := tx.Principal.Create(ctx, p); err != nil {
		return fmt.Errorf("创建账号 %s 失败: %w", username, err)
	}

	if profile != nil {
		profile.PrincipalID = p.PrincipalID
		if err := tx.Principal.CreateSupervisorProfile(ctx, profile); err != nil {
			return fmt.Errorf("创建导师资料失败: %w", err)
		}
	}
	return nil
}
