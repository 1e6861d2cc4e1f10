package cron

import (
	"log"
	"time"

	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/service"
)

// Service 定时任务：兜底派发、UTC 零点计数器滚动、终态记录清理
type Service struct {
	usageService  *service.UsageService
	replyRepo     *repository.ReplyRepository
	dispatch      func()
	intervalMin   int
	retentionDays int
	stopChan      chan struct{}
}

func NewService(
	usageService *service.UsageService,
	replyRepo *repository.ReplyRepository,
	dispatch func(),
	intervalMinutes int,
	retentionDays int,
) *Service {
	return &Service{
		usageService:  usageService,
		replyRepo:     replyRepo,
		dispatch:      dispatch,
		intervalMin:   intervalMinutes,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDispatchTicker()
	go s.runDailyRollover()
	go s.runRetentionSweep()
	log.Println("Cron service started (dispatch + rollover + retention)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDispatchTicker 周期兜底派发，错过唤醒消息的回复靠它出队
func (s *Service) runDispatchTicker() {
	minutes := s.intervalMin
	if minutes <= 0 {
		minutes = 5
	}
	ticker := time.NewTicker(time.Duration(minutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runDispatch()
		}
	}
}

func (s *Service) runDispatch() {
	if s.dispatch == nil {
		return
	}
	s.dispatch()
}

// runDailyRollover UTC 零点滚动过期计数器
func (s *Service) runDailyRollover() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.rollover()
			timer.Reset(24 * time.Hour)
		}
	}
}

// rollover 滚动计数器，随后立即派发一轮：日度额度刚恢复，排队的回复不用再等
func (s *Service) rollover() {
	log.Println("Starting usage counter rollover...")
	monthRows, dayRows, err := s.usageService.RollForwardAll()
	if err != nil {
		log.Printf("Failed to roll usage counters forward: %v", err)
		return
	}
	log.Printf("Usage counter rollover completed: month=%d, day=%d", monthRows, dayRows)

	s.runDispatch()
}

// runRetentionSweep 每小时清理一次超过保留期的终态记录
func (s *Service) runRetentionSweep() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	days := s.retentionDays
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	purged, err := s.replyRepo.PurgeFinishedBefore(cutoff)
	if err != nil {
		log.Printf("Failed to purge finished replies: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Purged %d finished replies older than %d days", purged, days)
	}
}

// RunNow 立即执行一次计数器滚动（手动触发用）
func (s *Service) RunNow() error {
	log.Println("Manual rollover triggered...")
	_, _, err := s.usageService.RollForwardAll()
	return err
}
