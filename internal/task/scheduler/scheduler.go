package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "dailyrush-backend/internal/auth/repository"
	"dailyrush-backend/internal/task/usecase"
	"dailyrush-backend/pkg/cache"
	"dailyrush-backend/pkg/fcm"
)

// ReminderScheduler pushes FCM notifications for uncompleted tasks
// whose due date falls inside the lookahead window. Guest sessions are
// skipped since there is no account to deliver to. Each task is
// notified at most once per process lifetime.
type ReminderScheduler struct {
	manager   *usecase.Manager
	fcmRepo   authrepo.FCMTokenRepository
	fcmClient *fcm.Client
	interval  time.Duration
	window    time.Duration
	stopChan  chan struct{}

	mu       sync.Mutex
	notified map[int64]bool
}

func NewReminderScheduler(manager *usecase.Manager, fcmRepo authrepo.FCMTokenRepository, fcmClient *fcm.Client, interval, window time.Duration) *ReminderScheduler {
	return &ReminderScheduler{
		manager:   manager,
		fcmRepo:   fcmRepo,
		fcmClient: fcmClient,
		interval:  interval,
		window:    window,
		stopChan:  make(chan struct{}),
		notified:  make(map[int64]bool),
	}
}

// Start begins the scheduler loop
func (s *ReminderScheduler) Start() {
	if s.fcmClient == nil {
		log.Println("[Scheduler] FCM client not available, reminders disabled")
		return
	}

	log.Printf("[Scheduler] Starting due-task reminder scheduler (interval: %s, window: %s)", s.interval, s.window)

	go func() {
		s.checkAndSendReminders()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAndSendReminders()
			case <-s.stopChan:
				log.Println("[Scheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *ReminderScheduler) Stop() {
	close(s.stopChan)
}

func (s *ReminderScheduler) checkAndSendReminders() {
	now := time.Now()
	deadline := now.Add(s.window)

	for namespace, session := range s.manager.Active() {
		if namespace == cache.GuestNamespace {
			continue
		}

		tokens, err := s.fcmRepo.GetTokensByUserID(namespace)
		if err != nil {
			log.Printf("[Scheduler] Error getting FCM tokens for %s: %v", namespace, err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		var tokenStrings []string
		for _, t := range tokens {
			tokenStrings = append(tokenStrings, t.Token)
		}

		for _, task := range session.Tasks() {
			if task.Completed || task.DueDate == nil {
				continue
			}
			if task.DueDate.Before(now) || task.DueDate.After(deadline) {
				continue
			}
			if s.alreadyNotified(task.ID) {
				continue
			}

			notification := fcm.Notification{
				Title: "⏰ Task due soon: " + task.Text,
				Body:  fmt.Sprintf("Due at %s — worth %d points", task.DueDate.Format("15:04"), task.Difficulty.PointValue()),
				Data: map[string]string{
					"type":    "task_due",
					"task_id": fmt.Sprintf("%d", task.ID),
				},
			}

			failedTokens, err := s.fcmClient.SendToDevices(context.Background(), tokenStrings, notification)
			if err != nil {
				log.Printf("[Scheduler] Error sending reminder for task %d: %v", task.ID, err)
				continue
			}

			for _, token := range failedTokens {
				s.fcmRepo.DeleteToken(token)
			}

			s.markNotified(task.ID)
			log.Printf("[Scheduler] Sent reminder for task %d to %d devices", task.ID, len(tokenStrings)-len(failedTokens))
		}
	}
}

func (s *ReminderScheduler) alreadyNotified(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notified[taskID]
}

func (s *ReminderScheduler) markNotified(taskID int64) {
	s.mu.Lock()
	s.notified[taskID] = true
	s.mu.Unlock()
}
