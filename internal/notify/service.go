package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
)

// Intent is a message the engine wants delivered to a Telegram user.
// Delivery is best-effort and never blocks the transaction that
// produced the intent.
type Intent struct {
	TgID    int64  `json:"tg_id"`
	Message string `json:"message"`
}

type job struct {
	Intent
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Service struct {
	redis    *redis.Client
	botToken string
	apiBase  string
	client   *http.Client
	tz       *time.Location
}

func New(redisAddr, botToken, timezone string) *Service {
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("Unknown timezone, falling back to UTC", "timezone", timezone)
		tz = time.UTC
	}

	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		botToken: botToken,
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
		tz:       tz,
	}
}

// Notify queues intents for asynchronous delivery. Queue failures are
// logged and swallowed; the caller's work is already committed.
func (s *Service) Notify(ctx context.Context, intents []Intent) {
	for _, intent := range intents {
		j := job{Intent: intent, Created: time.Now()}
		data, err := json.Marshal(j)
		if err != nil {
			logger.Errorf("Failed to marshal notification for %d: %v", intent.TgID, err)
			continue
		}

		if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
			logger.Errorf("Failed to queue notification for %d: %v", intent.TgID, err)
			continue
		}
		metrics.RecordNotificationQueued()
	}
}

// SlotCancellationMessage tells a user their class was canceled and a
// credit returned, with the start time rendered in the studio timezone.
func (s *Service) SlotCancellationMessage(directionName string, startsAt time.Time) string {
	label := directionName
	if label == "" {
		label = "Занятие"
	}
	local := startsAt.In(s.tz)
	return fmt.Sprintf("Занятие «%s» %s отменено. Мы вернули вам одно занятие.",
		label, local.Format("02.01.2006 15:04"))
}

// ClassReminderMessage reminds a user about a class starting in about a
// day.
func (s *Service) ClassReminderMessage(directionName string, startsAt time.Time) string {
	label := directionName
	if label == "" {
		label = "Занятие"
	}
	local := startsAt.In(s.tz)
	return fmt.Sprintf("Напоминание: занятие «%s» %s. Ждём вас!",
		label, local.Format("02.01.2006 15:04"))
}

// Start runs the delivery worker until the context is canceled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	gaugeTick := time.NewTicker(30 * time.Second)
	defer gaugeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		case <-gaugeTick.C:
			s.QueueLength(ctx)
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var j job
	if err := json.Unmarshal([]byte(result[1]), &j); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	j.Tries++
	if err := s.sendNow(ctx, j.Intent); err != nil {
		logger.Errorf("Failed to send notification to %d: %v", j.TgID, err)

		if j.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(j)
			s.redis.LPush(context.Background(), queueKey, data)
		} else {
			logger.Errorf("Notification to %d failed after %d attempts", j.TgID, maxTries)
			s.saveFailed(j, err)
		}
		return
	}

	logger.Debug("Notification delivered", "tg_id", j.TgID)
}

func (s *Service) sendNow(ctx context.Context, intent Intent) error {
	if s.botToken == "" {
		logger.Warn("Telegram bot token is not configured; dropping notification", "tg_id", intent.TgID)
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  intent.TgID,
		"text":                     intent.Message,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *Service) saveFailed(j job, sendErr error) {
	failed := map[string]interface{}{
		"job":   j,
		"error": sendErr.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
