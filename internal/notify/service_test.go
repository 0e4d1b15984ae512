package notify

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSkywa1ker/dance-bot/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

func newTestService(rdb *goredis.Client) *Service {
	tz, _ := time.LoadLocation("Europe/Moscow")
	return &Service{
		redis:    rdb,
		botToken: "test-token",
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: time.Second},
		tz:       tz,
	}
}

func TestNotifyQueuesEachIntent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("notifications", `.*`).SetVal(1)
	mock.Regexp().ExpectLPush("notifications", `.*`).SetVal(2)

	svc := newTestService(db)

	svc.Notify(ctx, []Intent{
		{TgID: 100, Message: "first"},
		{TgID: 200, Message: "second"},
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifySwallowsQueueErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("notifications", `.*`).SetErr(assert.AnError)

	svc := newTestService(db)

	// Must not panic or surface the error: the booking transaction
	// that produced the intent is already committed.
	svc.Notify(ctx, []Intent{{TgID: 100, Message: "hello"}})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotCancellationMessage(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	startsAt := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	msg := svc.SlotCancellationMessage("Хип-хоп", startsAt)
	// 15:00 UTC is 18:00 in Moscow.
	assert.Contains(t, msg, "Хип-хоп")
	assert.Contains(t, msg, "10.06.2025 18:00")
	assert.Contains(t, msg, "вернули")
}

func TestClassReminderMessage(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	msg := svc.ClassReminderMessage("Сальса", time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	assert.Contains(t, msg, "Напоминание")
	assert.Contains(t, msg, "Сальса")
	assert.Contains(t, msg, "10.06.2025 18:00")
}

func TestSlotCancellationMessageWithoutDirectionName(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	msg := svc.SlotCancellationMessage("", time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	assert.Contains(t, msg, "Занятие")
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectLLen("notifications").SetVal(7)

	svc := newTestService(db)

	assert.Equal(t, int64(7), svc.QueueLength(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendNowSkipsWithoutToken(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)
	svc.botToken = ""

	err := svc.sendNow(context.Background(), Intent{TgID: 100, Message: "hello"})
	require.NoError(t, err)
}

func TestNewFallsBackToUTCOnBadTimezone(t *testing.T) {
	svc := New("localhost:6379", "", "Not/AZone")
	defer svc.Close()

	assert.Equal(t, time.UTC, svc.tz)
}
