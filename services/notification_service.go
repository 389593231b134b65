package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

// NotificationSink delivers an event to one channel (database inbox, websocket, broker).
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, userID uint, ev Event) error
}

// NotificationEmitter fans events out to every sink. Delivery is best effort:
// a failing sink is logged and never reported back to the caller.
type NotificationEmitter struct {
	sinks   []NotificationSink
	timeout time.Duration
}

func NewNotificationEmitter(timeout time.Duration, sinks ...NotificationSink) *NotificationEmitter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NotificationEmitter{sinks: sinks, timeout: timeout}
}

// AddSink registers an extra delivery channel, e.g. the websocket hub.
func (e *NotificationEmitter) AddSink(s NotificationSink) {
	e.sinks = append(e.sinks, s)
}

func (e *NotificationEmitter) Emit(ctx context.Context, userID uint, ev Event) {
	if e == nil {
		return
	}
	// the order change is already committed; an abandoned request must not cut delivery short
	base := context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		sctx, cancel := context.WithTimeout(base, e.timeout)
		err := sink.Deliver(sctx, userID, ev)
		cancel()
		if err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"sink":     sink.Name(),
				"event":    ev.Type(),
				"user_id":  userID,
				"order_id": ev.OrderRef(),
			}).Warnf("notification delivery failed: %v", err)
		}
	}
}

// DBNotificationSink stores events in the notifications table that clients poll.
type DBNotificationSink struct {
	db *gorm.DB
}

func NewDBNotificationSink(db *gorm.DB) *DBNotificationSink {
	return &DBNotificationSink{db: db}
}

func (s *DBNotificationSink) Name() string { return "database" }

func (s *DBNotificationSink) Deliver(ctx context.Context, userID uint, ev Event) error {
	meta, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	orderID := ev.OrderRef()
	notif := models.Notification{
		UserID:   userID,
		Type:     string(ev.Type()),
		Title:    ev.Title(),
		Message:  ev.Message(),
		OrderID:  &orderID,
		Metadata: string(meta),
	}
	return s.db.WithContext(ctx).Create(&notif).Error
}

// NotificationService serves the polling inbox.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var notifs []models.Notification
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&notifs).Error; err != nil {
		return nil, err
	}
	return notifs, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notifID uint, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notifID, userID).
		Update("read_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notifID, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFoundf("notification %d", notifID)
		}
	}
	return nil
}
