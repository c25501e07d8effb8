package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/repository"
)

// ErrEmptyNotification is returned when a notification body is blank after
// HTML sanitization.
var ErrEmptyNotification = errors.New("notification message empty after sanitization")

// NotificationService records grading notifications and fans them out to the
// configured brokers. Broker publishes are best-effort: a dead broker never
// fails the write that triggered the notification.
type NotificationService interface {
	GradeNotifier
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	ListByStudent(ctx context.Context, studentID uint, limit int) ([]dto.NotificationResponse, error)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	nodeID       string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// NewNotificationService constructs a notification service. Both broker
// connections may be nil.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grading"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grading"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		validator:    validate,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/gradewise/exam-api/internal/service/notification"),
		sanitizer:    bluemonday.StrictPolicy(),
		nodeID:       uuid.NewString(),
	}
}

// ResultStored implements GradeNotifier: a failed notification is logged and
// dropped so ingestion stays unaffected.
func (s *notificationService) ResultStored(ctx context.Context, result models.EvaluationResult, created bool) {
	verb := "updated"
	if created {
		verb = "published"
	}

	payload := dto.NotificationCreateRequest{
		StudentID: result.StudentID,
		Type:      models.NotificationTypeResultStored,
		Title:     "Evaluation result " + verb,
		Message: fmt.Sprintf("Your result for exam %d (%s) is available: %.2f out of %.2f.",
			result.ExamID, verb, result.TotalMarks, result.MaxTotalMarks),
	}

	if _, err := s.Publish(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", result.StudentID).Msg("grading notification dropped")
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, ErrEmptyNotification
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int64("notification.student_id", int64(payload.StudentID)),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.GradingNotification{
		StudentID: payload.StudentID,
		Type:      payload.Type,
		Title:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Message:   cleanMessage,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	if err := s.broadcast(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	return response, nil
}

func (s *notificationService) ListByStudent(ctx context.Context, studentID uint, limit int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) broadcast(ctx context.Context, notification dto.NotificationResponse) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}
