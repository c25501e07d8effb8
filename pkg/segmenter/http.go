package segmenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	segmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exam",
		Subsystem: "segmenter",
		Name:      "request_duration_seconds",
		Help:      "Duration of segmentation requests",
	})

	segmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "segmenter",
		Name:      "request_failures_total",
		Help:      "Number of failed segmentation requests",
	}, []string{"reason"})
)

// Config configures the HTTP segmentation client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// HTTPSegmenter calls the segmentation service over HTTP.
type HTTPSegmenter struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds an HTTP segmenter. The timeout bounds the whole call; a slow or
// unreachable service fails the call, never the caller's commit.
func New(cfg Config) (*HTTPSegmenter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("segmenter base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPSegmenter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/gradewise/exam-api/pkg/segmenter"),
		logger:  cfg.Logger.With().Str("component", "segmenter").Logger(),
	}, nil
}

// Process sends the evidence images to the segmentation service and decodes
// its structured response.
func (s *HTTPSegmenter) Process(parent context.Context, evidence []Evidence) (Result, error) {
	ctx, span := s.tracer.Start(parent, "segmenter.process", trace.WithAttributes(
		attribute.Int("segmenter.image_count", len(evidence)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		segmentDuration.Observe(time.Since(start).Seconds())
	}()

	body, contentType, err := encodeMultipart(evidence)
	if err != nil {
		segmentFailures.WithLabelValues("encode").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return Result{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/segment", body)
	if err != nil {
		return Result{}, err
	}
	request.Header.Set("Content-Type", contentType)

	response, err := s.client.Do(request)
	if err != nil {
		segmentFailures.WithLabelValues("transport").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Result{}, fmt.Errorf("segmentation request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		segmentFailures.WithLabelValues("status").Inc()
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		err := fmt.Errorf("segmentation service returned %d: %s", response.StatusCode, strings.TrimSpace(string(detail)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-success status")
		return Result{}, err
	}

	var result Result
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		segmentFailures.WithLabelValues("decode").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return Result{}, fmt.Errorf("failed to decode segmentation response: %w", err)
	}

	s.logger.Info().
		Int("images", len(evidence)).
		Int("cropped_questions", len(result.CroppedQuestions)).
		Msg("segmentation completed")

	return result, nil
}

func encodeMultipart(evidence []Evidence) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, item := range evidence {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, item.Name))
		contentType := item.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(item.Data); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
