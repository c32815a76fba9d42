package comet

import (
	"context"
	"fmt"
	"sync"

	"github.com/thalesfsp/hotune/internal/tracking"
)

type session struct {
	sink *Sink
	key  string

	mu    sync.Mutex
	ended bool
}

func (s *session) write(ctx context.Context, endpoint string, body map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return tracking.ErrSessionFinalized
	}

	body["experimentKey"] = s.key

	return s.sink.post(ctx, endpoint, body, nil)
}

func (s *session) LogParameter(ctx context.Context, name string, value any) error {
	return s.write(ctx, "write/experiment/parameter", map[string]any{
		"parameterName":  name,
		"parameterValue": fmt.Sprint(value),
	})
}

func (s *session) LogOther(ctx context.Context, name string, value any) error {
	return s.write(ctx, "write/experiment/log-other", map[string]any{
		"key":   name,
		"value": fmt.Sprint(value),
	})
}

func (s *session) LogMetric(ctx context.Context, name string, value float64) error {
	return s.write(ctx, "write/experiment/metric", map[string]any{
		"metricName":  name,
		"metricValue": value,
	})
}

func (s *session) AddTags(ctx context.Context, tags ...string) error {
	return s.write(ctx, "write/experiment/tags", map[string]any{
		"addedTags": tags,
	})
}

func (s *session) SetStartTime(ctx context.Context, epochSeconds float64) error {
	return s.write(ctx, "write/experiment/set-start-end-time", map[string]any{
		"startTimeMillis": millis(epochSeconds),
	})
}

func (s *session) SetEndTime(ctx context.Context, epochSeconds float64) error {
	return s.write(ctx, "write/experiment/set-start-end-time", map[string]any{
		"endTimeMillis": millis(epochSeconds),
	})
}

// End only finalizes locally; the REST API has no explicit close.
func (s *session) End(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return tracking.ErrSessionFinalized
	}

	s.ended = true

	return nil
}

func millis(epochSeconds float64) int64 {
	return tracking.FromEpochSeconds(epochSeconds).UnixMilli()
}
