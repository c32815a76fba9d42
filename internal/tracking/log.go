package tracking

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogSink writes every session call as a structured log entry. It is the
// sink used when no tracking service is configured.
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink returns a LogSink on logger, or the standard logger if nil.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &LogSink{Logger: logger}
}

// OpenSession implements Sink.
func (l *LogSink) OpenSession(_ context.Context, config SessionConfig) (Session, error) {
	logger := l.Logger.WithFields(logrus.Fields{
		"sink":    "log",
		"session": uuid.NewString(),
		"project": config.ProjectName,
	})

	if config.Workspace != "" {
		logger = logger.WithField("workspace", config.Workspace)
	}

	logger.Info("session opened")

	return &logSession{logger: logger}, nil
}

type logSession struct {
	logger *logrus.Entry

	mu    sync.Mutex
	ended bool
}

func (s *logSession) emit(msg string, fields logrus.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionFinalized
	}

	s.logger.WithFields(fields).Info(msg)

	return nil
}

func (s *logSession) LogParameter(_ context.Context, name string, value any) error {
	return s.emit("parameter", logrus.Fields{"name": name, "value": value})
}

func (s *logSession) LogOther(_ context.Context, name string, value any) error {
	return s.emit("other", logrus.Fields{"name": name, "value": value})
}

func (s *logSession) LogMetric(_ context.Context, name string, value float64) error {
	return s.emit("metric", logrus.Fields{"name": name, "value": value})
}

func (s *logSession) AddTags(_ context.Context, tags ...string) error {
	return s.emit("tags", logrus.Fields{"tags": tags})
}

func (s *logSession) SetStartTime(_ context.Context, epochSeconds float64) error {
	return s.emit("start time", logrus.Fields{"epoch": epochSeconds})
}

func (s *logSession) SetEndTime(_ context.Context, epochSeconds float64) error {
	return s.emit("end time", logrus.Fields{"epoch": epochSeconds})
}

func (s *logSession) End(_ context.Context) error {
	if err := s.emit("session ended", nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()

	return nil
}
