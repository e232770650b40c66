package notify

import "go.uber.org/zap"

// LogSink publishes notification batches as structured log lines. It is
// the sink the terminal host uses, where the log stream is the
// operator's feed.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(batch []Notification) {
	for _, n := range batch {
		fields := make([]zap.Field, 0, 1)
		if n.PoolID != 0 {
			fields = append(fields, zap.Int64("pool_id", n.PoolID))
		}
		switch n.Level {
		case LevelError:
			s.logger.Error(n.Message, fields...)
		case LevelWarning:
			s.logger.Warn(n.Message, fields...)
		default:
			s.logger.Info(n.Message, fields...)
		}
	}
}
