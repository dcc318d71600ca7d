package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/infra/logger"
)

// LogSender is the development delivery channel: it logs the masked
// destination instead of sending anything. Production deployments plug an
// email/SMS gateway behind the same port.
type LogSender struct {
	logger *zap.Logger
	dev    bool
}

// NewLogSender constructs a LogSender. When dev is true the raw code is
// included in the log line to ease local testing.
func NewLogSender(log *zap.Logger, dev bool) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{logger: log, dev: dev}
}

// SendResetCode logs the delivery instead of performing it.
func (s *LogSender) SendResetCode(_ context.Context, email, code string, expiresAt time.Time) error {
	fields := []zap.Field{
		zap.String("email", logger.MaskEmail(email)),
		zap.Time("expires_at", expiresAt),
	}
	if s.dev {
		fields = append(fields, zap.String("code", code))
	}
	s.logger.Info("password reset code issued", fields...)
	return nil
}

var _ port.CodeSender = (*LogSender)(nil)
