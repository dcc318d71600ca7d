package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/infra/logger"
	"github.com/arklim/auth-core/internal/infra/security"
	"github.com/arklim/auth-core/internal/repository"
)

const resetCodeLength = 6

// PasswordResetService implements the two-phase reset flow: request a numeric
// code, exchange it for a single-use opaque token, consume the token to set a
// new password. Every failure on the request path is reported identically so
// account existence cannot be probed.
type PasswordResetService struct {
	users     port.UserRepository
	sessions  port.SessionRepository
	resets    port.ResetRepository
	throttle  port.ThrottleStore
	sender    port.CodeSender
	publisher port.EventPublisher
	validator *security.PasswordValidator
	logger    *zap.Logger

	codeTTL       time.Duration
	tokenTTL      time.Duration
	requestLimit  int
	requestWindow time.Duration

	now func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	users port.UserRepository,
	sessions port.SessionRepository,
	resets port.ResetRepository,
	throttle port.ThrottleStore,
	sender port.CodeSender,
	publisher port.EventPublisher,
	validator *security.PasswordValidator,
	log *zap.Logger,
	codeTTL, tokenTTL time.Duration,
	requestLimit int,
	requestWindow time.Duration,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if codeTTL <= 0 {
		codeTTL = 15 * time.Minute
	}
	if tokenTTL <= 0 {
		tokenTTL = 10 * time.Minute
	}
	if requestLimit <= 0 {
		requestLimit = 3
	}
	if requestWindow <= 0 {
		requestWindow = time.Hour
	}

	return &PasswordResetService{
		users:         users,
		sessions:      sessions,
		resets:        resets,
		throttle:      throttle,
		sender:        sender,
		publisher:     publisher,
		validator:     validator,
		logger:        log,
		codeTTL:       codeTTL,
		tokenTTL:      tokenTTL,
		requestLimit:  requestLimit,
		requestWindow: requestWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestCode starts a reset. The caller always gets the same outcome whether
// or not the email belongs to an account; the throttle is the only visible
// rejection and it applies uniformly per email.
func (s *PasswordResetService) RequestCode(ctx context.Context, email string, ip *string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	if s.throttle != nil {
		allow, retryAfter, err := s.throttle.Allow(ctx, "reset:"+email, s.requestLimit, s.requestWindow)
		if err != nil {
			return fmt.Errorf("check reset throttle: %w", err)
		}
		if !allow {
			s.logger.Info("reset request throttled",
				zap.String("email", logger.MaskEmail(email)),
				zap.Duration("retry_after", retryAfter),
			)
			return ErrTooManyRequests
		}
	}

	user, err := s.users.GetByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("reset requested for unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("resolve user: %w", err)
	}

	if !user.CanUsePassword() || user.Status != domain.UserStatusActive {
		s.logger.Info("reset requested for ineligible account",
			zap.String("user_id", user.ID),
			zap.String("status", string(user.Status)),
		)
		return nil
	}

	if _, err := s.resets.InvalidatePending(ctx, email); err != nil {
		return fmt.Errorf("invalidate pending resets: %w", err)
	}

	code, err := security.GenerateNumericCode(resetCodeLength)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	now := s.now()
	record := domain.PasswordResetRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     email,
		CodeHash:  security.HashToken(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}

	if err := s.resets.Create(ctx, record); err != nil {
		return fmt.Errorf("store reset record: %w", err)
	}

	// Delivery happens off the request path; a slow or failing channel must
	// not change the caller-visible outcome.
	go s.deliverCode(email, code, record.ExpiresAt)

	if s.publisher != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			UserID:            user.ID,
			RequestID:         record.ID,
			RequestedAt:       now,
			MaskedDestination: logger.MaskEmail(email),
			ExpiresAt:         record.ExpiresAt,
			IPAddress:         ip,
		}
		if err := s.publisher.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("failed to publish reset-requested event", zap.Error(err))
		}
	}

	return nil
}

// VerifyCode exchanges a valid numeric code for the opaque reset token. Any
// mismatch, absence, or expiry yields the same error; a record already
// consumed by a completed reset is called out as such. An expired record is
// deleted on sight so it cannot be retried.
func (s *PasswordResetService) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", ErrResetInvalid
	}

	record, err := s.resets.GetLatestByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrResetInvalid
		}
		return "", fmt.Errorf("load reset record: %w", err)
	}

	if record.UsedAt != nil {
		return "", ErrResetAlreadyUsed
	}

	now := s.now()
	if record.CodeExpired(now) {
		if err := s.resets.Delete(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("failed to delete expired reset record", zap.Error(err), zap.String("record_id", record.ID))
		}
		return "", ErrResetInvalid
	}

	if !security.VerifyTokenHash(code, record.CodeHash) {
		return "", ErrResetInvalid
	}

	token, err := security.GenerateRefreshSecret()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	tokenExpiresAt := now.Add(s.tokenTTL)
	if err := s.resets.MarkVerified(ctx, record.ID, security.HashToken(token), tokenExpiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrResetInvalid
		}
		return "", fmt.Errorf("mark reset verified: %w", err)
	}

	s.logger.Info("reset code verified",
		zap.String("user_id", record.UserID),
		zap.String("email", logger.MaskEmail(email)),
	)

	return token, nil
}

// ResetPassword consumes a reset token and installs the new password. The
// token is single-use: the usedAt stamp wins over everything else, including
// a concurrent redemption, and a consumed token yields ALREADY_USED forever
// after. All live sessions are revoked on success.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetInvalid
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return &WeakPasswordError{Reasons: []string{err.Error()}}
	}

	record, err := s.resets.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetInvalid
		}
		return fmt.Errorf("load reset record: %w", err)
	}

	now := s.now()
	if record.UsedAt != nil {
		return ErrResetAlreadyUsed
	}
	if !record.Consumable(now) {
		return ErrResetInvalid
	}

	// Stamp consumption before touching the password so a concurrent
	// redemption of the same token loses here, not after the change.
	if err := s.resets.MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetAlreadyUsed
		}
		return fmt.Errorf("mark reset used: %w", err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, record.UserID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.sessions.RevokeAllForUser(ctx, record.UserID, revokeReasonPasswordReset)
	if err != nil {
		s.logger.Error("failed to revoke sessions after password reset",
			zap.Error(err),
			zap.String("user_id", record.UserID),
		)
		revoked = 0
	}

	if s.publisher != nil {
		event := domain.PasswordChangedEvent{
			EventID:         uuid.NewString(),
			UserID:          record.UserID,
			ChangedAt:       now,
			SessionsRevoked: revoked,
		}
		if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("failed to publish password-changed event", zap.Error(err))
		}
	}

	s.logger.Info("password reset completed",
		zap.String("user_id", record.UserID),
		zap.Int("sessions_revoked", revoked),
	)

	return nil
}

func (s *PasswordResetService) deliverCode(email, code string, expiresAt time.Time) {
	if s.sender == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.sender.SendResetCode(ctx, email, code, expiresAt); err != nil {
		s.logger.Error("failed to deliver reset code",
			zap.Error(err),
			zap.String("email", logger.MaskEmail(email)),
		)
	}
}
