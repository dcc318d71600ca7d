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
	"github.com/arklim/auth-core/internal/infra/telemetry"
	"github.com/arklim/auth-core/internal/repository"
)

const (
	revokeReasonRotated       = "rotated"
	revokeReasonReuseDetected = "reuse_detected"
	revokeReasonLogout        = "logout"
	revokeReasonLogoutAll     = "logout_all"
	revokeReasonPasswordReset = "password_reset"
)

// LoginInput carries the credentials and client metadata for a password login.
type LoginInput struct {
	Identifier  string
	Password    string
	DeviceLabel *string
	IP          *string
	UserAgent   *string
}

// RefreshInput carries a presented refresh token and client metadata.
type RefreshInput struct {
	RefreshToken string
	IP           *string
	UserAgent    *string
}

// TokenPair is the result of a successful login or rotation. User is set on
// login only; rotation hands back tokens and the new session id.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  time.Duration
	RefreshExpiresAt time.Time
	SessionID        string
	UserID           string
	User             *domain.User
}

// AuthService implements password login with lockout, refresh rotation with
// replay detection, and session revocation.
type AuthService struct {
	users      port.UserRepository
	sessions   port.SessionRepository
	lockout    port.LockoutStore
	publisher  port.EventPublisher
	codec      *security.TokenCodec
	metrics    *telemetry.SecurityMetrics
	logger     *zap.Logger
	refreshTTL time.Duration
	threshold  int
	lockFor    time.Duration
	now        func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	sessions port.SessionRepository,
	lockout port.LockoutStore,
	publisher port.EventPublisher,
	codec *security.TokenCodec,
	metrics *telemetry.SecurityMetrics,
	log *zap.Logger,
	refreshTTL time.Duration,
	lockoutThreshold int,
	lockoutDuration time.Duration,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	if lockoutThreshold <= 0 {
		lockoutThreshold = 5
	}
	if lockoutDuration <= 0 {
		lockoutDuration = 15 * time.Minute
	}

	return &AuthService{
		users:      users,
		sessions:   sessions,
		lockout:    lockout,
		publisher:  publisher,
		codec:      codec,
		metrics:    metrics,
		logger:     log,
		refreshTTL: refreshTTL,
		threshold:  lockoutThreshold,
		lockFor:    lockoutDuration,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login authenticates an identifier/password pair. Checks run in a fixed
// order: resolve the user, check account status, check the lockout, then
// verify the password. Only a genuinely wrong password feeds the lockout
// counter; structural rejections (unknown user, suspended account) do not.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn comparable time so existence does not leak through latency.
			_, _ = security.VerifyPassword(in.Password, decoyPasswordHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	// The lockout gate runs before anything that could consume an attempt,
	// and a locked account refuses even the correct password.
	status, err := s.lockout.Status(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if status.Locked {
		return nil, &AccountLockedError{LockedUntil: status.LockedUntil, RetryAfter: status.Remaining}
	}

	if !user.CanUsePassword() {
		return nil, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, s.registerFailure(ctx, user, identifier, in.IP, in.UserAgent)
	}

	// Account-state gates come after password verification so their answers
	// are only ever revealed to someone holding the correct password.
	if user.Status != domain.UserStatusActive {
		return nil, ErrAccountSuspended
	}

	if user.Phone != nil && identifier == *user.Phone && !user.PhoneVerified {
		return nil, ErrPhoneNotVerified
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		s.logger.Warn("failed to clear lockout state", zap.Error(err), zap.String("user_id", user.ID))
	}

	pair, session, err := s.StartSession(ctx, user, in.DeviceLabel, in.IP, in.UserAgent)
	if err != nil {
		return nil, err
	}
	pair.User = user

	now := s.now()
	userID := user.ID
	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Identifier: identifier,
		Succeeded:  true,
		IP:         in.IP,
		UserAgent:  in.UserAgent,
		CreatedAt:  now,
	}
	if err := s.users.RecordLogin(ctx, attempt); err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err), zap.String("user_id", user.ID))
	}

	if s.publisher != nil {
		event := domain.LoginSucceededEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			SessionID: session.ID,
			FamilyID:  session.FamilyID,
			LoginAt:   now,
			IPAddress: in.IP,
			UserAgent: in.UserAgent,
		}
		if err := s.publisher.PublishLoginSucceeded(ctx, event); err != nil {
			s.logger.Warn("failed to publish login event", zap.Error(err))
		}
	}

	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return pair, nil
}

// StartSession mints a new session family for the user and returns the token
// pair. Used for password logins and any other flow that establishes a fresh
// device session.
func (s *AuthService) StartSession(ctx context.Context, user *domain.User, deviceLabel, ip, userAgent *string) (*TokenPair, *domain.Session, error) {
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		FamilyID:         uuid.NewString(),
		RefreshTokenHash: security.HashToken(secret),
		DeviceLabel:      deviceLabel,
		IP:               ip,
		UserAgent:        userAgent,
		CreatedAt:        now,
		LastSeen:         now,
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	access, err := s.codec.IssueAccessToken(user.ID, session.ID, user.IsGuest)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}

	pair := &TokenPair{
		AccessToken:      access,
		RefreshToken:     composeRefreshToken(session.ID, secret),
		AccessExpiresIn:  s.codec.AccessTTL(),
		RefreshExpiresAt: session.RefreshExpiresAt,
		SessionID:        session.ID,
		UserID:           user.ID,
	}

	return pair, &session, nil
}

// Refresh rotates a refresh token. Validation order is fixed and
// security-relevant: the revoked check runs before expiry and hash checks so
// a replayed token always lands on the reuse path, and the conditional revoke
// of the old session decides the winner under concurrency.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, error) {
	sessionID, secret, err := splitRefreshToken(in.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := s.now()

	if session.RevokedAt != nil {
		// A revoked session seeing its own token again is the replay
		// signature. Burn the family regardless of why it was revoked.
		return nil, s.handleReuse(ctx, session, in.IP)
	}

	if !session.RefreshExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	if !security.VerifyTokenHash(secret, session.RefreshTokenHash) {
		s.metrics.IncRefreshReject()
		s.logger.Warn("refresh secret mismatch for live session",
			zap.String("session_id", session.ID),
			zap.String("user_id", session.UserID),
		)
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Status != domain.UserStatusActive {
		// A non-active owner invalidates the session wholesale.
		return nil, ErrSessionRevoked
	}

	won, err := s.sessions.RevokeIfActive(ctx, session.ID, revokeReasonRotated)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	if !won {
		// A concurrent presentation already rotated this session; this
		// caller is by definition replaying.
		return nil, s.handleReuse(ctx, session, in.IP)
	}

	newSecret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	successor := domain.Session{
		ID:               uuid.NewString(),
		UserID:           session.UserID,
		FamilyID:         session.FamilyID,
		RefreshTokenHash: security.HashToken(newSecret),
		DeviceLabel:      session.DeviceLabel,
		IP:               in.IP,
		UserAgent:        in.UserAgent,
		CreatedAt:        now,
		LastSeen:         now,
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}
	if successor.IP == nil {
		successor.IP = session.IP
	}
	if successor.UserAgent == nil {
		successor.UserAgent = session.UserAgent
	}

	if err := s.sessions.Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("create successor session: %w", err)
	}

	access, err := s.codec.IssueAccessToken(user.ID, successor.ID, user.IsGuest)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.storeSessionEvent(ctx, session.ID, "rotated", in.IP, in.UserAgent, map[string]any{
		"successor_id": successor.ID,
	})

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     composeRefreshToken(successor.ID, newSecret),
		AccessExpiresIn:  s.codec.AccessTTL(),
		RefreshExpiresAt: successor.RefreshExpiresAt,
		SessionID:        successor.ID,
		UserID:           user.ID,
	}, nil
}

// Logout revokes the session behind the presented refresh token. Idempotent:
// revoking an already-revoked or unknown session is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sessionID, _, err := splitRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	won, err := s.sessions.RevokeIfActive(ctx, session.ID, revokeReasonLogout)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if !won {
		return nil
	}

	s.publishRevocation(ctx, session.UserID, session.ID, session.FamilyID, revokeReasonLogout)
	s.storeSessionEvent(ctx, session.ID, "logout", nil, nil, nil)
	return nil
}

// LogoutEverywhere revokes every live session the user owns.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) (int, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID, revokeReasonLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}

	if revoked > 0 {
		s.publishRevocation(ctx, userID, "", "", revokeReasonLogoutAll)
	}

	s.logger.Info("revoked all sessions",
		zap.String("user_id", userID),
		zap.Int("count", revoked),
	)

	return revoked, nil
}

func (s *AuthService) registerFailure(ctx context.Context, user *domain.User, identifier string, ip, userAgent *string) error {
	s.metrics.IncLoginFailure()

	now := s.now()
	userID := user.ID
	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Identifier: identifier,
		Succeeded:  false,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
	}
	if err := s.users.RecordLogin(ctx, attempt); err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err), zap.String("user_id", user.ID))
	}

	attempts, lockedUntil, err := s.lockout.RecordFailure(ctx, user.ID, s.threshold, s.lockFor)
	if err != nil {
		s.logger.Error("failed to record lockout failure", zap.Error(err), zap.String("user_id", user.ID))
		return ErrInvalidCredentials
	}

	if lockedUntil == nil {
		return &InvalidCredentialsError{AttemptsRemaining: s.threshold - attempts}
	}

	s.metrics.IncLockout()
	s.logger.Warn("account locked after repeated failures",
		zap.String("user_id", user.ID),
		zap.Int("attempts", attempts),
		zap.Time("locked_until", *lockedUntil),
	)

	if s.publisher != nil {
		event := domain.AccountLockedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			Attempts:    attempts,
			LockedAt:    now,
			LockedUntil: *lockedUntil,
			IPAddress:   ip,
		}
		if err := s.publisher.PublishAccountLocked(ctx, event); err != nil {
			s.logger.Warn("failed to publish lockout event", zap.Error(err))
		}
	}

	return &AccountLockedError{LockedUntil: *lockedUntil, RetryAfter: lockedUntil.Sub(now)}
}

func (s *AuthService) handleReuse(ctx context.Context, session *domain.Session, ip *string) error {
	burned, err := s.sessions.RevokeFamily(ctx, session.FamilyID, revokeReasonReuseDetected)
	if err != nil {
		return fmt.Errorf("burn session family: %w", err)
	}

	s.metrics.IncReuseDetection()
	s.logger.Warn("refresh token reuse detected",
		zap.String("session_id", session.ID),
		zap.String("family_id", session.FamilyID),
		zap.String("user_id", session.UserID),
		zap.Int("sessions_burned", burned),
	)

	if s.publisher != nil {
		event := domain.TokenReuseDetectedEvent{
			EventID:        uuid.NewString(),
			UserID:         session.UserID,
			SessionID:      session.ID,
			FamilyID:       session.FamilyID,
			DetectedAt:     s.now(),
			SessionsBurned: burned,
			IPAddress:      ip,
		}
		if err := s.publisher.PublishTokenReuseDetected(ctx, event); err != nil {
			s.logger.Warn("failed to publish reuse event", zap.Error(err))
		}
	}

	s.storeSessionEvent(ctx, session.ID, "reuse_detected", ip, nil, map[string]any{
		"sessions_burned": burned,
	})

	return ErrTokenReuse
}

func (s *AuthService) publishRevocation(ctx context.Context, userID, sessionID, familyID, reason string) {
	if s.publisher == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		FamilyID:  familyID,
		RevokedAt: s.now(),
		Reason:    reason,
	}
	if err := s.publisher.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("failed to publish revocation event", zap.Error(err))
	}
}

func (s *AuthService) storeSessionEvent(ctx context.Context, sessionID, kind string, ip, userAgent *string, details map[string]any) {
	event := domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		At:        s.now(),
		IP:        ip,
		UserAgent: userAgent,
		Details:   details,
	}
	if err := s.sessions.StoreEvent(ctx, event); err != nil {
		s.logger.Warn("failed to store session event", zap.Error(err), zap.String("session_id", sessionID))
	}
}

// decoyPasswordHash is a valid Argon2id encoding of a random throwaway value,
// verified against unknown identifiers to equalize response timing.
var decoyPasswordHash = func() string {
	hash, err := security.HashPassword(uuid.NewString())
	if err != nil {
		return ""
	}
	return hash
}()

const refreshTokenSeparator = "."

func composeRefreshToken(sessionID, secret string) string {
	return sessionID + refreshTokenSeparator + secret
}

func splitRefreshToken(token string) (sessionID, secret string, err error) {
	token = strings.TrimSpace(token)
	sessionID, secret, ok := strings.Cut(token, refreshTokenSeparator)
	if !ok || sessionID == "" || secret == "" {
		return "", "", fmt.Errorf("malformed refresh token")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", "", fmt.Errorf("malformed refresh token: %w", err)
	}
	return sessionID, secret, nil
}
