package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/infra/security"
	"github.com/arklim/auth-core/internal/repository/memory"
)

type resetFixture struct {
	svc      *PasswordResetService
	users    *stubUserRepo
	sessions *stubSessionRepo
	store    *memory.ResetStore
	sender   *stubSender
	pub      *recordingPublisher
}

func newResetFixture(t *testing.T, users ...*domain.User) *resetFixture {
	t.Helper()

	f := &resetFixture{
		users:    newStubUserRepo(users...),
		sessions: newStubSessionRepo(),
		store:    memory.NewResetStore(100),
		sender:   newStubSender(),
		pub:      &recordingPublisher{},
	}

	f.svc = NewPasswordResetService(
		f.users,
		f.sessions,
		f.store,
		newStubThrottle(),
		f.sender,
		f.pub,
		security.DefaultPasswordValidator(),
		nopLogger(),
		15*time.Minute,
		10*time.Minute,
		3,
		time.Hour,
	)

	return f
}

// requestAndVerify drives the first two phases and returns the reset token.
func (f *resetFixture) requestAndVerify(t *testing.T, email string) string {
	t.Helper()

	ctx := context.Background()
	if err := f.svc.RequestCode(ctx, email, nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	code := f.sender.waitForCode(t)

	token, err := f.svc.VerifyCode(ctx, email, code)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	return token
}

func TestRequestCodeUnknownEmailIsSilent(t *testing.T) {
	f := newResetFixture(t)

	if err := f.svc.RequestCode(context.Background(), "nobody@example.com", nil); err != nil {
		t.Fatalf("RequestCode for unknown email = %v, want nil", err)
	}

	select {
	case <-f.sender.sent:
		t.Fatal("a code was delivered for an unknown email")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequestCodeThrottled(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
			t.Fatalf("RequestCode %d: %v", i+1, err)
		}
	}

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("fourth request = %v, want ErrTooManyRequests", err)
	}
}

func TestRequestCodeSupersedesPrevious(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	firstCode := f.sender.waitForCode(t)

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	secondCode := f.sender.waitForCode(t)

	// The earlier code is dead once a new one is issued.
	if firstCode != secondCode {
		if _, err := f.svc.VerifyCode(ctx, "jane@example.com", firstCode); !errors.Is(err, ErrResetInvalid) {
			t.Fatalf("old code verify = %v, want ErrResetInvalid", err)
		}
	}

	if _, err := f.svc.VerifyCode(ctx, "jane@example.com", secondCode); err != nil {
		t.Fatalf("new code verify: %v", err)
	}
}

func TestVerifyCodeWrongCode(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := f.sender.waitForCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	if _, err := f.svc.VerifyCode(ctx, "jane@example.com", wrong); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("wrong code = %v, want ErrResetInvalid", err)
	}
}

func TestVerifyCodeExpiredDeletesRecord(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	start := time.Now().UTC()
	f.svc.WithClock(func() time.Time { return start })

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := f.sender.waitForCode(t)

	f.svc.WithClock(func() time.Time { return start.Add(16 * time.Minute) })

	if _, err := f.svc.VerifyCode(ctx, "jane@example.com", code); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expired code = %v, want ErrResetInvalid", err)
	}

	// The record is gone; even the right code at the right time cannot revive it.
	f.svc.WithClock(func() time.Time { return start })
	if _, err := f.svc.VerifyCode(ctx, "jane@example.com", code); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("verify after delete = %v, want ErrResetInvalid", err)
	}
}

func TestResetPasswordHappyPath(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	// Two live sessions that must die with the reset.
	now := time.Now().UTC()
	for _, id := range []string{"s1", "s2"} {
		_ = f.sessions.Create(ctx, domain.Session{
			ID:               id,
			UserID:           "user-1",
			FamilyID:         "fam-" + id,
			RefreshTokenHash: "hash",
			CreatedAt:        now,
			LastSeen:         now,
			RefreshExpiresAt: now.Add(time.Hour),
		})
	}

	token := f.requestAndVerify(t, "jane@example.com")

	if err := f.svc.ResetPassword(ctx, token, "brand-new-pass9"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if !f.users.passwordUpdated("user-1") {
		t.Fatal("password was not updated")
	}
	if f.sessions.activeCount("user-1") != 0 {
		t.Fatal("sessions survived the password reset")
	}
	if !f.pub.has("password_changed") {
		t.Fatal("password-changed event not published")
	}

	// The new password verifies against the stored hash.
	updated, err := f.users.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	ok, err := security.VerifyPassword("brand-new-pass9", updated.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password does not verify (ok=%v err=%v)", ok, err)
	}
}

func TestResetPasswordTokenIsSingleUse(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	token := f.requestAndVerify(t, "jane@example.com")

	if err := f.svc.ResetPassword(ctx, token, "brand-new-pass9"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, token, "another-pass777"); !errors.Is(err, ErrResetAlreadyUsed) {
		t.Fatalf("second use = %v, want ErrResetAlreadyUsed", err)
	}
}

func TestVerifyCodeAfterResetReportsAlreadyUsed(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, "jane@example.com", nil); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := f.sender.waitForCode(t)

	token, err := f.svc.VerifyCode(ctx, "jane@example.com", code)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token, "brand-new-pass9"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// Replaying the code against the consumed record names the real state
	// instead of pretending the code never existed.
	if _, err := f.svc.VerifyCode(ctx, "jane@example.com", code); !errors.Is(err, ErrResetAlreadyUsed) {
		t.Fatalf("verify after reset = %v, want ErrResetAlreadyUsed", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	start := time.Now().UTC()
	f.svc.WithClock(func() time.Time { return start })

	token := f.requestAndVerify(t, "jane@example.com")

	f.svc.WithClock(func() time.Time { return start.Add(11 * time.Minute) })

	if err := f.svc.ResetPassword(ctx, token, "brand-new-pass9"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expired token = %v, want ErrResetInvalid", err)
	}
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newResetFixture(t)

	if err := f.svc.ResetPassword(context.Background(), "totally-made-up", "brand-new-pass9"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("unknown token = %v, want ErrResetInvalid", err)
	}
}

func TestResetPasswordWeakPassword(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)
	ctx := context.Background()

	token := f.requestAndVerify(t, "jane@example.com")

	var weak *WeakPasswordError
	if err := f.svc.ResetPassword(ctx, token, "short"); !errors.As(err, &weak) {
		t.Fatalf("weak password = %v, want WeakPasswordError", err)
	}

	// A rejected password does not consume the token.
	if err := f.svc.ResetPassword(ctx, token, "brand-new-pass9"); err != nil {
		t.Fatalf("ResetPassword after weak attempt: %v", err)
	}
}

func TestVerifyCodeBeforeRequestFails(t *testing.T) {
	user := activeUser(t, "user-1", "jane@example.com", "hunter2hunter2")
	f := newResetFixture(t, user)

	if _, err := f.svc.VerifyCode(context.Background(), "jane@example.com", "123456"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("verify without request = %v, want ErrResetInvalid", err)
	}
}
