package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movieclub/internal/domain"
	"github.com/Clark-Hu/movieclub/internal/repository"
	"github.com/Clark-Hu/movieclub/internal/testdb"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testdb.New(t)
	return NewService(repository.NewWithPool(db.Pool).Users, bcrypt.MinCost, nil)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		field   string
		wantErr bool
	}{
		{name: "valid general", err: validateGeneral("alice", "alice@example.com")},
		{name: "short username", err: validateGeneral("al", "alice@example.com"), field: "username", wantErr: true},
		{name: "username with at", err: validateGeneral("al@ce", "alice@example.com"), field: "username", wantErr: true},
		{name: "email without at", err: validateGeneral("alice", "alice.example.com"), field: "email", wantErr: true},
		{name: "email trailing at", err: validateGeneral("alice", "alice@"), field: "email", wantErr: true},
		{name: "short password", err: validatePassword("1234567"), field: "password", wantErr: true},
		{name: "long enough password", err: validatePassword("12345678")},
		{name: "long first name", err: validateNames(strings.Repeat("a", 51), ""), field: "name", wantErr: true},
		{name: "fifty char names", err: validateNames(strings.Repeat("a", 50), strings.Repeat("b", 50))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.wantErr {
				if tt.err != nil {
					t.Fatalf("unexpected error: %v", tt.err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(tt.err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want validation error on %q", tt.err, tt.field)
			}
		})
	}
}

func TestRegisterLoginAndEdit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "Alice@Example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}

	_, err = svc.Register(ctx, RegisterParams{Username: "alice", Email: "other@example.com", Password: "password1"})
	if !errors.Is(err, domain.ErrConstraintViolation) || !strings.Contains(err.Error(), "username") {
		t.Fatalf("duplicate username err = %v", err)
	}
	_, err = svc.Register(ctx, RegisterParams{Username: "alice2", Email: "alice@example.com", Password: "password1"})
	if !errors.Is(err, domain.ErrConstraintViolation) || !strings.Contains(err.Error(), "email") {
		t.Fatalf("duplicate email err = %v", err)
	}

	for _, login := range []string{"alice", "alice@example.com"} {
		got, err := svc.Login(ctx, login, "password1")
		if err != nil || got.ID != user.ID {
			t.Fatalf("login(%q) = %+v, %v", login, got, err)
		}
	}
	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("wrong password err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unknown user err = %v, want ErrUnauthorized", err)
	}

	edited, err := svc.EditProfile(ctx, user.ID, " Alice ", "Liddell")
	if err != nil {
		t.Fatalf("edit profile: %v", err)
	}
	if edited.FirstName != "Alice" || edited.LastName != "Liddell" {
		t.Fatalf("profile = %+v", edited)
	}

	if _, err := svc.UpdateGeneral(ctx, user.ID, "alice_l", "al@example.com", "wrong-password"); !domain.IsValidation(err) {
		t.Fatalf("update general with wrong password err = %v", err)
	}
	general, err := svc.UpdateGeneral(ctx, user.ID, "alice_l", "al@example.com", "password1")
	if err != nil {
		t.Fatalf("update general: %v", err)
	}
	if general.Username != "alice_l" || general.Email != "al@example.com" {
		t.Fatalf("general = %+v", general)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong-password", "new-password"); !domain.IsValidation(err) {
		t.Fatalf("change password with wrong old err = %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password1", "short"); !domain.IsValidation(err) {
		t.Fatalf("change to short password err = %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password1", "new-password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice_l", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}
}
