package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/songclash/songclash/repositories"
	"github.com/songclash/songclash/repositories/memory"
	"github.com/songclash/songclash/services"
)

func TestAuthSignUpAndSignIn(t *testing.T) {
	store := memory.NewStore()
	auth := services.NewAuthService(store.Users(), "test-secret")
	ctx := context.Background()

	user, token, err := auth.SignUp(ctx, "Host@Example.com", "dj-host", "correct horse battery")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if token == "" {
		t.Error("sign up returned empty token")
	}
	if user.Email != "host@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "correct horse battery" {
		t.Error("password stored in plain text")
	}

	signedIn, token, err := auth.SignIn(ctx, "host@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if token == "" {
		t.Error("sign in returned empty token")
	}
	if signedIn.ID != user.ID {
		t.Errorf("signed in as %s, want %s", signedIn.ID, user.ID)
	}
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	store := memory.NewStore()
	auth := services.NewAuthService(store.Users(), "test-secret")
	ctx := context.Background()

	if _, _, err := auth.SignUp(ctx, "host@example.com", "dj-host", "correct horse battery"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := auth.SignIn(ctx, "host@example.com", "wrong password"); !errors.Is(err, services.ErrAuthInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrAuthInvalidCredentials", err)
	}
	if _, _, err := auth.SignIn(ctx, "nobody@example.com", "whatever"); !errors.Is(err, services.ErrAuthInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrAuthInvalidCredentials", err)
	}
}

func TestAuthSignUpValidation(t *testing.T) {
	store := memory.NewStore()
	auth := services.NewAuthService(store.Users(), "test-secret")
	ctx := context.Background()

	if _, _, err := auth.SignUp(ctx, "host@example.com", "dj-host", "short"); !errors.Is(err, services.ErrPasswordTooShort) {
		t.Errorf("short password: got %v, want ErrPasswordTooShort", err)
	}
	if _, _, err := auth.SignUp(ctx, "not-an-email", "dj-host", "correct horse battery"); !errors.Is(err, services.ErrValidationFailed) {
		t.Errorf("bad email: got %v, want ErrValidationFailed", err)
	}

	if _, _, err := auth.SignUp(ctx, "host@example.com", "dj-host", "correct horse battery"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := auth.SignUp(ctx, "host@example.com", "other", "correct horse battery"); !errors.Is(err, repositories.ErrUserEmailConflict) {
		t.Errorf("duplicate email: got %v, want ErrUserEmailConflict", err)
	}
}
