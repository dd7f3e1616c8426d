package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"printer_monitor/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key"

// authRepoStub is a lightweight in-test stub for repository.Authorization.
type authRepoStub struct {
	createFn        func(username, hash string) (int, error)
	getByUsernameFn func(username string) (*models.User, error)

	createdHashes []string
	lookups       []string
}

func (m *authRepoStub) Create(_ context.Context, username, hash string) (int, error) {
	m.createdHashes = append(m.createdHashes, hash)
	return m.createFn(username, hash)
}

func (m *authRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.lookups = append(m.lookups, username)
	return m.getByUsernameFn(username)
}

func TestAuthService_SignUp(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		repoErr   error
		wantErr   error
		wantCalls int
	}{
		{name: "hashes and stores", username: "operator", password: "s3cr3t", wantCalls: 1},
		{name: "empty password", username: "operator", password: "   ", wantErr: ErrEmptyCredential},
		{name: "empty username", username: " ", password: "pw", wantErr: ErrEmptyCredential},
		{name: "repo error", username: "operator", password: "pw", repoErr: errors.New("db down"), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &authRepoStub{createFn: func(string, string) (int, error) {
				if tt.repoErr != nil {
					return 0, tt.repoErr
				}
				return 42, nil
			}}
			svc := NewAuthService(repo, testSigningKey, time.Hour)

			id, err := svc.SignUp(context.Background(), tt.username, tt.password)
			if len(repo.createdHashes) != tt.wantCalls {
				t.Fatalf("Create calls: want %d, got %d", tt.wantCalls, len(repo.createdHashes))
			}
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			case tt.repoErr != nil:
				if !errors.Is(err, tt.repoErr) {
					t.Fatalf("want repo error, got %v", err)
				}
			default:
				if err != nil || id != 42 {
					t.Fatalf("SignUp() = %d, %v", id, err)
				}
				if bcrypt.CompareHashAndPassword([]byte(repo.createdHashes[0]), []byte(tt.password)) != nil {
					t.Fatal("stored hash does not verify with original password")
				}
			}
		})
	}
}

func TestAuthService_GenerateAndParseToken(t *testing.T) {
	hash, err := hashPassword("letmein")
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	repo := &authRepoStub{getByUsernameFn: func(username string) (*models.User, error) {
		if username != "operator" {
			return nil, nil
		}
		return &models.User{ID: 7, Username: "operator", PasswordHash: hash}, nil
	}}
	svc := NewAuthService(repo, testSigningKey, time.Hour)

	token, err := svc.GenerateToken(context.Background(), "operator", "letmein")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	uid, err := svc.ParseToken(token)
	if err != nil || uid != 7 {
		t.Fatalf("ParseToken() = %d, %v", uid, err)
	}

	if _, err := svc.GenerateToken(context.Background(), "ghost", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GenerateToken(context.Background(), "operator", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
}

func TestAuthService_GenerateToken_RepoError(t *testing.T) {
	repo := &authRepoStub{getByUsernameFn: func(string) (*models.User, error) {
		return nil, errors.New("query failed")
	}}
	svc := NewAuthService(repo, testSigningKey, time.Hour)
	if _, err := svc.GenerateToken(context.Background(), "operator", "pw"); err == nil {
		t.Fatal("expected repo error, got nil")
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, exp time.Time) string {
	t.Helper()
	tk := jwt.NewWithClaims(method, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
		UserID: 5,
	})
	s, err := tk.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func TestAuthService_ParseToken_Rejects(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not-a-jwt"},
		{"other key", signClaims(t, jwt.SigningMethodHS256, []byte("different-key"), future)},
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte(testSigningKey), time.Now().Add(-time.Hour))},
		{"rsa algorithm", signClaims(t, jwt.SigningMethodRS256, rsaKey, future)},
	}

	svc := NewAuthService(&authRepoStub{}, testSigningKey, time.Hour)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ParseToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestAuthService_TokenTTL(t *testing.T) {
	svc := NewAuthService(&authRepoStub{}, testSigningKey, 0)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	tok, err := svc.issueToken(3)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if got := claims.ExpiresAt.Time.Sub(fixed); got != defaultTokenTTL {
		t.Fatalf("ttl: want %v, got %v", defaultTokenTTL, got)
	}
}
