package auth

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"virasocial/middleware"
	"virasocial/models"
	"virasocial/store"
)

// Classified credential errors, mirroring the identity provider's
// error codes the app distinguishes in its flows.
var (
	ErrWrongCredential = errors.New("auth: wrong credential")
	ErrWeakCredential  = errors.New("auth: password too weak")
	ErrTooManyAttempts = errors.New("auth: too many attempts")
	ErrRequiresReauth  = errors.New("auth: recent sign-in required")
	ErrEmailTaken      = errors.New("auth: email already in use")
)

const minPasswordLen = 6

// Service is the identity provider: email/password accounts stored on
// the user document, JWT session tokens, and the sensitive operations
// (password change, account deletion) gated behind a fresh password
// proof.
type Service struct {
	store     store.Store
	jwtSecret []byte
	attempts  *attemptWindow
}

func NewService(st store.Store, jwtSecret []byte) *Service {
	return &Service{
		store:     st,
		jwtSecret: jwtSecret,
		attempts:  newAttemptWindow(5, 15*time.Minute),
	}
}

// SignUp creates the auth account and its user document in one step:
// seeker role, empty bio and cvLink, empty follow and saved sets. A
// session token is issued immediately.
func (s *Service) SignUp(ctx context.Context, username, email, password string) (models.User, string, error) {
	if len(password) < minPasswordLen {
		return models.User{}, "", ErrWeakCredential
	}

	existing, err := s.store.Query(ctx, "users", store.Query{
		Predicates: []store.Predicate{store.Eq("email", email)},
	})
	if err != nil {
		return models.User{}, "", err
	}
	if len(existing) > 0 {
		return models.User{}, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", err
	}

	u := models.User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleSeeker,
		Bio:          "",
		CVLink:       "",
		Following:    []string{},
		SavedPosts:   []string{},
		CreatedAt:    s.store.ServerTimestamp(),
	}
	fields, err := store.Encode(u)
	if err != nil {
		return models.User{}, "", err
	}
	if err := s.store.Put(ctx, "users", u.ID, fields); err != nil {
		return models.User{}, "", err
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return models.User{}, "", err
	}
	u.PasswordHash = ""
	return u, token, nil
}

// SignIn verifies email/password and issues a session token. Repeated
// failures for the same email inside the attempt window come back as
// ErrTooManyAttempts before the password is even checked.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, string, error) {
	if !s.attempts.Allow(email) {
		return models.User{}, "", ErrTooManyAttempts
	}

	docs, err := s.store.Query(ctx, "users", store.Query{
		Predicates: []store.Predicate{store.Eq("email", email)},
	})
	if err != nil {
		return models.User{}, "", err
	}
	if len(docs) == 0 {
		s.attempts.Fail(email)
		return models.User{}, "", ErrWrongCredential
	}

	var u models.User
	if err := store.Decode(docs[0], &u); err != nil {
		return models.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.attempts.Fail(email)
		return models.User{}, "", ErrWrongCredential
	}

	s.attempts.Reset(email)
	token, err := s.IssueToken(u.ID)
	if err != nil {
		return models.User{}, "", err
	}
	u.PasswordHash = ""
	return u, token, nil
}

// Reauthenticate proves the caller still knows the account password.
// Sensitive operations call this before proceeding.
func (s *Service) Reauthenticate(ctx context.Context, userID, password string) error {
	if !s.attempts.Allow(userID) {
		return ErrTooManyAttempts
	}

	doc, err := s.store.Get(ctx, "users", userID)
	if err != nil {
		return err
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.attempts.Fail(userID)
		return ErrWrongCredential
	}
	s.attempts.Reset(userID)
	return nil
}

// ChangePassword requires the current password as reauth proof.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakCredential
	}
	if currentPassword == "" {
		return ErrRequiresReauth
	}
	if err := s.Reauthenticate(ctx, userID, currentPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, "users", userID, bson.M{"passwordHash": string(hash)})
}

// DeleteAccount removes the account after a fresh password proof. The
// user's posts are cascaded, then the user document itself. Stored
// notifications are NOT cascaded; readers degrade missing senders to a
// placeholder.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	if password == "" {
		return ErrRequiresReauth
	}
	if err := s.Reauthenticate(ctx, userID, password); err != nil {
		return err
	}

	posts, err := s.store.Query(ctx, "posts", store.Query{
		Predicates: []store.Predicate{store.Eq("userId", userID)},
	})
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := s.store.Delete(ctx, "posts", p.ID); err != nil {
			return err
		}
	}

	return s.store.Delete(ctx, "users", userID)
}

// IssueToken signs a 24h session token for userID.
func (s *Service) IssueToken(userID string) (string, error) {
	claims := &middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// SecretFromEnv reads JWT_SECRET, with a development fallback so local
// runs work without configuration. Must stay in sync with the JWT
// middleware's fallback.
func SecretFromEnv() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "your-secret-key-change-this-in-production"
	}
	return []byte(secret)
}
