package service

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vitalink-io/vitalink/caching"
	"github.com/vitalink-io/vitalink/database"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/util/crypto"
	"github.com/vitalink-io/vitalink/util/random"
)

const (
	// sessionLifetime matches the dashboard's idle window. Sessions are
	// node-local; logging in on one node does not open the other.
	sessionLifetime = 40 * time.Minute

	// sessionTokenLength gives 256 bits of URL-safe token.
	sessionTokenLength = 43
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrSessionInvalid = errors.New("session missing or expired")
	ErrUsernameTaken  = errors.New("username already exists")
)

// UserService owns accounts and login sessions.
type UserService struct {
	db    *gorm.DB
	cache *caching.Cache
}

func NewUserService(db *gorm.DB, cache *caching.Cache) *UserService {
	return &UserService{db: db, cache: cache}
}

// Register creates an account. Every field is required and the role must
// be one of the closed set; the record is stamped so it replicates on the
// next cycle.
func (s *UserService) Register(username, password, firstName, lastName, role string) (*model.User, error) {
	if username == "" || password == "" || firstName == "" || lastName == "" || role == "" {
		return nil, common.NewError("all fields are required")
	}
	if !model.ValidRole(role) {
		return nil, common.NewErrorf("invalid role %q", role)
	}

	hash, err := crypto.HashCredential(password)
	if err != nil {
		return nil, err
	}

	now := model.NowStamp()
	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.Create(user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	logger.Infof("registered user %q (%s)", username, role)
	return user, nil
}

// Login verifies credentials and opens a session. It bumps last_login
// only: last_login is replication payload, and stamping updated_at here
// would make every login win the next merge.
func (s *UserService) Login(username, password string) (string, *model.User, error) {
	user := &model.User{}
	err := s.db.Where("username = ?", username).First(user).Error
	if err != nil {
		if database.IsNotFound(err) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}

	if !crypto.VerifyCredential(user.PasswordHash, password) {
		return "", nil, ErrBadCredentials
	}

	now := time.Now()
	token := random.Token(sessionTokenLength)
	session := &model.Session{
		UserId:    user.Id,
		Token:     token,
		ExpiresAt: model.FormatStamp(now.Add(sessionLifetime)),
		CreatedAt: model.FormatStamp(now),
	}
	if err := s.db.Create(session).Error; err != nil {
		return "", nil, err
	}

	user.LastLogin = model.FormatStamp(now)
	if err := s.db.Model(&model.User{}).Where("id = ?", user.Id).
		Update("last_login", user.LastLogin).Error; err != nil {
		logger.Warning("update last_login:", err)
	}

	return token, user, nil
}

// Verify resolves a bearer token to its account. Expired sessions are
// removed on sight, matching the cleanup job's contract.
func (s *UserService) Verify(token string) (*model.User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	if user, ok := s.cache.GetSession(token); ok {
		return user, nil
	}

	var session model.Session
	err := s.db.Where("token = ?", token).First(&session).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	expires, err := model.ParseStamp(session.ExpiresAt)
	if err != nil || !expires.After(time.Now().UTC()) {
		s.dropSession(&session)
		return nil, ErrSessionInvalid
	}

	var user model.User
	err = s.db.First(&user, "id = ?", session.UserId).Error
	if err != nil {
		if database.IsNotFound(err) {
			// Account deleted out from under the session.
			s.dropSession(&session)
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	s.cache.PutSession(token, user)
	return &user, nil
}

// Logout closes one session.
func (s *UserService) Logout(token string) error {
	if token == "" {
		return nil
	}
	s.cache.DropSession(token)
	return s.db.Where("token = ?", token).Delete(&model.Session{}).Error
}

// CleanupExpiredSessions removes sessions past their expiry, returning
// how many went. Stored stamps are canonical RFC3339 UTC, so the text
// comparison is also a time comparison.
func (s *UserService) CleanupExpiredSessions() (int64, error) {
	result := s.db.Where("expires_at < ?", model.NowStamp()).Delete(&model.Session{})
	return result.RowsAffected, result.Error
}

func (s *UserService) dropSession(session *model.Session) {
	if err := s.db.Delete(&model.Session{}, session.Id).Error; err != nil {
		logger.Warning("drop session:", err)
	}
	s.cache.DropSession(session.Token)
}
