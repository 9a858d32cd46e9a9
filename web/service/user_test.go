package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vitalink-io/vitalink/caching"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/util/crypto"
)

func newUserService(db *gorm.DB) *UserService {
	return NewUserService(db, caching.NewCache())
}

func TestRegisterHashesAndStamps(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	user, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	assert.NotEqual(t, "segreto42", user.PasswordHash)
	assert.True(t, crypto.VerifyCredential(user.PasswordHash, "segreto42"))
	assert.NotEmpty(t, user.CreatedAt)
	assert.Equal(t, user.CreatedAt, user.UpdatedAt, "a fresh account carries one stamp for both fields")
	assert.Empty(t, user.LastLogin)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	_, err := userService.Register("", "pw", "Ada", "Bianchi", "doctor")
	assert.Error(t, err)
	_, err = userService.Register("abianchi", "pw", "Ada", "Bianchi", "")
	assert.Error(t, err)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	_, err := userService.Register("abianchi", "pw", "Ada", "Bianchi", "superuser")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	_, err := userService.Register("abianchi", "pw", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	_, err = userService.Register("abianchi", "other", "Anna", "Bruni", "patient")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	_, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	_, _, err = userService.Login("abianchi", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = userService.Login("nobody", "segreto42")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestLoginBumpsLastLoginWithoutRestamping(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	registered, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	// Age the replication stamp so a restamp would be visible.
	oldStamp := "2026-01-01T00:00:00Z"
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", registered.Id).
		Update("updated_at", oldStamp).Error)

	token, user, err := userService.Login("abianchi", "segreto42")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, user.LastLogin)

	stored := fetchUser(t, db, registered.Id)
	assert.Equal(t, oldStamp, stored.UpdatedAt,
		"a login must not win the next merge on the other node")
	assert.NotEmpty(t, stored.LastLogin)
}

func TestVerifyResolvesToken(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	registered, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)
	token, _, err := userService.Login("abianchi", "segreto42")
	require.NoError(t, err)

	user, err := userService.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, registered.Id, user.Id)

	_, err = userService.Verify("")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = userService.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestVerifyDropsExpiredSession(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	registered, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	expired := &model.Session{
		UserId:    registered.Id,
		Token:     "expired-token",
		ExpiresAt: model.FormatStamp(time.Now().Add(-time.Minute)),
		CreatedAt: model.FormatStamp(time.Now().Add(-time.Hour)),
	}
	require.NoError(t, db.Create(expired).Error)

	_, err = userService.Verify("expired-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	var count int64
	require.NoError(t, db.Model(&model.Session{}).Where("token = ?", "expired-token").Count(&count).Error)
	assert.EqualValues(t, 0, count, "an expired session is removed on sight")
}

func TestLogoutInvalidatesToken(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	_, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)
	token, _, err := userService.Login("abianchi", "segreto42")
	require.NoError(t, err)

	require.NoError(t, userService.Logout(token))
	_, err = userService.Verify(token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestCleanupExpiredSessions(t *testing.T) {
	db := openTestDB(t)
	userService := newUserService(db)

	registered, err := userService.Register("abianchi", "segreto42", "Ada", "Bianchi", "doctor")
	require.NoError(t, err)

	now := time.Now()
	sessions := []model.Session{
		{UserId: registered.Id, Token: "dead", ExpiresAt: model.FormatStamp(now.Add(-time.Minute)), CreatedAt: model.FormatStamp(now.Add(-time.Hour))},
		{UserId: registered.Id, Token: "live", ExpiresAt: model.FormatStamp(now.Add(time.Hour)), CreatedAt: model.FormatStamp(now)},
	}
	for i := range sessions {
		require.NoError(t, db.Create(&sessions[i]).Error)
	}

	removed, err := userService.CleanupExpiredSessions()
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	var remaining []model.Session
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "live", remaining[0].Token)
}
