package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/vitalink-io/vitalink/caching"
	"github.com/vitalink-io/vitalink/database"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/util/crypto"
)

var ErrLastAdmin = errors.New("cannot delete the last admin account")

// UserAdminService covers the admin-only account operations. Everything
// that changes a record stamps updated_at, which is what makes the edit
// win on the next sync cycle.
type UserAdminService struct {
	db    *gorm.DB
	cache *caching.Cache
}

func NewUserAdminService(db *gorm.DB, cache *caching.Cache) *UserAdminService {
	return &UserAdminService{db: db, cache: cache}
}

// UserDTO is the account shape served over the API: everything except the
// password hash.
type UserDTO struct {
	Id        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"last_login"`
	UpdatedAt string `json:"updated_at"`
}

// ToUserDTO strips the credential fields for API responses.
func ToUserDTO(u *model.User) UserDTO {
	return UserDTO{
		Id:        u.Id,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
		UpdatedAt: u.UpdatedAt,
	}
}

func (s *UserAdminService) ListUsers() ([]UserDTO, error) {
	var users []model.User
	if err := s.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, ToUserDTO(&users[i]))
	}
	return out, nil
}

func (s *UserAdminService) GetUser(id int) (UserDTO, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return UserDTO{}, err
	}
	return ToUserDTO(&user), nil
}

// UpdateUser changes profile fields, role and optionally the password.
// Empty arguments keep the current value. The record is restamped so the
// edit replicates.
func (s *UserAdminService) UpdateUser(id int, firstName, lastName, role, password string) (UserDTO, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return UserDTO{}, err
	}

	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if role != "" {
		if !model.ValidRole(role) {
			return UserDTO{}, common.NewErrorf("invalid role %q", role)
		}
		user.Role = role
	}
	if password != "" {
		hash, err := crypto.HashCredential(password)
		if err != nil {
			return UserDTO{}, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = model.NowStamp()

	if err := s.db.Save(&user).Error; err != nil {
		return UserDTO{}, err
	}

	// Cached sessions may carry the old role or a now-rotated password.
	s.cache.DropUser(id)
	return ToUserDTO(&user), nil
}

// DeleteUser removes an account and its sessions. The last admin cannot
// be removed, otherwise the node would lock itself out of its own user
// administration.
func (s *UserAdminService) DeleteUser(id int) error {
	var user model.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return err
	}

	if user.Role == string(model.RoleAdmin) {
		var admins int64
		if err := s.db.Model(&model.User{}).
			Where("role = ?", string(model.RoleAdmin)).
			Count(&admins).Error; err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if err := s.db.Delete(&model.User{}, id).Error; err != nil {
		return err
	}
	if err := s.db.Where("user_id = ?", id).Delete(&model.Session{}).Error; err != nil {
		logger.Warning("delete sessions of removed user:", err)
	}
	s.cache.DropUser(id)

	logger.Infof("deleted user %q (id %d)", user.Username, id)
	return nil
}

// ResetPassword sets a new password for the named account. It backs the
// CLI recovery path for operators locked out of the dashboard, so it works
// by username rather than id and invalidates every open session of the
// account.
func (s *UserAdminService) ResetPassword(username, password string) error {
	if username == "" || password == "" {
		return common.NewError("username and password are required")
	}

	var user model.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return err
	}

	hash, err := crypto.HashCredential(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = model.NowStamp()

	if err := s.db.Save(&user).Error; err != nil {
		return err
	}
	if err := s.db.Where("user_id = ?", user.Id).Delete(&model.Session{}).Error; err != nil {
		logger.Warning("delete sessions after password reset:", err)
	}
	s.cache.DropUser(user.Id)

	logger.Infof("reset password of user %q", username)
	return nil
}

// IsNotFound tells controllers a lookup missed without leaking gorm
// through the service boundary.
func (s *UserAdminService) IsNotFound(err error) bool {
	return database.IsNotFound(err)
}
