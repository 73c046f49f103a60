package users

import (
	"strings"

	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	FullName     string
	Role         enums.Role
	PasswordHash string
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     strings.ToLower(strings.TrimSpace(c.Username)),
		FullName:     strings.TrimSpace(c.FullName),
		Role:         c.Role,
		PasswordHash: c.PasswordHash,
		IsActive:     true,
	}
}

// FromModel is the transport shape; it never carries the password hash.
func FromModel(u *models.User) types.User {
	return types.User{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
	}
}
