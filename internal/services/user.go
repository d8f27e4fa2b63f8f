package services

import (
	"context"
	"strings"

	"github.com/sprintdesk/apiserver/types"
)

// UserService exposes account reads and self-service profile updates.
type UserService struct {
	users UserRepo
}

func NewUserService(users UserRepo) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	return s.users.List(ctx, offset, limit)
}

// UpdateProfile applies a partial profile update. Only the fields in
// UserPatch are updatable; callers can never touch username, role, or
// password through this path.
func (s *UserService) UpdateProfile(ctx context.Context, id int, patch types.UserPatch) (types.User, error) {
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" || !strings.Contains(email, "@") {
			return types.User{}, invalidf("email is not valid")
		}
		patch.Email = &email
	}
	return s.users.UpdateProfile(ctx, id, patch)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.users.Delete(ctx, id)
}
