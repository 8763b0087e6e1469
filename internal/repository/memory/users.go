package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

var _ repository.UserStore = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]models.User)}
}

func (s *UserStore) InsertUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID().Hex()
	s.users[user.ID] = user
	return user, nil
}

func (s *UserStore) FindUser(_ context.Context, id string) (models.User, error) {
	if !primitive.IsValidObjectID(id) {
		return models.User{}, repository.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (s *UserStore) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (s *UserStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *UserStore) CountUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *UserStore) FindUserNames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			names[id] = user.Name
		}
	}
	return names, nil
}

func (s *UserStore) UpdateUser(_ context.Context, id string, patch repository.UserPatch) (models.User, error) {
	if !primitive.IsValidObjectID(id) {
		return models.User{}, repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	if patch.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && strings.EqualFold(other.Email, *patch.Email) {
				return models.User{}, repository.ErrDuplicate
			}
		}
	}
	applyUserPatch(&user, patch)
	s.users[id] = user
	return user, nil
}

func (s *UserStore) DeleteUser(_ context.Context, id string) error {
	if !primitive.IsValidObjectID(id) {
		return repository.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func applyUserPatch(u *models.User, p repository.UserPatch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Name, p.Name)
	set(&u.Email, p.Email)
	set(&u.PasswordHash, p.PasswordHash)
	set(&u.Phone, p.Phone)
	set(&u.Street, p.Street)
	set(&u.Apartment, p.Apartment)
	set(&u.Zip, p.Zip)
	set(&u.City, p.City)
	set(&u.Country, p.Country)
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
}
