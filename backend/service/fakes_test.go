package service

import (
	"context"
	"errors"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/google/uuid"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return errors.New("no such user")
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role string) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListStudents(_ context.Context, trainerID string) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if u.TrainerID == trainerID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListStudentsWithoutTrainer(_ context.Context) ([]*model.User, error) {
	var out []*model.User
	for _, u := range r.users {
		if u.Role == model.RoleStudent && u.TrainerID == "" {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeLessonRepo struct {
	lessons map[string]*model.Lesson
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{lessons: make(map[string]*model.Lesson)}
}

func (r *fakeLessonRepo) Create(_ context.Context, lesson *model.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	cp := *lesson
	r.lessons[lesson.ID] = &cp
	return nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id string) (*model.Lesson, error) {
	if l, ok := r.lessons[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeLessonRepo) Update(_ context.Context, lesson *model.Lesson) error {
	if _, ok := r.lessons[lesson.ID]; !ok {
		return errors.New("no such lesson")
	}
	cp := *lesson
	r.lessons[lesson.ID] = &cp
	return nil
}

func (r *fakeLessonRepo) ListByTrainer(_ context.Context, trainerID string) ([]*model.Lesson, error) {
	var out []*model.Lesson
	for _, l := range r.lessons {
		if l.TrainerID == trainerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) ListByParticipant(_ context.Context, userID string) ([]*model.Lesson, error) {
	var out []*model.Lesson
	for _, l := range r.lessons {
		for _, p := range l.Participants {
			if p.UserID == userID {
				cp := *l
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

var errCacheMiss = errors.New("cache miss")

type fakeLessonCache struct {
	entries map[string]*model.Lesson
}

func newFakeLessonCache() *fakeLessonCache {
	return &fakeLessonCache{entries: make(map[string]*model.Lesson)}
}

func (c *fakeLessonCache) Set(_ context.Context, lesson *model.Lesson) error {
	cp := *lesson
	c.entries[lesson.ID] = &cp
	return nil
}

func (c *fakeLessonCache) Get(_ context.Context, id string) (*model.Lesson, error) {
	if l, ok := c.entries[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, errCacheMiss
}

func (c *fakeLessonCache) Delete(_ context.Context, id string) error {
	delete(c.entries, id)
	return nil
}
