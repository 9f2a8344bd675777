package service

import (
	"context"
	"errors"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/repository"
	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNotATrainer   = errors.New("user is not a trainer")
	ErrNotAStudent   = errors.New("user is not a student")
	ErrUpdateProfile = errors.New("unable to update profile")
)

// Profile is a user record plus the relations the dashboards render:
// a student's trainer, a trainer's students.
type Profile struct {
	model.User
	Trainer  *model.User   `json:"trainer,omitempty"`
	Students []*model.User `json:"students,omitempty"`
}

type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

type UserService struct {
	users  repository.UserRepo
	logger zerolog.Logger
}

func NewUserService(users repository.UserRepo, logger *zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	profile := &Profile{User: *user}
	switch user.Role {
	case model.RoleStudent:
		if user.TrainerID != "" {
			// Missing trainer record is not fatal for a profile view.
			if trainer, err := s.users.GetByID(ctx, user.TrainerID); err == nil {
				profile.Trainer = trainer
			}
		}
	case model.RoleTrainer:
		students, err := s.users.ListStudents(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		profile.Students = students
	}
	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrUpdateProfile, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	if err = s.users.Update(ctx, user); err != nil {
		return nil, errors.Join(ErrUpdateProfile, err)
	}
	return user, nil
}

func (s *UserService) Trainers(ctx context.Context) ([]*model.User, error) {
	return s.users.ListByRole(ctx, model.RoleTrainer)
}

func (s *UserService) MyStudents(ctx context.Context, trainerID string) ([]*model.User, error) {
	return s.users.ListStudents(ctx, trainerID)
}

func (s *UserService) StudentsWithoutTrainer(ctx context.Context) ([]*model.User, error) {
	return s.users.ListStudentsWithoutTrainer(ctx)
}

// AssignTrainer links a student to a trainer. Both sides are checked:
// only a student can pick, only a trainer can be picked.
func (s *UserService) AssignTrainer(ctx context.Context, studentID, trainerID string) (*model.User, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrUserNotFound
	}
	if student.Role != model.RoleStudent {
		return nil, ErrNotAStudent
	}
	trainer, err := s.users.GetByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		return nil, ErrUserNotFound
	}
	if trainer.Role != model.RoleTrainer {
		return nil, ErrNotATrainer
	}

	student.TrainerID = trainerID
	if err = s.users.Update(ctx, student); err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("studentID", studentID).
		Str("trainerID", trainerID).
		Msg("trainer assigned")
	return student, nil
}

func (s *UserService) RemoveTrainer(ctx context.Context, studentID string) (*model.User, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrUserNotFound
	}
	student.TrainerID = ""
	if err = s.users.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}
