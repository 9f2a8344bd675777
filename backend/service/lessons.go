package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/cache"
	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrOnlyTrainer     = errors.New("only the trainer can perform this action")
	ErrNotInvited      = errors.New("user is not invited to this lesson")
	ErrLessonNotActive = errors.New("lesson is not open for joining")
)

type CreateLessonInput struct {
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type,omitempty"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	ParticipantIDs  []string  `json:"participantIds"`
}

type UpdateLessonInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

type LessonService struct {
	lessons repository.LessonRepo
	users   repository.UserRepo
	cache   cache.LessonCache
	logger  zerolog.Logger
}

func NewLessonService(
	lessons repository.LessonRepo,
	users repository.UserRepo,
	lessonCache cache.LessonCache,
	logger *zerolog.Logger,
) *LessonService {
	return &LessonService{
		lessons: lessons,
		users:   users,
		cache:   lessonCache,
		logger:  logger.With().Str("component", "lessons").Logger(),
	}
}

// Create schedules a lesson and issues the room id its live session
// will run under. Trainer-only.
func (s *LessonService) Create(ctx context.Context, trainerID string, in CreateLessonInput) (*model.Lesson, error) {
	trainer, err := s.users.GetByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		return nil, ErrUserNotFound
	}
	if trainer.Role != model.RoleTrainer && trainer.Role != model.RoleAdmin {
		return nil, ErrOnlyTrainer
	}

	lessonType := in.Type
	if lessonType == "" {
		lessonType = model.LessonTypeIndividual
	}
	duration := in.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	participants := make([]model.LessonParticipant, 0, len(in.ParticipantIDs))
	seen := make(map[string]bool)
	for _, id := range in.ParticipantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		// Unknown ids are skipped rather than failing the whole lesson.
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			continue
		}
		participants = append(participants, model.LessonParticipant{
			UserID: id,
			Status: model.ParticipantStatusInvited,
		})
	}

	lesson := &model.Lesson{
		Title:           in.Title,
		Description:     in.Description,
		Type:            lessonType,
		Status:          model.LessonStatusScheduled,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: duration,
		RoomID:          uuid.NewString(),
		TrainerID:       trainerID,
		Participants:    participants,
	}
	if err = s.lessons.Create(ctx, lesson); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("lessonID", lesson.ID).
		Str("roomID", lesson.RoomID).
		Str("trainerID", trainerID).
		Msg("lesson created")
	return lesson, nil
}

// Get reads through the cache.
func (s *LessonService) Get(ctx context.Context, id string) (*model.Lesson, error) {
	if lesson, err := s.cache.Get(ctx, id); err == nil {
		return lesson, nil
	}
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, ErrLessonNotFound
	}
	if err = s.cache.Set(ctx, lesson); err != nil {
		s.logger.Warn().Err(err).Str("lessonID", id).Msg("failed to cache lesson")
	}
	return lesson, nil
}

// List returns the lessons a user can see: their own schedule for a
// trainer, their participations for a student.
func (s *LessonService) List(ctx context.Context, userID, role string) ([]*model.Lesson, error) {
	if role == model.RoleTrainer || role == model.RoleAdmin {
		return s.lessons.ListByTrainer(ctx, userID)
	}
	return s.lessons.ListByParticipant(ctx, userID)
}

func (s *LessonService) Update(ctx context.Context, id, userID string, in UpdateLessonInput) (*model.Lesson, error) {
	lesson, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lesson.TrainerID != userID {
		return nil, ErrOnlyTrainer
	}

	if in.Title != nil {
		lesson.Title = *in.Title
	}
	if in.Description != nil {
		lesson.Description = *in.Description
	}
	if in.ScheduledAt != nil {
		lesson.ScheduledAt = *in.ScheduledAt
	}
	if in.Status != nil {
		lesson.Status = *in.Status
	}
	return lesson, s.save(ctx, lesson)
}

// Join records attendance and returns the lesson (with its room id) so
// the client can open the live session. Invited participants may join,
// as may any student of the lesson's trainer.
func (s *LessonService) Join(ctx context.Context, lessonID, userID string) (*model.Lesson, error) {
	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status != model.LessonStatusScheduled && lesson.Status != model.LessonStatusInProgress {
		return nil, ErrLessonNotActive
	}
	if lesson.TrainerID == userID {
		return lesson, nil
	}

	now := time.Now().UTC()
	for i := range lesson.Participants {
		if lesson.Participants[i].UserID != userID {
			continue
		}
		if lesson.Participants[i].JoinedAt == nil {
			lesson.Participants[i].JoinedAt = &now
			lesson.Participants[i].Status = model.ParticipantStatusAttended
			return lesson, s.save(ctx, lesson)
		}
		return lesson, nil
	}

	// Not invited: a student of this lesson's trainer may still drop in.
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.TrainerID != lesson.TrainerID {
		return nil, ErrNotInvited
	}
	lesson.Participants = append(lesson.Participants, model.LessonParticipant{
		UserID:   userID,
		Status:   model.ParticipantStatusAttended,
		JoinedAt: &now,
	})
	return lesson, s.save(ctx, lesson)
}

func (s *LessonService) Leave(ctx context.Context, lessonID, userID string) error {
	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range lesson.Participants {
		p := &lesson.Participants[i]
		if p.UserID == userID && p.JoinedAt != nil && p.LeftAt == nil {
			p.LeftAt = &now
			return s.save(ctx, lesson)
		}
	}
	return nil
}

func (s *LessonService) Start(ctx context.Context, lessonID, userID string) (*model.Lesson, error) {
	return s.setStatus(ctx, lessonID, userID, model.LessonStatusInProgress)
}

func (s *LessonService) End(ctx context.Context, lessonID, userID string) (*model.Lesson, error) {
	return s.setStatus(ctx, lessonID, userID, model.LessonStatusCompleted)
}

func (s *LessonService) setStatus(ctx context.Context, lessonID, userID, status string) (*model.Lesson, error) {
	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.TrainerID != userID {
		return nil, ErrOnlyTrainer
	}
	lesson.Status = status
	return lesson, s.save(ctx, lesson)
}

// UpdateGameState persists the board position alongside the lesson
// record. This is the durable snapshot, the live copy stays with the
// coordinator and is lost on restart.
func (s *LessonService) UpdateGameState(ctx context.Context, lessonID, userID string, state json.RawMessage) (*model.Lesson, error) {
	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	canUpdate := lesson.TrainerID == userID
	for _, p := range lesson.Participants {
		if p.UserID == userID {
			canUpdate = true
			break
		}
	}
	if !canUpdate {
		return nil, ErrNotInvited
	}
	lesson.GameState = state
	return lesson, s.save(ctx, lesson)
}

func (s *LessonService) save(ctx context.Context, lesson *model.Lesson) error {
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, lesson.ID); err != nil {
		s.logger.Warn().Err(err).Str("lessonID", lesson.ID).Msg("failed to invalidate lesson cache")
	}
	return nil
}
