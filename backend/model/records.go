package model

import (
	"encoding/json"
	"time"
)

// RoleAdmin only exists at the REST layer; inside a room an admin acts
// with trainer privileges.
const RoleAdmin = "admin"

// User is a persisted account, trainer or student.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	FirstName    string    `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName     string    `bson:"last_name,omitempty" json:"lastName,omitempty"`
	Role         string    `bson:"role" json:"role"`
	Bio          string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Avatar       string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	TrainerID    string    `bson:"trainer_id,omitempty" json:"trainerId,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// Lesson lifecycle.
const (
	LessonStatusScheduled  = "scheduled"
	LessonStatusInProgress = "in_progress"
	LessonStatusCompleted  = "completed"
	LessonStatusCancelled  = "cancelled"

	LessonTypeIndividual = "individual"
	LessonTypeGroup      = "group"
)

// Participation of one user in one lesson.
const (
	ParticipantStatusInvited  = "invited"
	ParticipantStatusAttended = "attended"
)

type LessonParticipant struct {
	UserID   string     `bson:"user_id" json:"userId"`
	Status   string     `bson:"status" json:"status"`
	JoinedAt *time.Time `bson:"joined_at,omitempty" json:"joinedAt,omitempty"`
	LeftAt   *time.Time `bson:"left_at,omitempty" json:"leftAt,omitempty"`
}

// Lesson is a scheduled coaching session. RoomID is the opaque room
// identifier issued at creation time and later consumed by the live
// session coordinator.
type Lesson struct {
	ID              string              `bson:"_id" json:"id"`
	Title           string              `bson:"title" json:"title"`
	Description     string              `bson:"description,omitempty" json:"description,omitempty"`
	Type            string              `bson:"type" json:"type"`
	Status          string              `bson:"status" json:"status"`
	ScheduledAt     time.Time           `bson:"scheduled_at" json:"scheduledAt"`
	DurationMinutes int                 `bson:"duration_minutes" json:"durationMinutes"`
	RoomID          string              `bson:"room_id" json:"roomId"`
	TrainerID       string              `bson:"trainer_id" json:"trainerId"`
	Participants    []LessonParticipant `bson:"participants" json:"participants"`
	GameState       json.RawMessage     `bson:"game_state,omitempty" json:"gameState,omitempty"`
	CreatedAt       time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updatedAt"`
}
