package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LessonRepo interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	Update(ctx context.Context, lesson *model.Lesson) error
	ListByTrainer(ctx context.Context, trainerID string) ([]*model.Lesson, error)
	ListByParticipant(ctx context.Context, userID string) ([]*model.Lesson, error)
}

type lessonRepo struct {
	collection *mongo.Collection
}

func NewLessonRepo(client *mongo.Client, db string) LessonRepo {
	return &lessonRepo{
		collection: client.Database(db).Collection("lessons"),
	}
}

func (r *lessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, lesson)
	return err
}

func (r *lessonRepo) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&lesson)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) Update(ctx context.Context, lesson *model.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": lesson.ID}, lesson)
	return err
}

func (r *lessonRepo) ListByTrainer(ctx context.Context, trainerID string) ([]*model.Lesson, error) {
	return r.findAll(ctx, bson.M{"trainer_id": trainerID})
}

func (r *lessonRepo) ListByParticipant(ctx context.Context, userID string) ([]*model.Lesson, error) {
	return r.findAll(ctx, bson.M{"participants.user_id": userID})
}

func (r *lessonRepo) findAll(ctx context.Context, filter bson.M) ([]*model.Lesson, error) {
	cur, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"scheduled_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var lessons []*model.Lesson
	if err = cur.All(ctx, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}
