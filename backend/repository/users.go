// Package repository persists users and lessons in MongoDB. The live
// session coordinator never touches it, the REST layer is its only
// consumer.
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

type UserRepo interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	ListByRole(ctx context.Context, role string) ([]*model.User, error)
	ListStudents(ctx context.Context, trainerID string) ([]*model.User, error)
	ListStudentsWithoutTrainer(ctx context.Context) ([]*model.User, error)
}

type userRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(client *mongo.Client, db string) UserRepo {
	return &userRepo{
		collection: client.Database(db).Collection("users"),
	}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, user)
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	return err
}

func (r *userRepo) ListByRole(ctx context.Context, role string) ([]*model.User, error) {
	return r.findAll(ctx, bson.M{"role": role})
}

func (r *userRepo) ListStudents(ctx context.Context, trainerID string) ([]*model.User, error) {
	return r.findAll(ctx, bson.M{"trainer_id": trainerID})
}

func (r *userRepo) ListStudentsWithoutTrainer(ctx context.Context) ([]*model.User, error) {
	return r.findAll(ctx, bson.M{
		"role":       model.RoleStudent,
		"trainer_id": bson.M{"$in": bson.A{nil, ""}},
	})
}

func (r *userRepo) findAll(ctx context.Context, filter bson.M) ([]*model.User, error) {
	cur, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"username": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []*model.User
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
