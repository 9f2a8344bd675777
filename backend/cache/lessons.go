// Package cache fronts lesson reads with Redis. Entries are short-lived
// and invalidated on every write path, the repository stays the source
// of truth.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/redis/go-redis/v9"
)

const lessonTTL = 10 * time.Minute

type LessonCache interface {
	Set(ctx context.Context, lesson *model.Lesson) error
	Get(ctx context.Context, id string) (*model.Lesson, error)
	Delete(ctx context.Context, id string) error
}

type lessonCache struct {
	client *redis.Client
}

func NewLessonCache(client *redis.Client) LessonCache {
	return &lessonCache{
		client: client,
	}
}

func (c *lessonCache) Set(ctx context.Context, lesson *model.Lesson) error {
	data, err := json.Marshal(lesson)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "lesson:"+lesson.ID, data, lessonTTL).Err()
}

func (c *lessonCache) Get(ctx context.Context, id string) (*model.Lesson, error) {
	data, err := c.client.Get(ctx, "lesson:"+id).Result()
	if err != nil {
		return nil, err
	}
	var lesson model.Lesson
	err = json.Unmarshal([]byte(data), &lesson)
	return &lesson, err
}

func (c *lessonCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, "lesson:"+id).Err()
}
