package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/cache"
	"github.com/dan-kuzbass/chess-stars/backend/config"
	"github.com/dan-kuzbass/chess-stars/backend/coordinator"
	"github.com/dan-kuzbass/chess-stars/backend/repository"
	apiServer "github.com/dan-kuzbass/chess-stars/backend/server/http"
	websocketServer "github.com/dan-kuzbass/chess-stars/backend/server/websocket"
	"github.com/dan-kuzbass/chess-stars/backend/service"
	store "github.com/dan-kuzbass/chess-stars/backend/storage/memory"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoConnectTimeout = 10 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket lesson-session listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	cfg := config.Load()

	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), defaultMongoConnectTimeout)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	if err = mongoClient.Ping(mongoCtx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		_ = redisClient.Close()
	}()

	userRepo := repository.NewUserRepo(mongoClient, cfg.MongoDB)
	lessonRepo := repository.NewLessonRepo(mongoClient, cfg.MongoDB)
	lessonCache := cache.NewLessonCache(redisClient)

	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, &logger)
	userSvc := service.NewUserService(userRepo, &logger)
	lessonSvc := service.NewLessonService(lessonRepo, userRepo, lessonCache, &logger)

	coord := coordinator.New(coordinator.Config{
		Store:  store.NewStore(),
		Logger: &logger,
	})

	apiSrv := apiServer.NewServer(apiServer.Config{
		Logger:        &logger,
		AuthService:   authSvc,
		UserService:   userSvc,
		LessonService: lessonSvc,
		ListenAddr:    *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:      &logger,
		Coordinator: coord,
		Verifier:    authSvc,
		ListenAddr:  *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go apiSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
