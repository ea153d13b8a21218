package main

import (
	"context"
	"fmt"
	"quizroom/config"
	"quizroom/internal/logger"
	"quizroom/internal/model"
	"quizroom/internal/repository"
	"quizroom/internal/service"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seed creates a demo lobby whose host seat is waiting to be claimed with the
// printed resume token. Unclaimed seats are purged after PLAYER_GRACE.
func main() {
	cfg := config.Load()
	log := logger.New("quizroom-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to mongodb")
	}
	defer client.Disconnect(context.Background())

	repo := repository.NewRoomRepo(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	now := time.Now()
	host := model.Player{
		ID:               uuid.NewString(),
		Nickname:         "Quizmaster",
		Role:             model.RoleHost,
		Answers:          []model.AnswerRecord{},
		LastDisconnectAt: &now,
		LastActivityAt:   now,
		JoinedAt:         now,
	}
	room := &model.Room{
		ID:                     primitive.NewObjectID().Hex(),
		State:                  model.RoomLobby,
		Players:                []model.Player{host},
		PerQuestionTimeSeconds: cfg.DefaultBudget,
		QuestionStartTimes:     []int64{},
		Version:                1,
		CreatedAt:              now,
		LastActivity:           now,
		Questions: []model.Question{
			{
				Prompt:             "Which planet is known as the Red Planet?",
				Options:            []string{"Venus", "Mars", "Jupiter", "Mercury"},
				CorrectOptionIndex: 1,
				Points:             100,
			},
			{
				Prompt:             "What is the largest ocean on Earth?",
				Options:            []string{"Atlantic", "Indian", "Arctic", "Pacific"},
				CorrectOptionIndex: 3,
				Points:             100,
			},
			{
				Prompt:             "How many sides does a hexagon have?",
				Options:            []string{"5", "6", "7", "8"},
				CorrectOptionIndex: 1,
				TimeBudgetSeconds:  10,
				Points:             50,
			},
		},
	}
	for i := range room.Questions {
		if err := room.Questions[i].Validate(); err != nil {
			log.WithError(err).Fatalf("question %d is invalid", i)
		}
	}

	if err := repo.Create(ctx, room); err != nil {
		log.WithError(err).Fatal("failed to insert room")
	}

	token, err := service.NewAuthService(cfg.JWTSecret, cfg.ResumeTokenTTL).IssueResumeToken(room.ID, host.ID)
	if err != nil {
		log.WithError(err).Fatal("failed to issue resume token")
	}

	fmt.Printf("Created demo room %s with %d questions\n", room.ID, len(room.Questions))
	fmt.Printf("Claim the host seat within %s with reconnectAttempt {\"resumeToken\": %q}\n", cfg.PlayerGrace, token)
}
