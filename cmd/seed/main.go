package main

import (
	"log"
	"os"
	"time"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/model"
	"rizal-chat-be/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Demo user kept stable so the frontend team can mint a matching JWT.
const demoUserId = "11111111-1111-1111-1111-111111111111"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("🚀 Seeding demo chat data\n")

	userId := uuid.MustParse(demoUserId)

	// Skip if the demo user already has sessions
	var count int64
	if err := db.Model(&model.ChatSession{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		color.Red("Failed to check existing sessions: %v", err)
		os.Exit(1)
	}
	if count > 0 {
		color.Yellow("Demo user already has %d session(s), skipping...", count)
		return
	}

	session := model.ChatSession{
		Id:     uuid.New(),
		UserId: userId,
		Title:  "Tell me about the Noli Me Tangere",
	}
	if err := db.Create(&session).Error; err != nil {
		color.Red("Failed to create session: %v", err)
		os.Exit(1)
	}
	color.Green("Created session: %s", session.Id)

	now := time.Now()
	messages := []model.ChatMessage{
		{
			Id:            uuid.New(),
			ChatSessionId: &session.Id,
			UserId:        userId,
			Role:          constant.ChatMessageRoleUser,
			Chat:          "Tell me about the Noli Me Tangere and why you wrote it.",
			CreatedAt:     now.Add(-2 * time.Minute),
		},
		{
			Id:            uuid.New(),
			ChatSessionId: &session.Id,
			UserId:        userId,
			Role:          constant.ChatMessageRolePersona,
			Chat:          "Ah, the Noli! I wrote it to expose the cancer of our society under the friars, so that my countrymen might see themselves as in a mirror.",
			CreatedAt:     now.Add(-1 * time.Minute),
		},
	}
	for _, m := range messages {
		if err := db.Create(&m).Error; err != nil {
			color.Red("Failed to create message: %v", err)
			os.Exit(1)
		}
	}
	color.Green("Created %d messages", len(messages))

	// One orphan message so the legacy-repair path has something to adopt
	orphan := model.ChatMessage{
		Id:     uuid.New(),
		UserId: userId,
		Role:   constant.ChatMessageRoleUser,
		Chat:   "This message predates chat sessions.",
	}
	if err := db.Create(&orphan).Error; err != nil {
		color.Red("Failed to create orphan message: %v", err)
		os.Exit(1)
	}
	color.Green("Created orphan message: %s", orphan.Id)

	color.Cyan("\n✅ Seeding completed")
}
