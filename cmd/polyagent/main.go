package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"polyagent/internal/agent"
	"polyagent/internal/bot"
	"polyagent/internal/grok"
	"polyagent/internal/polymarket"
)

const (
	defaultModel      = "grok-3-mini"
	defaultSessionTTL = 12 * time.Hour
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	fmt.Println("🎯 Starting Polyagent - Polymarket Position Opinion Bot")
	fmt.Println(strings.Repeat("=", 70))

	b, ttl, err := newBot()
	if err != nil {
		log.Fatal("Failed to initialize polyagent:", err)
	}

	c := cron.New()
	c.AddFunc("@every 30m", func() {
		b.SweepSessions(ttl)
	})
	c.Start()

	b.Run()
}

func newBot() (*bot.Bot, time.Duration, error) {
	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if telegramToken == "" {
		return nil, 0, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	telegramBot, err := tgbotapi.NewBotAPI(telegramToken)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	xaiKey := os.Getenv("XAI_API_KEY")
	if xaiKey == "" {
		return nil, 0, fmt.Errorf("XAI_API_KEY is required")
	}

	model := os.Getenv("XAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	ttl := defaultSessionTTL
	if ttlStr := os.Getenv("SESSION_TTL_HOURS"); ttlStr != "" {
		hours, err := strconv.Atoi(ttlStr)
		if err != nil || hours <= 0 {
			return nil, 0, fmt.Errorf("invalid SESSION_TTL_HOURS: %q", ttlStr)
		}
		ttl = time.Duration(hours) * time.Hour
	}

	a := agent.New(grok.NewClient(xaiKey), polymarket.NewClient(), model)
	return bot.New(telegramBot, a), ttl, nil
}
