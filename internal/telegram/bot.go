package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/ratelimit"
	"github.com/kitbuilder587/ba-analyser/internal/session"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

type BotConfig struct {
	Token             string
	Debug             bool
	RequestsPerMinute int
	Threshold         float64
}

type Detector interface {
	Resolve(ctx context.Context, text string, requested domain.ArtifactType) (domain.ArtifactType, *analyser.Detection, error)
}

type Recorder interface {
	RecordRequest(channel, operation, status string, duration time.Duration)
	RecordRateLimitHit(channel string)
}

type StoryGenerator interface {
	Run(ctx context.Context, text string) (*stories.Generation, error)
}

// sender - то, что бот умеет отправлять; *tgbotapi.BotAPI его реализует
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Deps struct {
	Sessions *session.Manager
	Detector Detector
	// Stories - nil отключает /stories
	Stories StoryGenerator
	Logger  *zap.Logger
	Metrics Recorder
}

type Bot struct {
	api         *tgbotapi.BotAPI
	out         sender
	sessions    *session.Manager
	detector    Detector
	stories     StoryGenerator
	threshold   float64
	logger      *zap.Logger
	metrics     Recorder
	handler     *Handler
	rateLimiter *ratelimit.Limiter
	wg          sync.WaitGroup
}

func New(cfg BotConfig, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Debug

	bot := newBot(cfg, deps)
	bot.api = api
	bot.out = api

	bot.logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
	)

	return bot, nil
}

func newBot(cfg BotConfig, deps Deps) *Bot {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 80
	}

	bot := &Bot{
		sessions:  deps.Sessions,
		detector:  deps.Detector,
		stories:   deps.Stories,
		threshold: threshold,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		rateLimiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
	}
	bot.handler = NewHandler(bot)
	return bot
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping, waiting for handlers to finish")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.rateLimiter.Stop()
			b.logger.Info("all handlers finished")
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	startTime := time.Now()

	operation := "text"
	if update.Message != nil && update.Message.IsCommand() {
		operation = update.Message.Command()
	}

	defer func() {
		if r := recover(); r != nil {
			chatID := int64(0)
			if update.Message != nil && update.Message.Chat != nil {
				chatID = update.Message.Chat.ID
			}
			b.logger.Error("panic in update handler",
				zap.Any("panic", r),
				zap.Int64("chat_id", chatID),
			)
			if b.metrics != nil {
				b.metrics.RecordRequest("telegram", operation, "panic", time.Since(startTime))
			}
		}
	}()

	b.handler.HandleMessage(ctx, update.Message)

	if b.metrics != nil {
		b.metrics.RecordRequest("telegram", operation, "processed", time.Since(startTime))
	}
}

func (b *Bot) Send(chatID int64, text string) error {
	if b.out == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true
	_, err := b.out.Send(msg)
	return err
}

// SendLong режет текст по лимиту телеграма
func (b *Bot) SendLong(chatID int64, text string) {
	for _, m := range SplitMessage(text, 4096) {
		if err := b.Send(chatID, m); err != nil {
			b.logger.Error("failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}
}

func (b *Bot) SendTyping(chatID int64) {
	if b.out == nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.out.Send(action)
}

func (b *Bot) RecordRateLimitHit() {
	if b.metrics != nil {
		b.metrics.RecordRateLimitHit("telegram")
	}
}
