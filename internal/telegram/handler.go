package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/session"
)

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

// sessionID - одна сессия на чат
func sessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.logger.Info("received message",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.Bool("is_command", msg.IsCommand()),
		zap.Int("length", len(msg.Text)),
	)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	h.setArtifact(ctx, msg, msg.Text, false)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "new":
		h.setArtifact(ctx, msg, msg.CommandArguments(), true)
	case "analyse", "analyze":
		h.handleAnalyse(ctx, msg)
	case "suggestions":
		h.handleSuggestions(ctx, msg)
	case "apply":
		h.handleApply(ctx, msg)
	case "compare":
		h.handleCompare(ctx, msg)
	case "stories":
		h.handleStories(ctx, msg)
	case "status":
		h.handleStatus(ctx, msg)
	case "reset":
		h.handleReset(ctx, msg)
	default:
		h.bot.Send(msg.Chat.ID, "Неизвестная команда. Используйте /help для справки.")
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.Send(msg.Chat.ID, "Добро пожаловать! Пришлите текст артефакта: требования, описание процесса или user stories.\n\n"+
		"Используйте /help для просмотра доступных команд.")
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	helpText := `<b>Доступные команды:</b>

/new текст - Начать заново с новым артефактом
/analyse - Оценить текущую версию
/suggestions - Предложения из последнего анализа
/apply SUG-001 SUG-002 - Применить выбранные предложения
/apply all - Применить все предложения
/compare - Сравнить две последние итерации
/compare 3 1 - Сравнить итерации 3 и 1
/stories - Сгенерировать user stories по текущей версии
/status - Текущая сессия и история оценок
/reset - Удалить сессию

<b>Как использовать:</b>
Отправьте текст артефакта обычным сообщением, затем /analyse. Примите предложения через /apply и снова запустите /analyse. Артефакт готов, когда оценка достигает порога.`

	h.bot.Send(msg.Chat.ID, helpText)
}

// allow - лимит на чат для команд, которые ходят в LLM
func (h *Handler) allow(msg *tgbotapi.Message) bool {
	key := "tg:" + strconv.FormatInt(msg.Chat.ID, 10)
	if h.bot.rateLimiter.Allow(key) {
		return true
	}
	h.bot.logger.Warn("rate limit exceeded",
		zap.Int64("chat_id", msg.Chat.ID),
		zap.Time("reset_at", h.bot.rateLimiter.ResetTime(key)),
	)
	h.bot.RecordRateLimitHit()
	h.bot.Send(msg.Chat.ID, "Слишком много запросов. Пожалуйста, подождите минуту.")
	return false
}

// setArtifact: fresh=true пересоздает сессию, иначе обновляет текст существующей
func (h *Handler) setArtifact(ctx context.Context, msg *tgbotapi.Message, text string, fresh bool) {
	chatID := msg.Chat.ID
	id := sessionID(chatID)

	if err := domain.ValidateArtifact(text); err != nil {
		h.bot.Send(chatID, mapErrorToMessage(err))
		return
	}

	if !fresh {
		if sess, err := h.bot.sessions.Get(id); err == nil {
			if err := sess.UpdateArtifact(text); err != nil {
				h.bot.Send(chatID, mapErrorToMessage(err))
				return
			}
			h.bot.Send(chatID, "Текст артефакта обновлен. Запустите /analyse.")
			return
		}
	}

	if !h.allow(msg) {
		return
	}
	h.bot.SendTyping(chatID)

	artifactType, det, err := h.bot.detector.Resolve(ctx, text, "")
	if err != nil {
		h.bot.logger.Error("artifact type detection failed", zap.Error(err), zap.Int64("chat_id", chatID))
		h.bot.Send(chatID, mapErrorToMessage(err))
		return
	}

	// новая сессия снова начинает с итерации 1, старый архив чата мешал бы ей
	h.dropSession(ctx, id)
	sess, err := h.bot.sessions.CreateWithID(id, text, h.bot.threshold, artifactType)
	if err != nil {
		h.bot.Send(chatID, mapErrorToMessage(err))
		return
	}

	h.bot.Send(chatID, FormatSessionCreated(sess.ArtifactType, det, sess.Threshold))
}

// session достает сессию чата или подсказывает, как ее начать
func (h *Handler) session(msg *tgbotapi.Message) (*session.Session, bool) {
	sess, err := h.bot.sessions.Get(sessionID(msg.Chat.ID))
	if err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleAnalyse(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.session(msg)
	if !ok || !h.allow(msg) {
		return
	}

	h.bot.SendTyping(msg.Chat.ID)

	outcome, err := sess.Analyse(ctx)
	if err != nil {
		h.bot.logger.Error("analysis failed",
			zap.Error(err),
			zap.String("session_id", sess.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	h.bot.SendLong(msg.Chat.ID, FormatOutcome(outcome, sess.Threshold))
}

func (h *Handler) handleSuggestions(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.session(msg)
	if !ok {
		return
	}

	if sess.Snapshot().Iterations == 0 {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(domain.ErrNoAnalysis))
		return
	}
	h.bot.SendLong(msg.Chat.ID, FormatSuggestions(sess.Suggestions()))
}

func (h *Handler) handleApply(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.session(msg)
	if !ok {
		return
	}

	ids, all := ParseApplyArgs(msg.CommandArguments())
	if all {
		for _, s := range sess.Suggestions() {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		h.bot.Send(msg.Chat.ID, "Укажите id предложений: /apply SUG-001 SUG-002 или /apply all")
		return
	}
	if !h.allow(msg) {
		return
	}

	h.bot.SendTyping(msg.Chat.ID)

	before := sess.ArtifactText()
	revised, err := sess.ApplySuggestions(ctx, ids)
	if err != nil {
		h.bot.logger.Error("apply suggestions failed",
			zap.Error(err),
			zap.String("session_id", sess.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	if revised == before {
		h.bot.Send(msg.Chat.ID, "Ни одно из указанных предложений не найдено, текст не изменился.")
		return
	}

	h.bot.SendLong(msg.Chat.ID, FormatRevision(revised))
}

func (h *Handler) handleCompare(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.session(msg)
	if !ok {
		return
	}

	current, previous, err := ParseCompareArgs(msg.CommandArguments())
	if err != nil {
		h.bot.Send(msg.Chat.ID, "Использование: /compare или /compare 3 1")
		return
	}

	report, err := sess.Compare(current, previous)
	if err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	h.bot.SendLong(msg.Chat.ID, FormatComparison(report))
}

func (h *Handler) handleStories(ctx context.Context, msg *tgbotapi.Message) {
	if h.bot.stories == nil {
		h.bot.Send(msg.Chat.ID, "Генерация историй отключена.")
		return
	}
	sess, ok := h.session(msg)
	if !ok || !h.allow(msg) {
		return
	}

	h.bot.SendTyping(msg.Chat.ID)

	gen, err := h.bot.stories.Run(ctx, sess.ArtifactText())
	if err != nil {
		h.bot.logger.Error("story generation failed",
			zap.Error(err),
			zap.String("session_id", sess.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	sess.SetStories(gen.Stories, gen.Coverage)

	h.bot.SendLong(msg.Chat.ID, FormatStories(gen))
}

func (h *Handler) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.session(msg)
	if !ok {
		return
	}
	h.bot.Send(msg.Chat.ID, FormatStatus(sess.Snapshot()))
}

func (h *Handler) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	id := sessionID(msg.Chat.ID)
	if _, err := h.bot.sessions.Get(id); err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	h.dropSession(ctx, id)
	h.bot.Send(msg.Chat.ID, "Сессия удалена. Пришлите новый текст артефакта.")
}

// dropSession удаляет сессию чата вместе с архивом итераций
func (h *Handler) dropSession(ctx context.Context, id string) {
	if err := h.bot.sessions.Delete(id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		h.bot.logger.Warn("failed to delete session", zap.Error(err), zap.String("session_id", id))
	}
	if err := h.bot.sessions.PurgeArchive(ctx, id); err != nil {
		h.bot.logger.Warn("failed to purge archive", zap.Error(err), zap.String("session_id", id))
	}
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Нет активной сессии. Пришлите текст артефакта или используйте /new."
	case errors.Is(err, domain.ErrEmptyArtifact):
		return "Пустой артефакт. Пришлите текст."
	case errors.Is(err, domain.ErrArtifactTooLong):
		return fmt.Sprintf("Артефакт слишком длинный. Максимум %d байт.", domain.MaxArtifactLength)
	case errors.Is(err, domain.ErrNoAnalysis):
		return "Анализа еще не было. Используйте /analyse."
	case errors.Is(err, domain.ErrInsufficientHistory):
		return "Для сравнения нужно минимум две итерации."
	case errors.Is(err, domain.ErrInvalidIteration):
		return "Некорректный номер итерации. Посмотрите /status."
	case errors.Is(err, domain.ErrNoStories):
		return "Модель не вернула ни одной корректной истории. Уточните требования и попробуйте снова."
	case errors.Is(err, llm.ErrRateLimit), errors.Is(err, llm.ErrOverloaded):
		return "Модель перегружена. Попробуйте через минуту."
	case errors.Is(err, llm.ErrInvalidJSON), errors.Is(err, llm.ErrEmptyResponse):
		return "Модель вернула некорректный ответ. Попробуйте еще раз."
	case errors.Is(err, llm.ErrAuthFailed), errors.Is(err, llm.ErrRequestFailed):
		return "Не удалось обратиться к модели. Попробуйте позже."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}
