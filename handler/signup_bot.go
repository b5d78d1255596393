package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HealthBot/flow"
	"HealthBot/model"
	"HealthBot/signup"
	"HealthBot/validation"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	msgGreeting      = "Hello! I'm the Homatt Health assistant. Let's create your account, it only takes a minute."
	msgHelp          = "I help you create your Homatt Health account.\n\n/signup – start or restart the signup\n/cancel – stop the current signup\n/help – show this message"
	msgWelcome       = "You're all set! Welcome to Homatt Health."
	msgSaving        = "Saving..."
	msgAlreadyJoined = "You're already signed up with Homatt Health."
	msgNoSignup      = "Send /signup to create your account."
	msgCancelled     = "Signup cancelled. Send /signup whenever you want to start again."
	msgExpired       = "This signup has expired. Send /signup to start again."
	msgUseButtons    = "Please use the buttons on the signup message."
	msgUnknown       = "I didn't understand that command. Use /start or /help."
	msgUnavailable   = "Something went wrong. Please try again in a moment."
	msgOwnContact    = "Please share your own phone number."
	msgSharePhone    = "Share my phone number"
	msgTipsHeader    = "Here are a few tips to help you stay healthy:"
)

const ioTimeout = 10 * time.Second

// textFields maps a step to the field typed text goes to.
var textFields = map[string]string{
	signup.StepCity:      model.FieldCity,
	signup.StepBasicInfo: model.FieldAge,
	signup.StepPhone:     model.FieldPhoneNumber,
	signup.StepAboutYou:  model.FieldDOB,
}

// SessionStore persists unfinished signups between restarts.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (model.Session, error)
	Save(ctx context.Context, userID int64, s model.Session) error
	Delete(ctx context.Context, userID int64) error
}

// ProfileFinder is implemented by profile stores that can be queried.
type ProfileFinder interface {
	FindProfile(ctx context.Context, telegramID int64) (model.Profile, bool, error)
}

type TipsAdvisor interface {
	PreventionTips(ctx context.Context, p model.Profile) (string, error)
}

type Deps struct {
	Variant  model.Variant
	Schemas  *validation.Schemas
	Gateway  *signup.Gateway
	Sessions SessionStore

	// Optional.
	Profiles ProfileFinder
	Advisor  TipsAdvisor
	Hooks    flow.Hooks

	Logger        zerolog.Logger
	ControllerTTL time.Duration
	SubmitTimeout time.Duration
	TipsTimeout   time.Duration
}

type SignupBotHandler struct {
	variant  model.Variant
	schemas  *validation.Schemas
	gateway  *signup.Gateway
	sessions SessionStore
	profiles ProfileFinder
	advisor  TipsAdvisor
	hooks    flow.Hooks
	log      zerolog.Logger

	submitTimeout time.Duration
	tipsTimeout   time.Duration

	msgr Messenger
	live *registry
}

func NewSignupBotHandler(d Deps) (*SignupBotHandler, error) {
	if _, err := model.NewDraft(d.Variant); err != nil {
		return nil, err
	}
	if d.Schemas == nil || d.Gateway == nil || d.Sessions == nil {
		return nil, errors.New("signup bot: schemas, gateway and session store are required")
	}
	if d.ControllerTTL <= 0 {
		d.ControllerTTL = 30 * time.Minute
	}
	if d.SubmitTimeout <= 0 {
		d.SubmitTimeout = 15 * time.Second
	}
	if d.TipsTimeout <= 0 {
		d.TipsTimeout = 20 * time.Second
	}

	return &SignupBotHandler{
		variant:       d.Variant,
		schemas:       d.Schemas,
		gateway:       d.Gateway,
		sessions:      d.Sessions,
		profiles:      d.Profiles,
		advisor:       d.Advisor,
		hooks:         d.Hooks,
		log:           d.Logger,
		submitTimeout: d.SubmitTimeout,
		tipsTimeout:   d.TipsTimeout,
		live:          newRegistry(d.ControllerTTL),
	}, nil
}

// Attach sets the client replies are sent through. It must be called before
// the first update arrives.
func (h *SignupBotHandler) Attach(m Messenger) {
	h.msgr = m
}

// Close stops the controller cache.
func (h *SignupBotHandler) Close() {
	h.live.close()
}

// Handler is registered as the bot's default handler.
func (h *SignupBotHandler) Handler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h.HandleUpdate(ctx, update)
}

func (h *SignupBotHandler) HandleUpdate(ctx context.Context, update *models.Update) {
	switch {
	case update == nil:
		return
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *SignupBotHandler) handleMessage(ctx context.Context, msg *models.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	log := h.log.With().Int64("user_id", userID).Logger()

	if msg.Contact != nil {
		h.handleContact(ctx, userID, chatID, msg.Contact)
		return
	}

	text := strings.TrimSpace(msg.Text)
	log.Debug().Str("text", text).Msg("message received")

	switch command(text) {
	case "/start":
		h.start(ctx, userID, chatID, false)
	case "/signup":
		h.start(ctx, userID, chatID, true)
	case "/cancel":
		h.discard(ctx, userID)
		h.send(ctx, chatID, msgCancelled)
	case "/help":
		h.send(ctx, chatID, msgHelp)
	case "":
		if text != "" {
			h.handleText(ctx, userID, chatID, text)
		}
	default:
		h.send(ctx, chatID, msgUnknown)
	}
}

// command returns the bot command in text without a @botname suffix, or ""
// when text is not a command.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	cmd, _, _ = strings.Cut(cmd, "@")
	switch cmd {
	case "/start", "/signup", "/cancel", "/help":
		return cmd
	}
	return "?"
}

func (h *SignupBotHandler) start(ctx context.Context, userID, chatID int64, restart bool) {
	log := h.log.With().Int64("user_id", userID).Logger()

	if h.alreadyJoined(ctx, userID) {
		h.send(ctx, chatID, msgAlreadyJoined)
		return
	}

	if !restart {
		s, err := h.session(ctx, userID, chatID)
		switch {
		case err == nil:
			// resume with a fresh panel at the bottom of the chat
			s.mu.Lock()
			s.panelID = 0
			s.mu.Unlock()
			h.refresh(s)
			return
		case !errors.Is(err, model.ErrSessionNotFound):
			log.Error().Err(err).Msg("error loading session")
			h.send(ctx, chatID, msgUnavailable)
			return
		}
	}

	h.discard(ctx, userID)
	draft, err := model.NewDraft(h.variant)
	if err != nil {
		log.Error().Err(err).Msg("error creating draft")
		h.send(ctx, chatID, msgUnavailable)
		return
	}
	s, err := h.newSession(userID, chatID, draft, 0, 0)
	if err != nil {
		log.Error().Err(err).Msg("error creating signup flow")
		h.send(ctx, chatID, msgUnavailable)
		return
	}
	h.live.put(s)

	greeting := &bot.SendMessageParams{ChatID: chatID, Text: msgGreeting}
	if h.variant == model.VariantHealth {
		greeting.ReplyMarkup = &models.ReplyKeyboardMarkup{
			Keyboard:        [][]models.KeyboardButton{{{Text: msgSharePhone, RequestContact: true}}},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	}
	if _, err := h.msgr.SendMessage(ctx, greeting); err != nil {
		log.Error().Err(err).Msg("error sending message")
	}
	h.refresh(s)

	if c, ok := h.hooks.(interface{ Started() }); ok {
		c.Started()
	}
	log.Info().Str("variant", string(h.variant)).Msg("signup started")
}

func (h *SignupBotHandler) handleText(ctx context.Context, userID, chatID int64, text string) {
	s, ok := h.activeSession(ctx, userID, chatID)
	if !ok {
		return
	}
	field, ok := textFields[s.ctrl.View().StepName]
	if !ok {
		h.send(ctx, chatID, msgUseButtons)
		return
	}
	s.ctrl.UpdateField(field, text)
}

func (h *SignupBotHandler) handleContact(ctx context.Context, userID, chatID int64, contact *models.Contact) {
	s, ok := h.activeSession(ctx, userID, chatID)
	if !ok {
		return
	}
	if contact.UserID != 0 && contact.UserID != userID {
		h.send(ctx, chatID, msgOwnContact)
		return
	}
	if _, isHealth := s.ctrl.View().Draft.(*model.HealthDraft); !isHealth {
		h.send(ctx, chatID, msgUseButtons)
		return
	}
	s.ctrl.UpdateField(model.FieldPhoneNumber, contact.PhoneNumber)
}

func (h *SignupBotHandler) handleCallback(ctx context.Context, cb *models.CallbackQuery) {
	userID := cb.From.ID
	chatID := userID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}

	s, err := h.session(ctx, userID, chatID)
	if err != nil {
		text := msgExpired
		if !errors.Is(err, model.ErrSessionNotFound) {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("error loading session")
			text = msgUnavailable
		}
		h.answer(ctx, cb.ID, text)
		return
	}
	h.answer(ctx, cb.ID, "")

	parts := strings.SplitN(cb.Data, ":", 3)
	switch parts[0] {
	case cbField:
		if len(parts) == 3 {
			s.ctrl.UpdateField(parts[1], parts[2])
		}
	case cbToggle:
		if len(parts) < 2 {
			return
		}
		i, err := strconv.Atoi(parts[1])
		if err != nil || i < 0 || i >= len(model.HealthConditions) {
			return
		}
		s.ctrl.ToggleCondition(model.HealthConditions[i])
	case cbNav:
		if len(parts) < 2 {
			return
		}
		switch parts[1] {
		case navNext:
			s.ctrl.Advance()
		case navBack:
			s.ctrl.Retreat()
		case navFinish:
			h.finish(ctx, s)
		}
	}
}

func (h *SignupBotHandler) finish(ctx context.Context, s *liveSession) {
	submitCtx, cancel := context.WithTimeout(ctx, h.submitTimeout)
	defer cancel()
	if !s.ctrl.Finish(submitCtx) {
		return
	}

	h.discard(ctx, s.userID)
	h.sendTips(ctx, s.userID, s.chatID, s.ctrl.View().Draft)
}

func (h *SignupBotHandler) sendTips(ctx context.Context, userID, chatID int64, d model.Draft) {
	if h.advisor == nil {
		return
	}
	log := h.log.With().Int64("user_id", userID).Logger()

	p, err := h.gateway.BuildProfile(userID, d)
	if err != nil {
		log.Warn().Err(err).Msg("could not describe profile for tips")
		return
	}
	tipsCtx, cancel := context.WithTimeout(ctx, h.tipsTimeout)
	defer cancel()
	tips, err := h.advisor.PreventionTips(tipsCtx, p)
	if err != nil {
		log.Warn().Err(err).Msg("could not get prevention tips")
		return
	}
	h.send(ctx, chatID, msgTipsHeader+"\n\n"+tips)
}

// activeSession loads the user's signup and tells them when there is none.
func (h *SignupBotHandler) activeSession(ctx context.Context, userID, chatID int64) (*liveSession, bool) {
	s, err := h.session(ctx, userID, chatID)
	if errors.Is(err, model.ErrSessionNotFound) {
		h.send(ctx, chatID, msgNoSignup)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("error loading session")
		h.send(ctx, chatID, msgUnavailable)
		return nil, false
	}
	return s, true
}

func (h *SignupBotHandler) session(ctx context.Context, userID, chatID int64) (*liveSession, error) {
	return h.live.getOrLoad(userID, func() (*liveSession, error) {
		stored, err := h.sessions.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		draft, err := stored.RestoreDraft()
		if err != nil {
			return nil, fmt.Errorf("restore draft: %w", err)
		}
		return h.newSession(userID, chatID, draft, stored.Step, stored.PanelMessageID)
	})
}

func (h *SignupBotHandler) newSession(userID, chatID int64, draft model.Draft, step, panelID int) (*liveSession, error) {
	s := &liveSession{userID: userID, chatID: chatID, panelID: panelID}
	ctrl, err := signup.NewFlow(draft, h.schemas, h.gateway.For(userID),
		flow.WithCursor(step),
		flow.WithLogger(h.log.With().Int64("user_id", userID).Logger()),
		flow.WithHooks(h.hooks),
		flow.WithObserver(func(flow.View) { h.refresh(s) }),
	)
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// refresh redraws the panel from the latest view and stores the snapshot.
// It reads the view itself so overlapping notifications never leave an older
// state on screen.
func (h *SignupBotHandler) refresh(s *liveSession) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctrl.View()
	fields := s.ctrl.Steps()[v.CurrentStepIndex].Fields
	h.drawPanel(ctx, s, panelText(v, fields), panelKeyboard(v))

	if v.IsSubmitted {
		return
	}
	snap, err := model.NewSession(v.CurrentStepIndex, v.Draft, s.panelID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", s.userID).Msg("error encoding session")
		return
	}
	if err := h.sessions.Save(ctx, s.userID, snap); err != nil {
		h.log.Error().Err(err).Int64("user_id", s.userID).Msg("error saving session")
	}
}

// drawPanel edits the panel in place, or sends a new one when there is none
// or it can no longer be edited. s.mu must be held.
func (h *SignupBotHandler) drawPanel(ctx context.Context, s *liveSession, text string, kb *models.InlineKeyboardMarkup) {
	if s.panelID != 0 {
		params := &bot.EditMessageTextParams{ChatID: s.chatID, MessageID: s.panelID, Text: text}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err := h.msgr.EditMessageText(ctx, params)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		h.log.Warn().Err(err).Int64("user_id", s.userID).Msg("error editing panel, sending a new one")
	}

	params := &bot.SendMessageParams{ChatID: s.chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	msg, err := h.msgr.SendMessage(ctx, params)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", s.userID).Msg("error sending panel")
		return
	}
	s.panelID = msg.ID
}

func (h *SignupBotHandler) alreadyJoined(ctx context.Context, userID int64) bool {
	if h.profiles == nil {
		return false
	}
	_, found, err := h.profiles.FindProfile(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("error looking up profile")
		return false
	}
	return found
}

func (h *SignupBotHandler) discard(ctx context.Context, userID int64) {
	h.live.drop(userID)
	if err := h.sessions.Delete(ctx, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("error deleting session")
	}
}

func (h *SignupBotHandler) send(ctx context.Context, chatID int64, text string) {
	_, err := h.msgr.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("error sending message")
	}
}

func (h *SignupBotHandler) answer(ctx context.Context, callbackID, text string) {
	_, err := h.msgr.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("error answering callback")
	}
}
