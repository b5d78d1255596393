package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"HealthBot/model"
	"HealthBot/repo"
	"HealthBot/signup"
	"HealthBot/validation"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user int64 = 4242

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []*bot.SendMessageParams
	texts   map[int]string
	markups map[int]models.ReplyMarkup
	answers []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{texts: map[int]string{}, markups: map[int]models.ReplyMarkup{}}
}

func (f *fakeMessenger) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, p)
	f.texts[f.nextID] = p.Text
	f.markups[f.nextID] = p.ReplyMarkup
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.texts[p.MessageID]; !ok {
		return nil, errors.New("Bad Request: message to edit not found")
	}
	f.texts[p.MessageID] = p.Text
	f.markups[p.MessageID] = p.ReplyMarkup
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return true, nil
}

func (f *fakeMessenger) text(id int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[id]
}

// buttons lists the callback data of message id's inline keyboard.
func (f *fakeMessenger) buttons(id int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kb, ok := f.markups[id].(*models.InlineKeyboardMarkup)
	if !ok || kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

func (f *fakeMessenger) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

type profileStore struct {
	mu       sync.Mutex
	profiles []model.Profile
	failures int
}

func (s *profileStore) CreateProfile(_ context.Context, p model.Profile) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return "", errors.New("timeout")
	}
	s.profiles = append(s.profiles, p)
	return p.ID, nil
}

func (s *profileStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

type finder struct{ found bool }

func (f finder) FindProfile(context.Context, int64) (model.Profile, bool, error) {
	return model.Profile{}, f.found, nil
}

type advisor struct{ got model.Profile }

func (a *advisor) PreventionTips(_ context.Context, p model.Profile) (string, error) {
	a.got = p
	return "1. Drink clean water.", nil
}

type fixture struct {
	h        *SignupBotHandler
	msgr     *fakeMessenger
	sessions *repo.MemorySessionStore
	store    *profileStore
	deps     Deps
}

func newFixture(t *testing.T, variant model.Variant, tweak func(*Deps)) *fixture {
	t.Helper()
	schemas, err := validation.New(validation.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	store := &profileStore{}
	gw, err := signup.NewGateway(schemas, store, zerolog.Nop())
	require.NoError(t, err)
	gw.WithClock(func() time.Time { return fixedNow })

	sessions := repo.NewMemorySessionStore(time.Hour)
	t.Cleanup(sessions.Close)

	deps := Deps{
		Variant:  variant,
		Schemas:  schemas,
		Gateway:  gw,
		Sessions: sessions,
		Logger:   zerolog.Nop(),
	}
	if tweak != nil {
		tweak(&deps)
	}
	f := &fixture{msgr: newFakeMessenger(), sessions: sessions, store: store, deps: deps}
	f.h = f.restart(t)
	return f
}

// restart builds a second handler over the same stores, as after a redeploy.
func (f *fixture) restart(t *testing.T) *SignupBotHandler {
	t.Helper()
	h, err := NewSignupBotHandler(f.deps)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	h.Attach(f.msgr)
	return h
}

func (f *fixture) text(s string) {
	f.h.HandleUpdate(context.Background(), &models.Update{Message: &models.Message{
		Text: s,
		From: &models.User{ID: user},
		Chat: models.Chat{ID: user},
	}})
}

func (f *fixture) press(data string) {
	f.h.HandleUpdate(context.Background(), &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:      "cb",
		From:    models.User{ID: user},
		Data:    data,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: user}}},
	}})
}

func (f *fixture) stored(t *testing.T) (model.Session, error) {
	t.Helper()
	return f.sessions.Get(context.Background(), user)
}

func (f *fixture) panel(t *testing.T) int {
	t.Helper()
	s, err := f.stored(t)
	require.NoError(t, err)
	require.NotZero(t, s.PanelMessageID)
	return s.PanelMessageID
}

func TestStartDrawsFirstStep(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")

	require.Len(t, f.msgr.sent, 2)
	assert.Equal(t, msgGreeting, f.msgr.sent[0].Text)

	panel := f.panel(t)
	assert.Contains(t, f.msgr.text(panel), "Step 1 of 3")
	assert.Contains(t, f.msgr.text(panel), "Where do you live?")
	buttons := f.msgr.buttons(panel)
	assert.Contains(t, buttons, "f:city:Mbarara")
	assert.Contains(t, buttons, "nav:next")
	assert.NotContains(t, buttons, "nav:back")
}

func TestAdvanceWithoutCityShowsError(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	f.press("nav:next")

	panel := f.panel(t)
	assert.Contains(t, f.msgr.text(panel), "Please select your city or town")
	s, err := f.stored(t)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Step)
}

func completeBasic(f *fixture) {
	f.text("/start")
	f.press("f:city:Mbarara")
	f.press("nav:next")
	f.press("f:sex:female")
	f.text("32")
	f.press("f:marital_status:married")
	f.press("nav:next")
	f.press("f:has_family:true")
}

func TestBasicSignupThroughTelegram(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	completeBasic(f)

	panel := f.panel(t)
	assert.Contains(t, f.msgr.text(panel), "Step 3 of 3")
	assert.Contains(t, f.msgr.buttons(panel), "nav:finish")

	f.press("nav:finish")

	require.Equal(t, 1, f.store.count())
	p := f.store.profiles[0]
	assert.Equal(t, user, p.TelegramID)
	assert.Equal(t, "Mbarara", p.City)
	assert.Equal(t, 32, p.Age)
	assert.True(t, p.HasFamily)

	assert.Equal(t, msgWelcome, f.msgr.text(panel))
	assert.Empty(t, f.msgr.buttons(panel))
	_, err := f.stored(t)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestFailedSubmissionKeepsFinishButton(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.store.failures = 1
	completeBasic(f)
	panel := f.panel(t)

	f.press("nav:finish")
	assert.Contains(t, f.msgr.text(panel), "Something went wrong. Let's try that again.")
	assert.Contains(t, f.msgr.buttons(panel), "nav:finish")
	assert.Zero(t, f.store.count())

	f.press("nav:finish")
	assert.Equal(t, 1, f.store.count())
	assert.Equal(t, msgWelcome, f.msgr.text(panel))
}

func TestResumeAfterRestart(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	f.press("f:city:Gulu")
	f.press("nav:next")
	panel := f.panel(t)

	f.h = f.restart(t)
	f.press("f:sex:male")

	s, err := f.stored(t)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Step)
	assert.Equal(t, panel, s.PanelMessageID)
	assert.Contains(t, f.msgr.text(panel), "Step 2 of 3")
	assert.Contains(t, f.msgr.text(panel), "Sex: Male")

	d, err := s.RestoreDraft()
	require.NoError(t, err)
	assert.Equal(t, "Gulu", d.(*model.BasicDraft).City)
}

func TestStartResumesWithNewPanel(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	f.press("f:city:Lira")
	old := f.panel(t)

	f.text("/start")
	panel := f.panel(t)
	assert.NotEqual(t, old, panel)
	assert.Contains(t, f.msgr.text(panel), "City: Lira")
}

func TestSignupCommandRestarts(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	f.press("f:city:Lira")
	f.press("nav:next")

	f.text("/signup")
	s, err := f.stored(t)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Step)
	d, err := s.RestoreDraft()
	require.NoError(t, err)
	assert.Empty(t, d.(*model.BasicDraft).City)
}

func TestCancelForgetsSignup(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	f.text("/cancel")

	assert.Equal(t, msgCancelled, f.msgr.lastSent())
	_, err := f.stored(t)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	f.press("nav:next")
	assert.Equal(t, msgExpired, f.msgr.answers[len(f.msgr.answers)-1])
}

func TestTextWithoutSignup(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("hello")
	assert.Equal(t, msgNoSignup, f.msgr.lastSent())

	f.text("/unknown")
	assert.Equal(t, msgUnknown, f.msgr.lastSent())

	f.text("/help@HomattBot")
	assert.Equal(t, msgHelp, f.msgr.lastSent())
}

func TestTextOnButtonOnlyStep(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	completeBasic(f)
	f.text("yes")
	assert.Equal(t, msgUseButtons, f.msgr.lastSent())
}

func TestHealthSignupWithContactAndConditions(t *testing.T) {
	tips := &advisor{}
	f := newFixture(t, model.VariantHealth, func(d *Deps) { d.Advisor = tips })
	f.text("/start")

	_, isReply := f.msgr.sent[0].ReplyMarkup.(*models.ReplyKeyboardMarkup)
	assert.True(t, isReply)

	f.h.HandleUpdate(context.Background(), &models.Update{Message: &models.Message{
		From:    &models.User{ID: user},
		Chat:    models.Chat{ID: user},
		Contact: &models.Contact{PhoneNumber: "256772123456", UserID: user},
	}})
	panel := f.panel(t)
	assert.Contains(t, f.msgr.text(panel), "Phone: +256772123456")

	f.press("nav:next")
	f.press("f:sex:female")
	f.press("f:city:Kampala")
	f.text("20/10/1990")
	f.press("nav:next")
	assert.Contains(t, f.msgr.text(panel), "Step 3 of 3")

	f.press("t:12") // none of the above
	f.press("t:0")
	assert.Contains(t, f.msgr.text(panel), "Conditions: Diabetes")
	assert.NotContains(t, f.msgr.text(panel), model.ConditionNone)

	f.press("nav:finish")
	require.Equal(t, 1, f.store.count())
	p := f.store.profiles[0]
	assert.Equal(t, "+256772123456", p.PhoneNumber)
	assert.Equal(t, 35, p.Age)
	assert.Equal(t, []string{"Diabetes"}, p.ExistingConditions)

	assert.Equal(t, "Kampala", tips.got.City)
	assert.True(t, strings.HasPrefix(f.msgr.lastSent(), msgTipsHeader))
}

func TestForeignContactRejected(t *testing.T) {
	f := newFixture(t, model.VariantHealth, nil)
	f.text("/start")
	f.h.HandleUpdate(context.Background(), &models.Update{Message: &models.Message{
		From:    &models.User{ID: user},
		Chat:    models.Chat{ID: user},
		Contact: &models.Contact{PhoneNumber: "256700000000", UserID: user + 1},
	}})
	assert.Equal(t, msgOwnContact, f.msgr.lastSent())
}

func TestAlreadySignedUp(t *testing.T) {
	f := newFixture(t, model.VariantBasic, func(d *Deps) { d.Profiles = finder{found: true} })
	f.text("/start")

	assert.Equal(t, msgAlreadyJoined, f.msgr.lastSent())
	_, err := f.stored(t)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestEditFailureSendsNewPanel(t *testing.T) {
	f := newFixture(t, model.VariantBasic, nil)
	f.text("/start")
	old := f.panel(t)

	f.msgr.mu.Lock()
	delete(f.msgr.texts, old)
	f.msgr.mu.Unlock()

	f.press("f:city:Hoima")
	panel := f.panel(t)
	assert.NotEqual(t, old, panel)
	assert.Contains(t, f.msgr.text(panel), "City: Hoima")
}

func TestNewSignupBotHandlerValidates(t *testing.T) {
	_, err := NewSignupBotHandler(Deps{Variant: "premium"})
	assert.ErrorIs(t, err, model.ErrUnknownVariant)

	_, err = NewSignupBotHandler(Deps{Variant: model.VariantBasic})
	assert.Error(t, err)
}
