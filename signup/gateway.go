package signup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"HealthBot/flow"
	"HealthBot/model"
	"HealthBot/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MsgSaveFailed    = flow.DefaultSubmissionError
	MsgAccountFailed = "We could not create your account. Please try again."
)

// ProfileStore persists finished profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p model.Profile) (string, error)
}

// AccountCreator is implemented by stores that also own user accounts. It
// returns the existing account when the phone number is already registered.
type AccountCreator interface {
	EnsureAccount(ctx context.Context, phoneNumber string) (string, error)
}

// Gateway checks the whole draft again before anything is written: the step
// checks ran on the client side of the conversation and are not trusted here.
type Gateway struct {
	schemas *validation.Schemas
	store   ProfileStore
	log     zerolog.Logger
	now     func() time.Time
}

func NewGateway(schemas *validation.Schemas, store ProfileStore, log zerolog.Logger) (*Gateway, error) {
	if schemas == nil {
		return nil, errors.New("signup gateway: schemas are required")
	}
	if store == nil {
		return nil, errors.New("signup gateway: profile store is required")
	}
	return &Gateway{schemas: schemas, store: store, log: log, now: time.Now}, nil
}

// WithClock overrides the time provider (used in tests).
func (g *Gateway) WithClock(now func() time.Time) {
	g.now = now
}

// For binds the gateway to the Telegram user the profile belongs to.
func (g *Gateway) For(telegramID int64) flow.Gateway {
	return flow.GatewayFunc(func(ctx context.Context, d model.Draft) flow.Result {
		return g.Submit(ctx, telegramID, d)
	})
}

func (g *Gateway) Submit(ctx context.Context, telegramID int64, d model.Draft) flow.Result {
	log := g.log.With().Int64("user_id", telegramID).Logger()
	if d == nil {
		log.Error().Msg("submit called without a draft")
		return flow.Result{Error: MsgSaveFailed}
	}

	schema, err := g.schemas.For(d.Variant())
	if err != nil {
		log.Error().Err(err).Msg("no schema for draft")
		return flow.Result{Error: MsgSaveFailed}
	}
	if errs := schema.Validate(d); len(errs) > 0 {
		log.Warn().Interface("errors", errs).Msg("draft rejected at submission")
		return flow.Result{Error: errs.First(schema.Fields())}
	}

	profile, err := g.BuildProfile(telegramID, d)
	if err != nil {
		log.Error().Err(err).Msg("could not build profile")
		return flow.Result{Error: MsgSaveFailed}
	}

	if creator, ok := g.store.(AccountCreator); ok && profile.PhoneNumber != "" {
		accountID, err := creator.EnsureAccount(ctx, profile.PhoneNumber)
		if err != nil {
			log.Error().Err(err).Msg("error creating account")
			return flow.Result{Error: MsgAccountFailed}
		}
		profile.AccountID = accountID
	}

	id, err := g.store.CreateProfile(ctx, profile)
	if errors.Is(err, model.ErrProfileExists) {
		log.Info().Msg("profile already stored, treating as success")
		return flow.Result{Success: true}
	}
	if err != nil {
		log.Error().Err(err).Msg("error creating profile")
		return flow.Result{Error: MsgSaveFailed}
	}

	log.Info().Str("profile_id", id).Str("variant", string(profile.Variant)).Msg("profile created")
	return flow.Result{Success: true}
}

// BuildProfile turns a valid draft into the record that gets stored.
func (g *Gateway) BuildProfile(telegramID int64, d model.Draft) (model.Profile, error) {
	now := g.now().UTC()
	p := model.Profile{
		ID:                  uuid.NewString(),
		TelegramID:          telegramID,
		Variant:             d.Variant(),
		OnboardingCompleted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	switch v := d.(type) {
	case *model.BasicDraft:
		age, err := strconv.Atoi(v.Age)
		if err != nil {
			f, ferr := strconv.ParseFloat(v.Age, 64)
			if ferr != nil {
				return model.Profile{}, fmt.Errorf("parse age: %w", err)
			}
			age = int(f)
		}
		p.City = v.City
		p.Sex = v.Sex
		p.Age = age
		p.MaritalStatus = v.MaritalStatus
		p.HasFamily = v.HasFamily != nil && *v.HasFamily
	case *model.HealthDraft:
		age, ok := v.Age(now)
		if !ok {
			return model.Profile{}, fmt.Errorf("derive age from %q", v.DOB)
		}
		p.PhoneNumber = v.PhoneNumber
		p.Sex = v.Sex
		p.City = v.City
		p.DOB = v.DOB
		p.Age = age
		p.ExistingConditions = []string{}
		for _, c := range v.Conditions {
			if c != model.ConditionNone {
				p.ExistingConditions = append(p.ExistingConditions, c)
			}
		}
	default:
		return model.Profile{}, fmt.Errorf("%w: %T", model.ErrUnknownVariant, d)
	}
	return p, nil
}
