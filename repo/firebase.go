package repo

import (
	"HealthBot/model"
	"context"
	"errors"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

const profilesPath = "profiles"

// FirebaseConnector stores accounts in Firebase Auth and profiles in the
// Realtime Database, one node per Telegram user.
type FirebaseConnector struct {
	app    *firebase.App
	auth   *auth.Client
	client *db.Client
}

// NewFirebaseConnector creates a new Firebase connector
func NewFirebaseConnector(ctx context.Context, serviceAccountKeyPath string, databaseURL string) (*FirebaseConnector, error) {
	opt := option.WithCredentialsFile(serviceAccountKeyPath)

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth client: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseConnector{
		app:    app,
		auth:   authClient,
		client: client,
	}, nil
}

// EnsureAccount creates a phone-number account, or returns the one a previous
// attempt already created.
func (fc *FirebaseConnector) EnsureAccount(ctx context.Context, phoneNumber string) (string, error) {
	user, err := fc.auth.CreateUser(ctx, (&auth.UserToCreate{}).PhoneNumber(phoneNumber))
	if err == nil {
		return user.UID, nil
	}
	if !auth.IsPhoneNumberAlreadyExists(err) {
		return "", fmt.Errorf("error creating account: %w", err)
	}

	existing, err := fc.auth.GetUserByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("error looking up account: %w", err)
	}
	return existing.UID, nil
}

// CreateProfile writes the profile unless the user already has one.
func (fc *FirebaseConnector) CreateProfile(ctx context.Context, p model.Profile) (string, error) {
	ref := fc.profileRef(p.TelegramID)
	err := ref.Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var existing model.Profile
		if err := node.Unmarshal(&existing); err != nil {
			return nil, err
		}
		if existing.ID != "" {
			return nil, model.ErrProfileExists
		}
		return p, nil
	})
	if errors.Is(err, model.ErrProfileExists) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("error creating profile: %w", err)
	}
	return p.ID, nil
}

// FindProfile reads the profile of a Telegram user.
func (fc *FirebaseConnector) FindProfile(ctx context.Context, telegramID int64) (model.Profile, bool, error) {
	var p model.Profile
	if err := fc.profileRef(telegramID).Get(ctx, &p); err != nil {
		return model.Profile{}, false, fmt.Errorf("error reading profile: %w", err)
	}
	return p, p.ID != "", nil
}

func (fc *FirebaseConnector) profileRef(telegramID int64) *db.Ref {
	return fc.client.NewRef(profilesPath).Child(strconv.FormatInt(telegramID, 10))
}
