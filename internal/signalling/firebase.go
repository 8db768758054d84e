package signalling

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/pkg/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAnswerTimeout   = errors.New("timeout waiting for answer")
)

const codeLength = 8

// Session is the rendezvous record stored under sessions/<code>.
// Only vanilla ICE is supported: offer and answer carry every candidate.
type Session struct {
	ID     string `json:"sessionId"`
	Offer  string `json:"offer"`
	Answer string `json:"answer"`
}

// FirebaseClient stores sessions in the Firebase Realtime Database
type FirebaseClient struct {
	ref          *db.Ref
	logger       *zap.Logger
	pollInterval time.Duration
	attempts     int
}

// NewFirebaseClient connects to the database configured in cfg
func NewFirebaseClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirebaseClient, error) {
	opt := option.WithCredentialsFile(cfg.Firebase.CredentialsPath)

	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL: cfg.Firebase.DatabaseURL,
		ProjectID:   cfg.Firebase.ProjectID,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseClient{
		ref:          client.NewRef("sessions"),
		logger:       logging.OrNop(logger).Named("firebase"),
		pollInterval: cfg.Transfer.AnswerPollInterval,
		attempts:     cfg.Transfer.AnswerAttempts,
	}, nil
}

// CreateSession stores offer under a fresh code and returns the code
func (f *FirebaseClient) CreateSession(ctx context.Context, offer string) (string, error) {
	code, err := utils.GenerateCode(codeLength)
	if err != nil {
		return "", fmt.Errorf("error generating session code: %w", err)
	}

	err = f.ref.Child(code).Set(ctx, Session{ID: code, Offer: offer})
	if err != nil {
		return "", fmt.Errorf("error creating session: %w", err)
	}

	f.logger.Info("session created", zap.String("code", code))
	return code, nil
}

// GetOffer returns the offer stored for code
func (f *FirebaseClient) GetOffer(ctx context.Context, code string) (string, error) {
	session, err := f.get(ctx, code)
	if err != nil {
		return "", err
	}
	if session.Offer == "" {
		return "", fmt.Errorf("%w: %s has no offer", ErrSessionNotFound, code)
	}
	return session.Offer, nil
}

// UpdateAnswer stores the answer for an existing session
func (f *FirebaseClient) UpdateAnswer(ctx context.Context, code, answer string) error {
	if _, err := f.get(ctx, code); err != nil {
		return err
	}
	if err := f.ref.Child(code).Update(ctx, map[string]any{"answer": answer}); err != nil {
		return fmt.Errorf("error updating answer for session %s: %w", code, err)
	}
	return nil
}

// WaitForAnswer polls the session until the answer appears. The session is
// deleted if no answer arrives within the configured attempts.
func (f *FirebaseClient) WaitForAnswer(ctx context.Context, code string) (string, error) {
	if _, err := f.get(ctx, code); err != nil {
		return "", err
	}

	f.logger.Info("waiting for peer to answer", zap.String("code", code))
	answer, err := pollAnswer(ctx, f.pollInterval, f.attempts, func(ctx context.Context) (string, error) {
		session, err := f.get(ctx, code)
		if err != nil {
			return "", err
		}
		return session.Answer, nil
	}, f.logger)
	if errors.Is(err, ErrAnswerTimeout) {
		if delErr := f.DeleteSession(ctx, code); delErr != nil {
			f.logger.Warn("failed to delete expired session", zap.String("code", code), zap.Error(delErr))
		}
	}
	return answer, err
}

// DeleteSession removes the session. A missing session is not an error.
func (f *FirebaseClient) DeleteSession(ctx context.Context, code string) error {
	if _, err := f.get(ctx, code); errors.Is(err, ErrSessionNotFound) {
		f.logger.Debug("session already gone", zap.String("code", code))
		return nil
	}
	if err := f.ref.Child(code).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting session %s: %w", code, err)
	}
	return nil
}

func (f *FirebaseClient) get(ctx context.Context, code string) (Session, error) {
	var session Session
	if err := f.ref.Child(code).Get(ctx, &session); err != nil {
		return session, fmt.Errorf("error fetching session %s: %w", code, err)
	}
	if session.ID == "" {
		return session, fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return session, nil
}

// pollAnswer calls fetch up to attempts times, interval apart, until it
// returns a non-empty answer. Fetch errors are logged and retried.
func pollAnswer(ctx context.Context, interval time.Duration, attempts int, fetch func(context.Context) (string, error), logger *zap.Logger) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}

	for i := range attempts {
		answer, err := fetch(ctx)
		switch {
		case err != nil:
			logger.Warn("failed to poll for answer", zap.Int("attempt", i+1), zap.Error(err))
		case answer != "":
			return answer, nil
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrAnswerTimeout, attempts)
}
