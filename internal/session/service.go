package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/model"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っていることを示す。
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginRequest はログインフォームの入力。
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// Authenticator はバックエンドのログインAPI。
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResponse, error)
}

// ForcedLogoutRecorder は強制ログアウトのメトリクス記録先。
type ForcedLogoutRecorder interface {
	RecordForcedLogout()
}

// Service はログイン・ログアウトのユースケースを提供する。
type Service struct {
	auth     Authenticator
	store    *Store
	validate *validator.Validate
	logger   *slog.Logger
	recorder ForcedLogoutRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(auth Authenticator, store *Store, logger *slog.Logger, recorder ForcedLogoutRecorder) *Service {
	return &Service{
		auth:     auth,
		store:    store,
		validate: validator.New(),
		logger:   logger,
		recorder: recorder,
	}
}

// Authenticate はバックエンドでログインし、成功したらセッションを保存する。
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*model.Session, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	resp, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return s.store.Login(ctx, &model.Session{
		Token:     resp.Token,
		SessionID: resp.SessionID,
		User:      resp.User,
	})
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, id string) error {
	if err := s.store.Logout(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user logged out")
	return nil
}

// ForceLogout はバックエンドが401を返したときにセッションを破棄する。
// 削除に失敗しても呼び出し側はログイン画面へ遷移させるため、エラーはログに残すのみ。
func (s *Service) ForceLogout(ctx context.Context, id string) {
	if s.recorder != nil {
		s.recorder.RecordForcedLogout()
	}
	if err := s.store.Logout(ctx, id); err != nil {
		s.logger.Error("failed to force logout",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Warn("session revoked by backend")
}
