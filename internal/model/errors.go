// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, access, validation, backend, submission, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeAccessDenied        = "ACCESS_DENIED"
	ErrCodeFeatureLocked       = "FEATURE_LOCKED"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeBackendUnavailable  = "BACKEND_UNAVAILABLE"
	ErrCodePlanUnavailable     = "PLAN_UNAVAILABLE"
	ErrCodeSubmissionNotFound  = "SUBMISSION_NOT_FOUND"
	ErrCodeSubmissionExpired   = "SUBMISSION_EXPIRED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeConversationMissing = "CONVERSATION_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccessDeniedError はユーザー種別が一致しない場合のエラーを生成する。
func NewAccessDeniedError(required UserType) *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  fmt.Sprintf("このページは%sユーザー専用です。", required),
		Category: "access",
		Action:   "ご自身のダッシュボードに戻ってください。",
	}
}

// NewFeatureLockedError は現在のプランで機能が利用できない場合のエラーを生成する。
func NewFeatureLockedError(feature string) *APIError {
	return &APIError{
		Code:     ErrCodeFeatureLocked,
		Message:  fmt.Sprintf("現在のプランでは利用できない機能です: %s", feature),
		Category: "access",
		Action:   "プランをアップグレードしてください。",
	}
}

// NewValidationError はリクエスト検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewBackendUnavailableError はバックエンドAPI呼び出し失敗エラーを生成する。
// トースト通知として表示されることを想定している。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "サーバーとの通信に失敗しました。",
		Category: "backend",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPlanUnavailableError はプラン情報が取得できない場合のエラーを生成する。
func NewPlanUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodePlanUnavailable,
		Message:  "プラン情報を取得できませんでした。",
		Category: "backend",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewSubmissionNotFoundError は進行中の受験が存在しない場合のエラーを生成する。
func NewSubmissionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionNotFound,
		Message:  "進行中の受験がありません。",
		Category: "submission",
		Action:   "チャレンジを開始してください。",
	}
}

// NewSubmissionExpiredError は制限時間を過ぎた受験を提出しようとした場合のエラーを生成する。
func NewSubmissionExpiredError(challengeID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionExpired,
		Message:  fmt.Sprintf("制限時間を過ぎています: %s", challengeID),
		Category: "submission",
		Action:   "チャレンジを最初からやり直してください。",
	}
}

// NewConversationNotFoundError は会話が見つからない場合のエラーを生成する。
func NewConversationNotFoundError(conversationID string) *APIError {
	return &APIError{
		Code:     ErrCodeConversationMissing,
		Message:  fmt.Sprintf("指定された会話が見つかりません: %s", conversationID),
		Category: "validation",
		Action:   "会話一覧から選び直してください。",
	}
}
