package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kanux/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeBackendUnavailable {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeBackendUnavailable)
	}
	if body.Category != "backend" {
		t.Errorf("category = %q, want %q", body.Category, "backend")
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("message and action should not be empty: %+v", body)
	}
}

// TestWriteErrorResponse_DomainErrors はドメインごとのエラーが正しいコードとカテゴリで書き込まれることを検証する。
func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        *model.APIError
		code       string
		category   string
	}{
		{"Unauthorized", http.StatusUnauthorized, model.NewUnauthorizedError(), model.ErrCodeUnauthorized, "auth"},
		{"AccessDenied", http.StatusForbidden, model.NewAccessDeniedError(model.UserTypeCompany), model.ErrCodeAccessDenied, "access"},
		{"Validation", http.StatusBadRequest, model.NewValidationError("email"), model.ErrCodeValidation, "validation"},
		{"SubmissionNotFound", http.StatusNotFound, model.NewSubmissionNotFoundError(), model.ErrCodeSubmissionNotFound, "submission"},
		{"SubmissionExpired", http.StatusConflict, model.NewSubmissionExpiredError("ch-1"), model.ErrCodeSubmissionExpired, "submission"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.statusCode, tt.err)

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if body.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Category, tt.category)
			}
		})
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "INTERNAL_ERROR")
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want %q", body.Category, "system")
	}
}

// TestWriteLoadingResponse_IsNeutral は確認中レスポンスが許可・拒否のどちらも示さないことを検証する。
func TestWriteLoadingResponse_IsNeutral(t *testing.T) {
	w := httptest.NewRecorder()

	WriteLoadingResponse(w)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if ra := w.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("Retry-After = %q, want %q", ra, "1")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(raw) != 1 || raw["status"] != "loading" {
		t.Errorf("body = %v, want {\"status\":\"loading\"}", raw)
	}
}
