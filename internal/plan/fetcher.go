package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kanux/internal/backend"
	"github.com/hitoshi/kanux/internal/model"
)

// PlanAPI はプラン取得に必要なバックエンドAPIの部分集合。
type PlanAPI interface {
	GetPlan(ctx context.Context, token string, userType model.UserType) (*backend.PlanResponse, error)
}

// FetchRecorder はプラン取得結果のメトリクス記録先。
type FetchRecorder interface {
	RecordPlanFetch(success bool)
}

// BackendFetcher はバックエンドAPIからプランを取得するFetcherの実装。
type BackendFetcher struct {
	api      PlanAPI
	logger   *slog.Logger
	recorder FetchRecorder
}

// NewBackendFetcher はBackendFetcherを生成する。recorderはnilでもよい。
func NewBackendFetcher(api PlanAPI, logger *slog.Logger, recorder FetchRecorder) *BackendFetcher {
	return &BackendFetcher{api: api, logger: logger, recorder: recorder}
}

// FetchPlan はプランを取得し、機能フラグを閉じた集合に変換する。
func (f *BackendFetcher) FetchPlan(ctx context.Context, token string, userType model.UserType) (*Plan, error) {
	resp, err := f.api.GetPlan(ctx, token, userType)
	if f.recorder != nil {
		f.recorder.RecordPlanFetch(err == nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s plan: %w", userType, err)
	}

	return &Plan{
		ID:       resp.Plan.ID,
		Name:     resp.Plan.Name,
		UserType: userType,
		Features: ParseFeatures(userType, resp.Features, f.logger),
	}, nil
}

var _ Fetcher = (*BackendFetcher)(nil)
