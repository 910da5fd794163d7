package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (int64, error)
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error)
	// intent idで検索（他人の支払いは「存在しない扱い」にするためuserIDで絞る）
	FindByIntentID(ctx context.Context, userID int64, intentID string) (model.Payment, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Payment, error)

	// 失敗済み行の再利用。status/amount/methodを初期化してintentを付け直す
	ResetForRetry(ctx context.Context, p model.Payment) error

	MarkProcessing(ctx context.Context, paymentID int64, intentID string) error
	MarkFailed(ctx context.Context, paymentID int64, errorMessage string) error
	MarkCompleted(ctx context.Context, paymentID int64, transactionID string, completedAt time.Time) error
	MarkRefunded(ctx context.Context, paymentID int64) error
}
