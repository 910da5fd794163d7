package repository

import (
	"context"

	"app/internal/domain/model"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (model.Coupon, error)

	// クーポン行をロックして取得する。
	// 注文確定トランザクション内で使い、同一コードの同時利用を直列化する
	FindByCodeForUpdate(ctx context.Context, code string) (model.Coupon, error)

	// times_usedを全体上限の範囲内でだけ+1する（超えるなら false）。
	// チェックと加算は1文で行う
	TakeUsageSlot(ctx context.Context, couponID int64) (bool, error)

	// (coupon, user) の利用回数
	CountUsagesByUser(ctx context.Context, couponID int64, userID int64) (int64, error)

	// 利用履歴を追記
	CreateUsage(ctx context.Context, usage model.CouponUsage) error

	Create(ctx context.Context, c model.Coupon) (model.Coupon, error)
	List(ctx context.Context, activeOnly bool) ([]model.Coupon, error)
	Deactivate(ctx context.Context, couponID int64) error
}
