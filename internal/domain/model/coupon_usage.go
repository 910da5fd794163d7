package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// クーポン利用履歴。追記のみで更新・削除しない。
// ユーザーごとの利用回数制限はこのテーブルのカウントで判定する。
type CouponUsage struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID       int64           `gorm:"not null;index" json:"coupon_id"`
	UserID         int64           `gorm:"not null;index" json:"user_id"`
	OrderID        int64           `gorm:"not null;index" json:"order_id"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"discount_amount"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
