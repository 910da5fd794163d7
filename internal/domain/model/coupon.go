package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// 割引クーポン。
// UsageLimit が nil のときは全体回数無制限。
type Coupon struct {
	ID                int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string           `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Description       string           `gorm:"type:text" json:"description"`
	DiscountType      DiscountType     `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue     decimal.Decimal  `gorm:"type:numeric(10,2);not null" json:"discount_value"`
	MinPurchaseAmount decimal.Decimal  `gorm:"type:numeric(10,2);not null;default:0" json:"min_purchase_amount"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:numeric(10,2)" json:"max_discount_amount"`
	UsageLimit        *int64           `json:"usage_limit"`
	UsageLimitPerUser int64            `gorm:"not null;default:1" json:"usage_limit_per_user"`
	TimesUsed         int64            `gorm:"not null;default:0" json:"times_used"`
	IsActive          bool             `gorm:"not null;default:true" json:"is_active"`
	ValidFrom         time.Time        `gorm:"not null" json:"valid_from"`
	ValidUntil        time.Time        `gorm:"not null" json:"valid_until"`
	CreatedAt         time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 今この瞬間に使えるクーポンか（理由つき）
func (c Coupon) IsValid(now time.Time) (bool, string) {
	if !c.IsActive {
		return false, "coupon is not active"
	}
	if now.Before(c.ValidFrom) {
		return false, "coupon is not yet valid"
	}
	if now.After(c.ValidUntil) {
		return false, "coupon has expired"
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return false, "coupon usage limit reached"
	}
	return true, ""
}

// 割引額を計算する。
// percentage: total×value/100（MaxDiscountAmountで頭打ち）
// fixed: value
// どちらも orderTotal を超えない（合計が負にならない）。
func (c Coupon) CalculateDiscount(orderTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	if c.DiscountType == DiscountTypePercentage {
		discount = orderTotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	} else {
		discount = c.DiscountValue
	}

	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}
	return discount.Round(2)
}
