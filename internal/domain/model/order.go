package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// 注文確定後は金額と明細は不変。
// 変わるのは Status / IsPaid / PaidAt / PaymentMethod だけ。
type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	UserID      int64       `gorm:"not null;index" json:"user_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//配送先スナップショット（確定時点で固定）
	ShippingAddress    string `gorm:"type:varchar(255);not null" json:"shipping_address"`
	ShippingCity       string `gorm:"type:varchar(100);not null" json:"shipping_city"`
	ShippingState      string `gorm:"type:varchar(100);not null" json:"shipping_state"`
	ShippingCountry    string `gorm:"type:varchar(100);not null" json:"shipping_country"`
	ShippingPostalCode string `gorm:"type:varchar(20);not null" json:"shipping_postal_code"`
	PhoneNumber        string `gorm:"type:varchar(30);not null" json:"phone_number"`
	Notes              string `gorm:"type:text" json:"notes"`

	//金額内訳（total = subtotal - discount + tax + shipping_cost）
	Subtotal     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"subtotal"`
	Discount     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"discount"`
	Tax          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"tax"`
	ShippingCost decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"shipping_cost"`
	Total        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`

	IsPaid        bool       `gorm:"not null;default:false" json:"is_paid"`
	PaidAt        *time.Time `json:"paid_at"`
	PaymentMethod string     `gorm:"type:varchar(20)" json:"payment_method"`

	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// キャンセル可能か（出荷後と支払済みは不可）
func (o Order) IsCancellable() bool {
	if o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered {
		return false
	}
	if o.Status == OrderStatusCancelled {
		return false
	}
	return !o.IsPaid
}
