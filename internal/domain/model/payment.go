package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
)

// 注文と1対1。Amountは作成時点のOrder.Totalで固定する。
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64           `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status        PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`

	//外部ゲートウェイ側の識別子
	TransactionID   string `gorm:"type:varchar(200);index" json:"transaction_id"`
	PaymentIntentID string `gorm:"type:varchar(200);index" json:"payment_intent_id"`

	Currency     string         `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Metadata     datatypes.JSON `json:"metadata"`
	ErrorMessage string         `gorm:"type:text" json:"error_message"`

	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
