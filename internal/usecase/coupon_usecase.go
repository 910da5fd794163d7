package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// CouponUsecase はクーポンの事前チェックと管理者CRUDを担当します。
// ここでのValidateはあくまで見積もり。確定は注文トランザクションの中で行う。
type CouponUsecase struct {
	couponRepo repo.CouponRepository
}

func NewCouponUsecase(couponRepo repo.CouponRepository) *CouponUsecase {
	return &CouponUsecase{couponRepo: couponRepo}
}

type ValidateCouponInput struct {
	Code       string
	OrderTotal decimal.Decimal
	UserID     int64
}

type ValidateCouponOutput struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
	Message        string          `json:"message,omitempty"`
}

// Validate は「今このカート金額でこのコードを使ったらいくら引かれるか」を返します。
// 枠は取らない（取り置きなし）。
func (u *CouponUsecase) Validate(ctx context.Context, in ValidateCouponInput) (ValidateCouponOutput, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return ValidateCouponOutput{}, NewHTTPError(http.StatusBadRequest, "code required")
	}
	if in.OrderTotal.IsNegative() {
		return ValidateCouponOutput{}, NewHTTPError(http.StatusBadRequest, "order_total must be >= 0")
	}

	c, err := u.couponRepo.FindByCode(ctx, code)
	if err == repo.ErrNotFound {
		return ValidateCouponOutput{Valid: false, Code: code, Message: "invalid coupon code"}, nil
	}
	if err != nil {
		return ValidateCouponOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if ok, reason := c.IsValid(time.Now()); !ok {
		return ValidateCouponOutput{Valid: false, Code: code, Message: reason}, nil
	}
	if in.OrderTotal.LessThan(c.MinPurchaseAmount) {
		return ValidateCouponOutput{
			Valid:   false,
			Code:    code,
			Message: fmt.Sprintf("minimum purchase amount is %s", c.MinPurchaseAmount.StringFixed(2)),
		}, nil
	}

	//ユーザーごとの上限もここで弾く
	if in.UserID > 0 {
		used, err := u.couponRepo.CountUsagesByUser(ctx, c.ID, in.UserID)
		if err != nil {
			return ValidateCouponOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if used >= c.UsageLimitPerUser {
			return ValidateCouponOutput{Valid: false, Code: code, Message: "coupon usage limit reached for user"}, nil
		}
	}

	discount := c.CalculateDiscount(in.OrderTotal)
	return ValidateCouponOutput{
		Valid:          true,
		Code:           code,
		DiscountAmount: discount,
		FinalTotal:     in.OrderTotal.Sub(discount),
	}, nil
}

type AdminCreateCouponInput struct {
	Code              string
	Description       string
	DiscountType      string
	DiscountValue     decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int64
	UsageLimitPerUser int64
	ValidFrom         time.Time
	ValidUntil        time.Time
}

func (u *CouponUsecase) AdminCreate(ctx context.Context, adminUserID int64, in AdminCreateCouponInput) (model.Coupon, error) {
	if adminUserID <= 0 {
		return model.Coupon{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "code required")
	}
	if len(code) > 50 {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "code too long")
	}

	dt := model.DiscountType(in.DiscountType)
	if dt != model.DiscountTypePercentage && dt != model.DiscountTypeFixed {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "invalid discount_type")
	}
	if !in.DiscountValue.IsPositive() {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "discount_value must be > 0")
	}
	if dt == model.DiscountTypePercentage && in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "percentage must be <= 100")
	}
	if in.MinPurchaseAmount.IsNegative() {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "min_purchase_amount must be >= 0")
	}
	if in.MaxDiscountAmount != nil && !in.MaxDiscountAmount.IsPositive() {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "max_discount_amount must be > 0")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "usage_limit must be >= 1")
	}
	if in.UsageLimitPerUser < 1 {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "usage_limit_per_user must be >= 1")
	}
	if !in.ValidUntil.After(in.ValidFrom) {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "valid_until must be after valid_from")
	}

	now := time.Now()
	created, err := u.couponRepo.Create(ctx, model.Coupon{
		Code:              code,
		Description:       in.Description,
		DiscountType:      dt,
		DiscountValue:     in.DiscountValue,
		MinPurchaseAmount: in.MinPurchaseAmount,
		MaxDiscountAmount: in.MaxDiscountAmount,
		UsageLimit:        in.UsageLimit,
		UsageLimitPerUser: in.UsageLimitPerUser,
		TimesUsed:         0,
		IsActive:          true,
		ValidFrom:         in.ValidFrom,
		ValidUntil:        in.ValidUntil,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		//コード重複
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "coupon code already exists")
	}
	return created, nil
}

func (u *CouponUsecase) AdminList(ctx context.Context, adminUserID int64, activeOnly bool) ([]model.Coupon, error) {
	if adminUserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	coupons, err := u.couponRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return coupons, nil
}

func (u *CouponUsecase) AdminDeactivate(ctx context.Context, adminUserID int64, couponID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if couponID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.couponRepo.Deactivate(ctx, couponID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}
