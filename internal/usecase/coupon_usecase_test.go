package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func activeCoupon() model.Coupon {
	now := time.Now()
	return model.Coupon{
		ID:                7,
		Code:              "SAVE20",
		DiscountType:      model.DiscountTypePercentage,
		DiscountValue:     dec("20"),
		MinPurchaseAmount: dec("50.00"),
		UsageLimitPerUser: 1,
		IsActive:          true,
		ValidFrom:         now.Add(-time.Hour),
		ValidUntil:        now.Add(time.Hour),
	}
}

func TestCouponUsecase_Validate_Success(t *testing.T) {
	ctx := context.Background()
	couponRepo := new(CouponRepoMock)
	uc := usecase.NewCouponUsecase(couponRepo)

	couponRepo.On("FindByCode", mock.Anything, "SAVE20").Return(activeCoupon(), nil)
	couponRepo.On("CountUsagesByUser", mock.Anything, int64(7), int64(1)).Return(int64(0), nil)

	out, err := uc.Validate(ctx, usecase.ValidateCouponInput{
		Code:       "save20",
		OrderTotal: dec("100.00"),
		UserID:     1,
	})

	assert.NoError(t, err)
	assert.True(t, out.Valid)
	assert.True(t, out.DiscountAmount.Equal(dec("20.00")))
	assert.True(t, out.FinalTotal.Equal(dec("80.00")))
}

// 存在しないコードはvalid=falseで返す（エラーにはしない）
func TestCouponUsecase_Validate_UnknownCode(t *testing.T) {
	ctx := context.Background()
	couponRepo := new(CouponRepoMock)
	uc := usecase.NewCouponUsecase(couponRepo)

	couponRepo.On("FindByCode", mock.Anything, "NOPE").Return(model.Coupon{}, repo.ErrNotFound)

	out, err := uc.Validate(ctx, usecase.ValidateCouponInput{Code: "NOPE", OrderTotal: dec("100.00")})

	assert.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, "invalid coupon code", out.Message)
}

func TestCouponUsecase_Validate_BelowMinPurchase(t *testing.T) {
	ctx := context.Background()
	couponRepo := new(CouponRepoMock)
	uc := usecase.NewCouponUsecase(couponRepo)

	couponRepo.On("FindByCode", mock.Anything, "SAVE20").Return(activeCoupon(), nil)

	out, err := uc.Validate(ctx, usecase.ValidateCouponInput{
		Code:       "SAVE20",
		OrderTotal: dec("30.00"),
		UserID:     1,
	})

	assert.NoError(t, err)
	assert.False(t, out.Valid)
	assertErrContainsStr(t, out.Message, "minimum purchase")
}

func TestCouponUsecase_Validate_PerUserLimitReached(t *testing.T) {
	ctx := context.Background()
	couponRepo := new(CouponRepoMock)
	uc := usecase.NewCouponUsecase(couponRepo)

	couponRepo.On("FindByCode", mock.Anything, "SAVE20").Return(activeCoupon(), nil)
	couponRepo.On("CountUsagesByUser", mock.Anything, int64(7), int64(1)).Return(int64(1), nil)

	out, err := uc.Validate(ctx, usecase.ValidateCouponInput{
		Code:       "SAVE20",
		OrderTotal: dec("100.00"),
		UserID:     1,
	})

	assert.NoError(t, err)
	assert.False(t, out.Valid)
	assertErrContainsStr(t, out.Message, "limit reached for user")
}

func TestCouponUsecase_AdminCreate_InvalidDiscountType(t *testing.T) {
	ctx := context.Background()
	couponRepo := new(CouponRepoMock)
	uc := usecase.NewCouponUsecase(couponRepo)

	now := time.Now()
	_, err := uc.AdminCreate(ctx, 9, usecase.AdminCreateCouponInput{
		Code:              "X",
		DiscountType:      "bogus",
		DiscountValue:     dec("10"),
		UsageLimitPerUser: 1,
		ValidFrom:         now,
		ValidUntil:        now.Add(time.Hour),
	})

	assertErrContains(t, err, "invalid discount_type")
	couponRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCouponUsecase_AdminCreate_PercentOver100(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewCouponUsecase(new(CouponRepoMock))

	now := time.Now()
	_, err := uc.AdminCreate(ctx, 9, usecase.AdminCreateCouponInput{
		Code:              "X",
		DiscountType:      string(model.DiscountTypePercentage),
		DiscountValue:     dec("150"),
		UsageLimitPerUser: 1,
		ValidFrom:         now,
		ValidUntil:        now.Add(time.Hour),
	})

	assertErrContains(t, err, "percentage must be <= 100")
}

func assertErrContainsStr(t *testing.T, got string, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("expected message containing %q, got %q", want, got)
	}
}
