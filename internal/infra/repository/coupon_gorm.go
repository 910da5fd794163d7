package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

// 行ロック付き取得。注文確定Txの中で呼ぶこと
func (r *CouponGormRepository) FindByCodeForUpdate(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&c).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

// 全体上限の範囲内でだけtimes_usedを+1する。
// チェックと加算は1文（最後の1枠を同時に取られても片方しか成功しない）
func (r *CouponGormRepository) TakeUsageSlot(ctx context.Context, couponID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR times_used < usage_limit)", couponID).
		Update("times_used", gorm.Expr("times_used + ?", 1))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

func (r *CouponGormRepository) CountUsagesByUser(ctx context.Context, couponID int64, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// 利用履歴は追記のみ
func (r *CouponGormRepository) CreateUsage(ctx context.Context, usage model.CouponUsage) error {
	if err := r.db.WithContext(ctx).Create(&usage).Error; err != nil {
		return err
	}
	return nil
}

func (r *CouponGormRepository) Create(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return model.Coupon{}, err
	}
	return c, nil
}

func (r *CouponGormRepository) List(ctx context.Context, activeOnly bool) ([]model.Coupon, error) {
	q := r.db.WithContext(ctx).Model(&model.Coupon{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var coupons []model.Coupon
	if err := q.Order("id desc").Find(&coupons).Error; err != nil {
		return []model.Coupon{}, err
	}
	return coupons, nil
}

func (r *CouponGormRepository) Deactivate(ctx context.Context, couponID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("id = ?", couponID).
		Update("is_active", false)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
