package repository_test

import (
	"context"
	"testing"

	infra "app/internal/infra/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// sqlmockを挟んだgorm。発行されるSQLそのものを検証する
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		t.Fatalf("gorm.Open failed: %v", err)
	}
	return gdb, mock
}

// 在庫チェックと減算が1文のUPDATEで出ること（別文に分かれたら売り越しうる）
func TestInventoryGorm_DecreaseStockIfEnough_SingleStatementGuard(t *testing.T) {
	gdb, mock := newMockDB(t)
	r := infra.NewInventoryGormRepository(gdb)

	mock.ExpectExec(`UPDATE "products" SET .*stock.* WHERE id = \$\d+ AND stock >= \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := r.DecreaseStockIfEnough(context.Background(), 5, 3)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ガードに弾かれた（更新0行）ときはfalse。エラーにはしない
func TestInventoryGorm_DecreaseStockIfEnough_InsufficientIsNotError(t *testing.T) {
	gdb, mock := newMockDB(t)
	r := infra.NewInventoryGormRepository(gdb)

	mock.ExpectExec(`UPDATE "products" SET .*stock.* WHERE id = \$\d+ AND stock >= \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.DecreaseStockIfEnough(context.Background(), 5, 999)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 全体上限の判定と加算も1文。上限なし（NULL）も同じ文で通す
func TestCouponGorm_TakeUsageSlot_SingleStatementGuard(t *testing.T) {
	gdb, mock := newMockDB(t)
	r := infra.NewCouponGormRepository(gdb)

	mock.ExpectExec(`UPDATE "coupons" SET .*times_used.* WHERE id = \$\d+ AND \(usage_limit IS NULL OR times_used < usage_limit\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := r.TakeUsageSlot(context.Background(), 7)

	assert.NoError(t, err)
	assert.True(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 最後の枠が埋まっていたら0行更新でfalse
func TestCouponGorm_TakeUsageSlot_ExhaustedIsNotError(t *testing.T) {
	gdb, mock := newMockDB(t)
	r := infra.NewCouponGormRepository(gdb)

	mock.ExpectExec(`UPDATE "coupons" SET .*times_used.* WHERE id = \$\d+ AND \(usage_limit IS NULL OR times_used < usage_limit\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	got, err := r.TakeUsageSlot(context.Background(), 7)

	assert.NoError(t, err)
	assert.False(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
