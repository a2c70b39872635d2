package service

import (
	"errors"
	"time"

	"cashflow/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeriesStore 系列存储接口
// 变更引擎与余额预测器只依赖此接口。拆分之类的多步写操作必须通过 Transaction
// 在单个事务内完成：要么全部生效，要么全部回滚，中途崩溃不会留下半成品状态。
// 两个并发的 future 作用域操作命中同一系列时，靠事务内的 GetSeriesForUpdate
// 锁定行串行化：后者阻塞到前者提交，然后基于截断后的排期重新校验。
type SeriesStore interface {
	GetSeries(seriesID, userID uint) (*models.EntrySeries, error)
	GetSeriesForUpdate(seriesID, userID uint) (*models.EntrySeries, error)
	ListSeriesByUser(userID uint) ([]models.EntrySeries, error)
	ListOverrides(seriesID uint) ([]models.OccurrenceOverride, error)
	InsertSeries(series *models.EntrySeries) error
	UpdateSeries(seriesID uint, fields map[string]interface{}) error
	DeleteSeries(seriesID uint) error
	UpsertOverride(ov *models.OccurrenceOverride) error
	DeleteOverride(seriesID uint, date time.Time) error
	DeleteOverridesFrom(seriesID uint, date time.Time) error
	MoveOverridesFrom(seriesID, newSeriesID uint, date time.Time) error
	GetStartingBalance(userID uint) (*models.StartingBalance, error)
	UpsertStartingBalance(balance *models.StartingBalance) error
	Transaction(fn func(tx SeriesStore) error) error
}

// GormSeriesStore 基于 gorm 的系列存储实现
type GormSeriesStore struct {
	db *gorm.DB
}

// NewSeriesStore 创建系列存储
func NewSeriesStore(db *gorm.DB) *GormSeriesStore {
	return &GormSeriesStore{db: db}
}

// GetSeries 按 ID 和归属用户查询系列
func (s *GormSeriesStore) GetSeries(seriesID, userID uint) (*models.EntrySeries, error) {
	var series models.EntrySeries
	err := retryRead("查询系列", func() error {
		return s.db.Where("id = ? AND user_id = ?", seriesID, userID).First(&series).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "系列", ID: seriesID}
	}
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// GetSeriesForUpdate 按 ID 和归属用户查询系列并加行锁（SELECT ... FOR UPDATE）
// 只应在 Transaction 内调用，用于 future 作用域的读改写。
func (s *GormSeriesStore) GetSeriesForUpdate(seriesID, userID uint) (*models.EntrySeries, error) {
	var series models.EntrySeries
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", seriesID, userID).First(&series).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "系列", ID: seriesID}
	}
	if err != nil {
		return nil, wrapStore("锁定系列", err)
	}
	return &series, nil
}

// ListSeriesByUser 查询用户的全部系列
func (s *GormSeriesStore) ListSeriesByUser(userID uint) ([]models.EntrySeries, error) {
	var list []models.EntrySeries
	err := retryRead("查询系列列表", func() error {
		return s.db.Where("user_id = ?", userID).Order("start_date ASC, id ASC").Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListOverrides 查询系列的全部例外记录
func (s *GormSeriesStore) ListOverrides(seriesID uint) ([]models.OccurrenceOverride, error) {
	var list []models.OccurrenceOverride
	err := retryRead("查询例外列表", func() error {
		return s.db.Where("series_id = ?", seriesID).Order("occurrence_date ASC").Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// InsertSeries 插入系列
func (s *GormSeriesStore) InsertSeries(series *models.EntrySeries) error {
	return wrapStore("创建系列", s.db.Create(series).Error)
}

// UpdateSeries 按字段更新系列
func (s *GormSeriesStore) UpdateSeries(seriesID uint, fields map[string]interface{}) error {
	return wrapStore("更新系列",
		s.db.Model(&models.EntrySeries{}).Where("id = ?", seriesID).Updates(fields).Error)
}

// DeleteSeries 删除系列并级联删除其全部例外
func (s *GormSeriesStore) DeleteSeries(seriesID uint) error {
	return s.Transaction(func(tx SeriesStore) error {
		g := tx.(*GormSeriesStore)
		if err := g.db.Where("series_id = ?", seriesID).
			Delete(&models.OccurrenceOverride{}).Error; err != nil {
			return wrapStore("删除系列例外", err)
		}
		return wrapStore("删除系列",
			g.db.Where("id = ?", seriesID).Delete(&models.EntrySeries{}).Error)
	})
}

// UpsertOverride 插入或替换例外，(series_id, occurrence_date) 至多一条
func (s *GormSeriesStore) UpsertOverride(ov *models.OccurrenceOverride) error {
	var existing models.OccurrenceOverride
	err := s.db.Where("series_id = ? AND occurrence_date = ?", ov.SeriesID, ov.OccurrenceDate).
		First(&existing).Error
	if err == nil {
		ov.ID = existing.ID
		ov.CreatedAt = existing.CreatedAt
		return wrapStore("更新例外", s.db.Save(ov).Error)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStore("查询例外", err)
	}
	return wrapStore("创建例外", s.db.Create(ov).Error)
}

// DeleteOverride 删除指定日期的例外
func (s *GormSeriesStore) DeleteOverride(seriesID uint, date time.Time) error {
	return wrapStore("删除例外",
		s.db.Where("series_id = ? AND occurrence_date = ?", seriesID, date).
			Delete(&models.OccurrenceOverride{}).Error)
}

// DeleteOverridesFrom 删除 date 当天及之后的全部例外
func (s *GormSeriesStore) DeleteOverridesFrom(seriesID uint, date time.Time) error {
	return wrapStore("删除例外",
		s.db.Where("series_id = ? AND occurrence_date >= ?", seriesID, date).
			Delete(&models.OccurrenceOverride{}).Error)
}

// MoveOverridesFrom 把 date 当天及之后的例外改挂到新系列
func (s *GormSeriesStore) MoveOverridesFrom(seriesID, newSeriesID uint, date time.Time) error {
	return wrapStore("迁移例外",
		s.db.Model(&models.OccurrenceOverride{}).
			Where("series_id = ? AND occurrence_date >= ?", seriesID, date).
			Update("series_id", newSeriesID).Error)
}

// GetStartingBalance 查询用户的起始余额
func (s *GormSeriesStore) GetStartingBalance(userID uint) (*models.StartingBalance, error) {
	var balance models.StartingBalance
	err := retryRead("查询起始余额", func() error {
		return s.db.Where("user_id = ?", userID).First(&balance).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "起始余额", ID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// UpsertStartingBalance 插入或替换用户的起始余额，每个用户只保留一条
func (s *GormSeriesStore) UpsertStartingBalance(balance *models.StartingBalance) error {
	var existing models.StartingBalance
	err := s.db.Where("user_id = ?", balance.UserID).First(&existing).Error
	if err == nil {
		balance.ID = existing.ID
		balance.CreatedAt = existing.CreatedAt
		return wrapStore("更新起始余额", s.db.Save(balance).Error)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStore("查询起始余额", err)
	}
	return wrapStore("创建起始余额", s.db.Create(balance).Error)
}

// Transaction 在单个数据库事务内执行 fn
func (s *GormSeriesStore) Transaction(fn func(tx SeriesStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormSeriesStore{db: tx})
	})
}
