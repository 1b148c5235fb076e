package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Storage is the persistence surface the repository works against.
type Storage interface {
	MigrateModels(models ...any) error
	Seed(ctx context.Context, records any) error
	Create(ctx context.Context, record any) error
	Save(ctx context.Context, record any) error
	GetOneBy(ctx context.Context, column string, value any, entity any) error
	GetAllBy(ctx context.Context, column string, value any, entity any) error
	Find(ctx context.Context, dest any, q Query) error
	Count(ctx context.Context, model any, q Query) (int64, error)
	DeleteWhere(ctx context.Context, model any, where string, args ...any) (int64, error)
	Transaction(ctx context.Context, fn func(tx Storage) error) error
	Ping(ctx context.Context) error
}

// Query narrows a Find or Count call. Zero fields are ignored.
type Query struct {
	Table  string
	Select string
	Joins  string
	Where  string
	Args   []any
	Order  string
	Limit  int
}

var _ Storage = (*GormDB)(nil)

type GormDB struct {
	DB *gorm.DB
}

// NewGormDB opens a GORM connection with driver errors translated, so unique
// violations surface as gorm.ErrDuplicatedKey on every dialect.
func NewGormDB(dialector gorm.Dialector, logLevel logger.LogLevel) (*GormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return &GormDB{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormDB{
		DB: db,
	}, nil
}

func (f *GormDB) MigrateModels(models ...any) error {
	err := f.DB.AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to migrate table: %w", err)
	}

	return nil
}

// Seed inserts records only when their table is still empty.
func (f *GormDB) Seed(ctx context.Context, records any) error {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("records type must be pointer to a slice: %T", records)
	}

	slice := v.Elem()
	if slice.Len() == 0 {
		return nil
	}

	elemType := slice.Index(0).Addr().Interface()
	var count int64
	if err := f.DB.WithContext(ctx).Model(elemType).Count(&count).Error; err != nil {
		return fmt.Errorf("get model count: %w", err)
	}

	if count > 0 {
		return nil
	}

	if err := f.DB.WithContext(ctx).Create(records).Error; err != nil {
		return fmt.Errorf("insert to table: %w", translate(err))
	}

	return nil
}

func (f *GormDB) Create(ctx context.Context, record any) error {
	if err := f.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert record: %w", translate(err))
	}
	return nil
}

func (f *GormDB) Save(ctx context.Context, record any) error {
	if err := f.DB.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("save record: %w", translate(err))
	}
	return nil
}

func (f *GormDB) GetOneBy(ctx context.Context, column string, value any, entity any) error {
	query := fmt.Sprintf("%s = ?", column)
	err := f.DB.WithContext(ctx).Where(query, value).First(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("getting record by %q: %w", column, err)
	}
	return nil
}

func (f *GormDB) GetAllBy(ctx context.Context, column string, value any, entity any) error {
	tx := f.DB.WithContext(ctx).Where(fmt.Sprintf("%s IN ?", column), value).Find(entity)
	if tx.Error != nil {
		return fmt.Errorf("getting records by %q: %w", column, tx.Error)
	}
	return nil
}

func (f *GormDB) Find(ctx context.Context, dest any, q Query) error {
	if err := f.scope(ctx, q).Find(dest).Error; err != nil {
		return fmt.Errorf("find records: %w", err)
	}
	return nil
}

func (f *GormDB) Count(ctx context.Context, model any, q Query) (int64, error) {
	var count int64
	if err := f.scope(ctx, q).Model(model).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// DeleteWhere removes every row of model matching the condition and reports
// how many rows went away.
func (f *GormDB) DeleteWhere(ctx context.Context, model any, where string, args ...any) (int64, error) {
	tx := f.DB.WithContext(ctx).Where(where, args...).Delete(model)
	if tx.Error != nil {
		return 0, fmt.Errorf("delete records: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// Transaction runs fn against a storage bound to one database transaction,
// committing when fn returns nil and rolling back otherwise.
func (f *GormDB) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDB{DB: tx})
	})
}

func (f *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := f.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql db conn: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (f *GormDB) Close() error {
	sqlDB, err := f.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql db conn: %w", err)
	}
	return sqlDB.Close()
}

func (f *GormDB) scope(ctx context.Context, q Query) *gorm.DB {
	tx := f.DB.WithContext(ctx)
	if q.Table != "" {
		tx = tx.Table(q.Table)
	}
	if q.Select != "" {
		tx = tx.Select(q.Select)
	}
	if q.Joins != "" {
		tx = tx.Joins(q.Joins)
	}
	if q.Where != "" {
		tx = tx.Where(q.Where, q.Args...)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	return err
}
