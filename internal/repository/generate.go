package repository

import (
	"fmt"
	"os"
	"time"

	"gorm.io/gen"

	"KikenQR/internal/model"
	"KikenQR/pkg/errors"
	"KikenQR/storage/database"
)

// ========== Operation 相关查询接口 ==========

// OperationQuerier 运营活动查询接口
type OperationQuerier interface {
	// GetByToken 根据二维码 token 查询运营活动
	//
	// SELECT * FROM @@table WHERE token = @token LIMIT 1
	GetByToken(token string) (*gen.T, error)
}

// ========== FieldDefinition 相关查询接口 ==========

// FieldDefinitionQuerier 字段定义查询接口
type FieldDefinitionQuerier interface {
	// ListByOperation 按展示顺序列出运营活动的字段
	//
	// SELECT * FROM @@table WHERE operation_id = @operationID ORDER BY position ASC, id ASC
	ListByOperation(operationID int64) ([]*gen.T, error)

	// CountUnique 统计唯一字段数量（完整性检查）
	//
	// SELECT COUNT(*) FROM @@table WHERE operation_id = @operationID AND is_unique = true
	CountUnique(operationID int64) (int64, error)
}

// ========== ClockInEmployee 相关查询接口 ==========

// ClockInEmployeeQuerier 打卡人查询接口
type ClockInEmployeeQuerier interface {
	// FindByIdentifier 根据唯一字段取值查找打卡人
	//
	// SELECT * FROM @@table
	// WHERE operation_id = @operationID
	//   AND identifier = @identifier
	// LIMIT 1
	FindByIdentifier(operationID int64, identifier string) (*gen.T, error)
}

// ========== FieldValue 相关查询接口 ==========

// FieldValueQuerier 字段取值查询接口
type FieldValueQuerier interface {
	// ListOrphans 列出未挂到打卡人或打卡记录上的字段取值（写入中途失败留下的）
	//
	// SELECT * FROM @@table
	// WHERE clock_in_employee_id IS NULL
	//   AND clock_in_id IS NULL
	//   AND created_at < @before
	ListOrphans(before time.Time) ([]*gen.T, error)
}

// ========== ClockIn 相关查询接口 ==========

// ClockInQuerier 打卡记录查询接口
type ClockInQuerier interface {
	// CountByOperationBetween 统计运营活动在时间区间内的打卡次数
	//
	// SELECT COUNT(*) FROM @@table
	// WHERE operation_id = @operationID
	//   AND start >= @from
	//   AND start < @to
	CountByOperationBetween(operationID int64, from, to time.Time) (int64, error)

	// ListBySubject 列出打卡人的打卡记录，最新的在前
	//
	// SELECT * FROM @@table
	// WHERE clock_in_employee_id = @subjectID
	// ORDER BY start DESC
	// {{if limit > 0}}
	// LIMIT @limit
	// {{end}}
	ListBySubject(subjectID int64, limit int) ([]*gen.T, error)
}

func Generate() error {
	if err := database.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 运行数据库迁移（确保表存在）
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migration: %w", err)
	}

	db := database.DB()
	if db == nil {
		return errors.ErrDatabaseConnectionNil
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           "./internal/repository/query",
		ModelPkgPath:      "KikenQR/internal/model",
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    false,
		FieldSignable:     false,
		FieldWithIndexTag: false,
		FieldWithTypeTag:  true,
	})

	g.UseDB(db)

	g.ApplyBasic(
		&model.Operation{},
		&model.FieldDefinition{},
		&model.ClockInEmployee{},
		&model.FieldValue{},
		&model.ClockIn{},
	)

	g.ApplyInterface(func(OperationQuerier) {}, &model.Operation{})
	g.ApplyInterface(func(FieldDefinitionQuerier) {}, &model.FieldDefinition{})
	g.ApplyInterface(func(ClockInEmployeeQuerier) {}, &model.ClockInEmployee{})
	g.ApplyInterface(func(FieldValueQuerier) {}, &model.FieldValue{})
	g.ApplyInterface(func(ClockInQuerier) {}, &model.ClockIn{})

	g.Execute()

	return nil
}

func RunGenerate() {
	if err := Generate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate code: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Code generation completed successfully!")
}
