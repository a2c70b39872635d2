package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 引擎错误分类：
//   - ValidationError   输入不合法（日期格式、金额精度/符号、未知频率等），不重试
//   - NotFoundError     系列/起始余额不存在或不属于调用者
//   - InvalidScopeError 目标日期不是系列的真实发生日，或作用域取值不被识别
//   - PreconditionError 前置条件不满足（如预测时尚无起始余额）
//   - StoreError        底层存储故障，幂等读操作有限次重试，写事务整体回滚后由调用方重试
// 所有错误都携带足够的上下文供 API 层还原请求现场。

// ValidationError 输入校验错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("字段 %s 校验失败: %s", e.Field, e.Reason)
}

// NotFoundError 资源不存在（或不属于调用者）
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: id=%d", e.Resource, e.ID)
}

// InvalidScopeError 作用域错误
// 目标日期不落在系列排期上时，Start/End 给出解析后的排期边界。
type InvalidScopeError struct {
	Scope  string
	Date   time.Time
	Start  time.Time
	End    *time.Time
	Reason string
}

func (e *InvalidScopeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("作用域无效: %s", e.Reason)
	}
	boundary := fmt.Sprintf("排期自 %s 起", e.Start.Format("2006-01-02"))
	if e.End != nil {
		boundary += fmt.Sprintf("，至 %s 止", e.End.Format("2006-01-02"))
	}
	return fmt.Sprintf("日期 %s 不是该系列的发生日（%s）", e.Date.Format("2006-01-02"), boundary)
}

// PreconditionError 前置条件不满足
// ValidFrom 非空时给出合法的起始日期，便于提示调用者有效范围。
type PreconditionError struct {
	Reason    string
	ValidFrom *time.Time
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// StoreError 存储故障
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("存储操作失败 [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapStore 包装底层存储错误，nil 原样返回
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// 幂等读操作的重试参数
const (
	storeReadRetries = 3
	storeReadBackoff = 50 * time.Millisecond
)

// retryRead 对幂等读操作做有限次重试
// 记录不存在不是瞬时故障，立即返回；其余错误按线性退避重试。
func retryRead(op string, fn func() error) error {
	var err error
	for i := 0; i < storeReadRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		time.Sleep(time.Duration(i+1) * storeReadBackoff)
	}
	return &StoreError{Op: op, Err: err}
}
