package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrStaleSlotState 时段状态已变化：条件更新未命中任何行
var ErrStaleSlotState = errors.New("时段状态已变化，请刷新后重试")
