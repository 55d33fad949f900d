package model

// Department 科室表 — 对应 departments
// 名称不做唯一约束，允许重名
type Department struct {
	DepartmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"department_id"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	SoftDeleteModel
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }
