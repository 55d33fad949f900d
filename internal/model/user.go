package model

// ── 角色与审核状态 ──

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

const (
	DoctorStatusPending  = "pending"
	DoctorStatusApproved = "approved"
	DoctorStatusRejected = "rejected"
)

// ValidRole 判断角色取值是否合法
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User 用户档案表 — 对应 users（ActorProfile）
// Status 仅对 doctor 有意义，其余角色为 NULL
type User struct {
	UserID         string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Email          string  `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	Name           string  `gorm:"type:varchar(100);not null;default:''"          json:"name"`
	PasswordHash   string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role           string  `gorm:"type:varchar(20);not null;default:'patient'"    json:"role"`
	Status         *string `gorm:"type:varchar(20)"                               json:"status,omitempty"`
	DepartmentID   *string `gorm:"type:uuid"                                      json:"department_id,omitempty"`
	Specialization string  `gorm:"type:varchar(100);not null;default:''"          json:"specialization,omitempty"`
	Age            *int    `gorm:"type:smallint"                                  json:"age,omitempty"`
	Insurance      string  `gorm:"type:varchar(100);not null;default:''"          json:"insurance,omitempty"`
	AvatarURL      string  `gorm:"type:varchar(500);not null;default:''"          json:"avatar_url,omitempty"`
	SoftDeleteModel

	// 关联
	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// EffectiveStatus 返回有效审核状态：患者与管理员视为已通过
func (u *User) EffectiveStatus() string {
	if u.Role != RoleDoctor {
		return DoctorStatusApproved
	}
	if u.Status == nil {
		return DoctorStatusPending
	}
	return *u.Status
}

// IsApprovedDoctor 是否为已审核通过的医生
func (u *User) IsApprovedDoctor() bool {
	return u.Role == RoleDoctor && u.EffectiveStatus() == DoctorStatusApproved
}
