package rbac

import "fmt"

// 权限常量
const (
	PermissionCreateTask   = "task:create"
	PermissionUpdateTask   = "task:update"
	PermissionReadTask     = "task:read"
	PermissionCreateTodo   = "todo:create"
	PermissionRemoveMember = "org:member:remove"
	PermissionReplayOutbox = "outbox:replay"
)

// 角色常量
const (
	RoleMember = "member"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

var memberPermissions = []string{
	PermissionCreateTask,
	PermissionUpdateTask,
	PermissionReadTask,
	PermissionCreateTodo,
}

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleMember: memberPermissions,
	RoleOwner:  append(append([]string{}, memberPermissions...), PermissionRemoveMember),
	RoleAdmin:  append(append([]string{}, memberPermissions...), PermissionRemoveMember, PermissionReplayOutbox),
}

// NormalizeRole 未知或空角色按 member 处理
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleMember
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[NormalizeRole(role)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查用户是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID int64, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       NormalizeRole(role),
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int64
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("insufficient permissions: role %s lacks %s", e.Role, e.Permission)
}
