package model

import "time"

type User struct {
	ID               int64
	Email            string
	Name             string
	OrganizationName *string
	ManagingOwnerID  *int64
	CreatedAt        time.Time
}

// BelongsToOrganizationOf 成员是否在 ownerID 管理的组织中
func (u *User) BelongsToOrganizationOf(ownerID int64) bool {
	return u.ManagingOwnerID != nil && *u.ManagingOwnerID == ownerID &&
		u.OrganizationName != nil && *u.OrganizationName != ""
}
