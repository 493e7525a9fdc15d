// internal/service/ledger/domain/access.go
package domain

import "github.com/pkg/errors"

// Role 是调用方的访问角色，为封闭枚举。
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole 将外部传入的字符串解析为角色
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleGuest:
		return r, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown role %q", s)
}

// Capability 是受保护操作所需的能力
type Capability uint8

const (
	CapReadOwnData Capability = 1 << iota
	CapReadCatalog
	CapPlaceOrder
	CapManageCatalog
	CapManagePayouts
	CapAssignRoles
)

var capabilityNames = map[Capability]string{
	CapReadOwnData:   "read-own-data",
	CapReadCatalog:   "read-catalog",
	CapPlaceOrder:    "place-order",
	CapManageCatalog: "manage-catalog",
	CapManagePayouts: "manage-payouts",
	CapAssignRoles:   "assign-roles",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// guest 只能浏览公开目录
var roleCapabilities = map[Role]Capability{
	RoleAdmin: CapReadOwnData | CapReadCatalog | CapPlaceOrder | CapManageCatalog | CapManagePayouts | CapAssignRoles,
	RoleUser:  CapReadOwnData | CapReadCatalog | CapPlaceOrder,
	RoleGuest: CapReadCatalog,
}

// Can 判断角色是否拥有某项能力
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r]&c == c
}

// Authorize 在角色缺少能力时返回 ErrUnauthorized
func Authorize(r Role, c Capability) error {
	if !r.Can(c) {
		return errors.Wrapf(ErrUnauthorized, "role %s lacks %s", r, c)
	}
	return nil
}
