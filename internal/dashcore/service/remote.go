package service

import (
	"context"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
)

// Credential is the outcome of a successful remote login. Profile carries the
// identity and roles; permissions are fetched separately.
type Credential struct {
	Token   string
	Profile domain.Profile
}

// AuthAPI is the remote collaborator behind the session machine.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (Credential, error)
	FetchIdentityAndRoles(ctx context.Context, token string) (domain.Profile, error)
	FetchPermissionCodes(ctx context.Context, token string) ([]string, error)
	Logout(ctx context.Context, token string) error
}

// NotificationAPI is the remote collaborator behind the synchronizer. It
// authenticates with whatever credential the session currently holds.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, includeRead bool, limit int) ([]dashsdk.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// SDKAuth adapts a dashsdk client to AuthAPI.
type SDKAuth struct {
	Client *dashsdk.SDKClient
}

var _ AuthAPI = (*SDKAuth)(nil)

// Login implements AuthAPI.
func (a *SDKAuth) Login(ctx context.Context, username, password string) (Credential, error) {
	resp, err := a.Client.Login(ctx, username, password)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Token:   resp.Token,
		Profile: profileFromSDK(resp.User, resp.Employee, resp.Roles),
	}, nil
}

// FetchIdentityAndRoles implements AuthAPI.
func (a *SDKAuth) FetchIdentityAndRoles(ctx context.Context, token string) (domain.Profile, error) {
	resp, err := a.Client.FetchIdentityAndRoles(ctx, token)
	if err != nil {
		return domain.Profile{}, err
	}
	return profileFromSDK(resp.User, resp.Employee, resp.Roles), nil
}

// FetchPermissionCodes implements AuthAPI.
func (a *SDKAuth) FetchPermissionCodes(ctx context.Context, token string) ([]string, error) {
	return a.Client.FetchPermissionCodes(ctx, token)
}

// Logout implements AuthAPI.
func (a *SDKAuth) Logout(ctx context.Context, token string) error {
	return a.Client.Logout(ctx, token)
}

func profileFromSDK(u *dashsdk.UserInfo, e *dashsdk.EmployeeInfo, roles []dashsdk.RoleInfo) domain.Profile {
	var p domain.Profile
	if u != nil {
		p.User = &domain.User{
			ID:        u.ID.String(),
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		}
	}
	if e != nil {
		p.Employee = &domain.Employee{
			ID:          e.ID.String(),
			Designation: e.Designation,
			Department:  e.Department,
		}
	}
	for _, r := range roles {
		p.Roles = append(p.Roles, domain.Role{ID: r.ID.String(), Name: r.Name})
	}
	return p
}
