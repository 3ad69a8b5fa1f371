package dashsdk

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the error body returned by the API. Older endpoints send
// "detail" instead of "error".
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// ID is an identifier the API may send as a JSON string or number.
type ID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IDFromInt formats an integer identifier.
func IDFromInt(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

// ============================================================================
// Identity Types
// ============================================================================

// UserInfo is the user record returned by login and /api/auth/me.
type UserInfo struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// EmployeeInfo is the staff projection of a user, when one exists.
type EmployeeInfo struct {
	ID          ID     `json:"id"`
	Designation string `json:"designation"`
	Department  string `json:"department"`
}

// RoleInfo is a role assigned to the user.
type RoleInfo struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ============================================================================
// Auth Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /api/auth/login.
type LoginResponse struct {
	Success  bool          `json:"success"`
	Token    string        `json:"token,omitempty"`
	User     *UserInfo     `json:"user,omitempty"`
	Employee *EmployeeInfo `json:"employee,omitempty"`
	Roles    []RoleInfo    `json:"roles,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// IdentityResponse is the body returned by GET /api/auth/me.
type IdentityResponse struct {
	Success  bool          `json:"success"`
	User     *UserInfo     `json:"user,omitempty"`
	Employee *EmployeeInfo `json:"employee,omitempty"`
	Roles    []RoleInfo    `json:"roles,omitempty"`
}

// PermissionsResponse is the body returned by GET /api/auth/permissions.
type PermissionsResponse struct {
	Success     bool     `json:"success"`
	Permissions []string `json:"permissions"`
}

// ============================================================================
// Notification Types
// ============================================================================

// NotificationRecord is a notification as stored by the API. Type is free
// form on the wire; callers fold it into their own enum.
type NotificationRecord struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"notification_type"`
	IsRead    bool      `json:"is_read"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListNotificationsResponse is the paginated body of GET /api/notifications.
type ListNotificationsResponse struct {
	Count   int                  `json:"count"`
	Results []NotificationRecord `json:"results"`
}
