package domain

// User is the identity record returned by the API.
type User struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// Employee is the richer staff projection of a User.
type Employee struct {
	ID          string `json:"id,omitempty"`
	Designation string `json:"designation,omitempty"`
	Department  string `json:"department,omitempty"`
}

// Role is a role grant. Roles are for display; authorization uses
// permission codes only.
type Role struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}
