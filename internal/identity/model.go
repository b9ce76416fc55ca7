package identity

// Role is the resolved role claim for an authenticated user. Studio roles
// carry cross-client visibility; client roles are confined to one client.
type Role string

const (
	RoleStudioAdmin  Role = "studio_admin"
	RoleStudioMember Role = "studio_member"
	RoleClientAdmin  Role = "client_admin"
	RoleClientMember Role = "client_member"
	RoleGuest        Role = "guest"
)

// IsStudio reports whether the role is an agency-side role.
func (r Role) IsStudio() bool {
	return r == RoleStudioAdmin || r == RoleStudioMember
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// bcrypt hash, never serialized
	Password string `json:"-"`
}

// Identity is the read-only principal the chat core consumes. ClientID is
// empty for studio members and guests.
type Identity struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	ClientID       string `json:"client_id,omitempty"`
	IsStudioMember bool   `json:"is_studio_member"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
}
