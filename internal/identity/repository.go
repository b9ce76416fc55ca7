package identity

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	var id string
	query := "INSERT INTO users (name, email, password) VALUES ($1, $2, $3) RETURNING id"

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Email, user.Password).Scan(&id)
	if err != nil {
		return nil, err
	}

	user.ID = id
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	query := "SELECT id, name, email, password FROM users WHERE email = $1"

	err := r.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	query := "SELECT id, name, email, password FROM users WHERE id = $1"

	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

// Membership is the raw role lookup result for one user: a studio role, or a
// client role pinned to one client, or neither (guest).
type Membership struct {
	Role     Role
	ClientID string
}

// GetMembership resolves the user's role the way the platform defines it:
// studio membership wins over client membership, anything else is a guest.
func (r *Repository) GetMembership(ctx context.Context, userID string) (Membership, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM studio_members WHERE user_id = $1", userID).Scan(&role)
	if err == nil {
		return Membership{Role: Role(role)}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Membership{}, err
	}

	var clientID string
	err = r.db.QueryRowContext(ctx,
		"SELECT role, client_id FROM client_users WHERE user_id = $1", userID).
		Scan(&role, &clientID)
	if err == nil {
		return Membership{Role: Role(role), ClientID: clientID}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Membership{}, err
	}

	return Membership{Role: RoleGuest}, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]User, error) {
	// We limit to 10 to keep it fast
	q := `SELECT id, name, email FROM users WHERE name ILIKE $1 LIMIT 10`
	rows, err := r.db.QueryContext(ctx, q, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
