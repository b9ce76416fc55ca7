package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studio-chat/internal/identity"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListActiveClients(ctx context.Context) ([]Client, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name FROM clients WHERE is_active ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *Repository) GetClient(ctx context.Context, id string) (Client, error) {
	var c Client
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name FROM clients WHERE id = $1", id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, fmt.Errorf("client %s not found", id)
	}
	return c, err
}

// consolidatedQuery fetches every mentionable entity for one client in a
// single round trip; grouping by kind happens in Go. Studio members are
// always part of a client channel's user set.
const consolidatedQuery = `
	SELECT 'user' AS entity_type, u.id::text, u.name, u.email, cu.role, '' AS parent_id
	FROM users u JOIN client_users cu ON cu.user_id = u.id
	WHERE cu.client_id = $1
	UNION ALL
	SELECT 'user', u.id::text, u.name, u.email, sm.role, ''
	FROM users u JOIN studio_members sm ON sm.user_id = u.id
	UNION ALL
	SELECT 'project', p.id::text, p.name, '', p.status, ''
	FROM projects p WHERE p.client_id = $1
	UNION ALL
	SELECT 'milestone', m.id::text, m.title, '', m.status, m.project_id::text
	FROM milestones m JOIN projects p ON p.id = m.project_id
	WHERE p.client_id = $1
	UNION ALL
	SELECT 'task', t.id::text, t.name, '', t.status, t.milestone_id::text
	FROM tasks t
	JOIN milestones m ON m.id = t.milestone_id
	JOIN projects p ON p.id = m.project_id
	WHERE p.client_id = $1
`

// FetchEntities loads the mentionable entity sets scoped to one client.
func (r *Repository) FetchEntities(ctx context.Context, clientID string) (Scope, error) {
	var s Scope

	rows, err := r.db.QueryContext(ctx, consolidatedQuery, clientID)
	if err != nil {
		return s, fmt.Errorf("fetch scope entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, id, name, email, status, parentID string
		if err := rows.Scan(&kind, &id, &name, &email, &status, &parentID); err != nil {
			return s, err
		}
		switch kind {
		case "user":
			s.Users = append(s.Users, ChatUser{ID: id, Name: name, Email: email, Role: status})
		case "project":
			s.Projects = append(s.Projects, ChatProject{ID: id, Name: name, Status: status})
		case "milestone":
			s.Milestones = append(s.Milestones, ChatMilestone{ID: id, Title: name, Status: status, ProjectID: parentID})
		case "task":
			s.Tasks = append(s.Tasks, ChatTask{ID: id, Name: name, Status: status, MilestoneID: parentID})
		}
	}
	return s, rows.Err()
}

// Suggestions resolves mention candidates for the caller. Visibility is
// derived from the caller's identity here, never from a caller-supplied
// client ID: studio members see every client's entities, client members only
// their own, guests nothing.
func (r *Repository) Suggestions(ctx context.Context, ident identity.Identity, kind SuggestionKind, query string) ([]SuggestionItem, error) {
	if ident.Role == identity.RoleGuest {
		return nil, nil
	}

	q, args, err := suggestionQuery(ident, kind, query)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve suggestions: %w", err)
	}
	defer rows.Close()

	var items []SuggestionItem
	for rows.Next() {
		item := SuggestionItem{Kind: kind}
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func suggestionQuery(ident identity.Identity, kind SuggestionKind, query string) (string, []any, error) {
	pattern := query + "%"

	if ident.IsStudioMember {
		switch kind {
		case KindUser:
			return `SELECT id::text, name FROM users WHERE name ILIKE $1 ORDER BY name LIMIT 10`,
				[]any{pattern}, nil
		case KindProject:
			return `SELECT id::text, name FROM projects WHERE name ILIKE $1 ORDER BY name LIMIT 10`,
				[]any{pattern}, nil
		case KindMilestone:
			return `SELECT id::text, title FROM milestones WHERE title ILIKE $1 ORDER BY title LIMIT 10`,
				[]any{pattern}, nil
		case KindTask:
			return `SELECT id::text, name FROM tasks WHERE name ILIKE $1 ORDER BY name LIMIT 10`,
				[]any{pattern}, nil
		}
		return "", nil, fmt.Errorf("unknown mention kind %q", kind)
	}

	// Client member: everything joins back to the caller's own client.
	switch kind {
	case KindUser:
		return `SELECT u.id::text, u.name FROM users u
			JOIN client_users cu ON cu.user_id = u.id
			WHERE cu.client_id = $1 AND u.name ILIKE $2
			UNION
			SELECT u.id::text, u.name FROM users u
			JOIN studio_members sm ON sm.user_id = u.id
			WHERE u.name ILIKE $2
			ORDER BY name LIMIT 10`, []any{ident.ClientID, pattern}, nil
	case KindProject:
		return `SELECT id::text, name FROM projects
			WHERE client_id = $1 AND name ILIKE $2 ORDER BY name LIMIT 10`,
			[]any{ident.ClientID, pattern}, nil
	case KindMilestone:
		return `SELECT m.id::text, m.title FROM milestones m
			JOIN projects p ON p.id = m.project_id
			WHERE p.client_id = $1 AND m.title ILIKE $2 ORDER BY m.title LIMIT 10`,
			[]any{ident.ClientID, pattern}, nil
	case KindTask:
		return `SELECT t.id::text, t.name FROM tasks t
			JOIN milestones m ON m.id = t.milestone_id
			JOIN projects p ON p.id = m.project_id
			WHERE p.client_id = $1 AND t.name ILIKE $2 ORDER BY t.name LIMIT 10`,
			[]any{ident.ClientID, pattern}, nil
	}
	return "", nil, fmt.Errorf("unknown mention kind %q", kind)
}
