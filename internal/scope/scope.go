// Package scope computes which channel an identity talks in and which
// entities it may reference there. Client-role identities are pinned to
// their own client; studio roles may select any active client.
package scope

// Channel IDs are a fixed naming contract shared with stored messages.
const (
	GeneralChannelID    = "chat:general"
	clientChannelPrefix = "chat:client-"
)

// ChannelID maps the selected client to its channel identifier.
func ChannelID(clientID string) string {
	if clientID == "" {
		return GeneralChannelID
	}
	return clientChannelPrefix + clientID
}

type ChatUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type ChatProject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ChatMilestone struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	ProjectID string `json:"project_id"`
}

type ChatTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	MilestoneID string `json:"milestone_id"`
}

type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Scope is the resolved channel plus the entity sets mentionable in it.
// Superseded wholesale on each resolution, never merged.
type Scope struct {
	ChannelID  string          `json:"channel_id"`
	ClientID   string          `json:"client_id,omitempty"`
	ClientName string          `json:"client_name,omitempty"`
	Users      []ChatUser      `json:"users"`
	Projects   []ChatProject   `json:"projects"`
	Milestones []ChatMilestone `json:"milestones"`
	Tasks      []ChatTask      `json:"tasks"`
}

// SuggestionKind tags a suggestion item with its entity kind.
type SuggestionKind string

const (
	KindUser      SuggestionKind = "user"
	KindProject   SuggestionKind = "project"
	KindMilestone SuggestionKind = "milestone"
	KindTask      SuggestionKind = "task"
)

// SuggestionItem is one resolved mention candidate.
type SuggestionItem struct {
	Kind SuggestionKind `json:"type"`
	ID   string         `json:"id"`
	Name string         `json:"name"`
}
