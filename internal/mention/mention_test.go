package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Set
	}{
		{
			name: "user and project",
			text: "hello @John check &Project1",
			want: Set{Users: []string{"John"}, Projects: []string{"Project1"}},
		},
		{
			name: "numbered milestone and task",
			text: "#Milestone 1 done, $Task1 too",
			want: Set{Milestones: []string{"Milestone 1"}, Tasks: []string{"Task1"}},
		},
		{
			name: "trailing sigil matches nothing",
			text: "trailing @",
			want: Set{},
		},
		{
			name: "adjacent sigils yield two mentions",
			text: "@A@B",
			want: Set{Users: []string{"A", "B"}},
		},
		{
			name: "sigil terminates previous capture without consuming",
			text: "@alice&website",
			want: Set{Users: []string{"alice"}, Projects: []string{"website"}},
		},
		{
			name: "duplicates preserved in order",
			text: "@bob ping @bob again",
			want: Set{Users: []string{"bob", "bob"}},
		},
		{
			name: "digit run extends the capture",
			text: "shipping &Sprint 12 today",
			want: Set{Projects: []string{"Sprint 12"}},
		},
		{
			name: "prose after a mention is not swallowed",
			text: "@John check the deck",
			want: Set{Users: []string{"John"}},
		},
		{
			name: "all four kinds",
			text: "@ana review &Rebrand 2 for #Launch before $QA 1",
			want: Set{
				Users:      []string{"ana"},
				Projects:   []string{"Rebrand 2"},
				Milestones: []string{"Launch"},
				Tasks:      []string{"QA 1"},
			},
		},
		{
			name: "no mentions",
			text: "just a plain message",
			want: Set{},
		},
		{
			name: "empty input",
			text: "",
			want: Set{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			assert.Equal(t, tt.want.Users, got.Users)
			assert.Equal(t, tt.want.Projects, got.Projects)
			assert.Equal(t, tt.want.Milestones, got.Milestones)
			assert.Equal(t, tt.want.Tasks, got.Tasks)
		})
	}
}

func TestSetEmpty(t *testing.T) {
	assert.True(t, Parse("nothing here").Empty())
	assert.False(t, Parse("cc @dana").Empty())
	assert.True(t, Parse("trailing @").Empty())
}
