// Package mention parses the chat mention grammar out of free text.
// Four sigils are a fixed user-facing contract: @user &project #milestone $task.
package mention

import (
	"regexp"
	"strings"
)

// A capture is an alphanumeric word, optionally extended by whitespace-separated
// digit runs so that numbered entity names ("Milestone 1") stay intact while
// following prose ("@John check") is never swallowed.
const namePattern = `([A-Za-z0-9]+(?:\s+[0-9]+)*)`

var (
	userRe      = regexp.MustCompile(`@` + namePattern)
	projectRe   = regexp.MustCompile(`&` + namePattern)
	milestoneRe = regexp.MustCompile(`#` + namePattern)
	taskRe      = regexp.MustCompile(`\$` + namePattern)
)

// Set holds the raw mention names found in a message, grouped by kind.
// Names are unresolved text fragments in order of appearance; duplicates are
// kept. Resolution against real entity IDs is a separate, role-aware step.
type Set struct {
	Users      []string `json:"users"`
	Projects   []string `json:"projects"`
	Milestones []string `json:"milestones"`
	Tasks      []string `json:"tasks"`
}

// Empty reports whether no mention of any kind was found.
func (s Set) Empty() bool {
	return len(s.Users) == 0 && len(s.Projects) == 0 &&
		len(s.Milestones) == 0 && len(s.Tasks) == 0
}

// Parse extracts all mentions from text. It is pure and total: malformed or
// absent mentions simply contribute nothing, a lone trailing sigil matches
// nothing, and an adjacent sigil terminates the previous capture without
// being consumed by it ("@A@B" yields two user mentions).
func Parse(text string) Set {
	return Set{
		Users:      captures(userRe, text),
		Projects:   captures(projectRe, text),
		Milestones: captures(milestoneRe, text),
		Tasks:      captures(taskRe, text),
	}
}

func captures(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}
