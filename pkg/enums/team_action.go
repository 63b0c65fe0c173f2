package enums

import "fmt"

// TeamAction selects how a player enters a team tournament.
type TeamAction string

const (
	TeamActionCreate TeamAction = "create"
	TeamActionJoin   TeamAction = "join"
)

var validTeamActions = []TeamAction{
	TeamActionCreate,
	TeamActionJoin,
}

// String implements fmt.Stringer.
func (t TeamAction) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TeamAction.
func (t TeamAction) IsValid() bool {
	for _, candidate := range validTeamActions {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTeamAction converts raw input into a TeamAction.
func ParseTeamAction(value string) (TeamAction, error) {
	for _, candidate := range validTeamActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid team action %q", value)
}
