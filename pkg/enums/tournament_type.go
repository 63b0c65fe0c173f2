package enums

import "fmt"

// TournamentType is the battle royale squad format.
type TournamentType string

const (
	TournamentTypeSolo  TournamentType = "solo"
	TournamentTypeDuo   TournamentType = "duo"
	TournamentTypeSquad TournamentType = "escouade"
)

var validTournamentTypes = []TournamentType{
	TournamentTypeSolo,
	TournamentTypeDuo,
	TournamentTypeSquad,
}

// String implements fmt.Stringer.
func (t TournamentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TournamentType.
func (t TournamentType) IsValid() bool {
	for _, candidate := range validTournamentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTournamentType converts raw input into a TournamentType.
func ParseTournamentType(value string) (TournamentType, error) {
	for _, candidate := range validTournamentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tournament type %q", value)
}

// TeamSize is the number of players a battle royale format requires. Unknown
// or empty formats play solo.
func (t TournamentType) TeamSize() int {
	switch t {
	case TournamentTypeDuo:
		return 2
	case TournamentTypeSquad:
		return 4
	}
	return 1
}
