package enums

import "fmt"

// TournamentMode is the game mode a tournament is played in.
type TournamentMode string

const (
	TournamentModeMultiplayer  TournamentMode = "MJ"
	TournamentModeBattleRoyale TournamentMode = "BR"
)

var validTournamentModes = []TournamentMode{
	TournamentModeMultiplayer,
	TournamentModeBattleRoyale,
}

// String implements fmt.Stringer.
func (t TournamentMode) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TournamentMode.
func (t TournamentMode) IsValid() bool {
	for _, candidate := range validTournamentModes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTournamentMode converts raw input into a TournamentMode.
func ParseTournamentMode(value string) (TournamentMode, error) {
	for _, candidate := range validTournamentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tournament mode %q", value)
}
