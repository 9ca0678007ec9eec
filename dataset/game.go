// Package dataset loads the lichess games dataset into typed game
// records. The column layout follows the Kaggle chess games export
// (datasnaek/chess) but is treated as configuration, not a fixed
// contract: see Schema.
package dataset

import "math"

// Game outcome labels as they appear in the winner column.
const (
	WinnerWhite = "white"
	WinnerBlack = "black"
	WinnerDraw  = "draw"
)

// Victory status values as they appear in the victory_status column.
const (
	VictoryMate      = "mate"
	VictoryResign    = "resign"
	VictoryOutOfTime = "outoftime"
	VictoryDraw      = "draw"
)

// GameRecord is one historical chess game. Records are immutable once
// loaded; missing numeric fields are NaN, missing strings are empty.
type GameRecord struct {
	ID            string
	Rated         bool
	CreatedAt     float64
	LastMoveAt    float64
	Turns         float64
	VictoryStatus string
	Winner        string
	IncrementCode string
	WhiteID       string
	WhiteRating   float64
	BlackID       string
	BlackRating   float64
	Moves         string
	OpeningEco    string
	OpeningName   string
	OpeningPly    float64
}

// RatingDiff returns the white rating minus the black rating, or NaN
// when either rating is missing.
func (g *GameRecord) RatingDiff() float64 {
	if math.IsNaN(g.WhiteRating) || math.IsNaN(g.BlackRating) {
		return math.NaN()
	}
	return g.WhiteRating - g.BlackRating
}

// HasMissing reports whether any of the given required fields is
// missing from the record.
func (g *GameRecord) HasMissing(required []string) bool {
	for _, col := range required {
		switch col {
		case ColRated:
			// booleans parse strictly; a record that survived the
			// loader always carries one
		case ColTurns:
			if math.IsNaN(g.Turns) {
				return true
			}
		case ColVictoryStatus:
			if g.VictoryStatus == "" {
				return true
			}
		case ColWinner:
			if g.Winner == "" {
				return true
			}
		case ColWhiteRating:
			if math.IsNaN(g.WhiteRating) {
				return true
			}
		case ColBlackRating:
			if math.IsNaN(g.BlackRating) {
				return true
			}
		case ColOpeningEco:
			if g.OpeningEco == "" {
				return true
			}
		case ColOpeningName:
			if g.OpeningName == "" {
				return true
			}
		case ColOpeningPly:
			if math.IsNaN(g.OpeningPly) {
				return true
			}
		case ColMoves:
			if g.Moves == "" {
				return true
			}
		}
	}
	return false
}
