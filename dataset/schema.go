package dataset

// Canonical column names of the lichess games export.
const (
	ColID            = "id"
	ColRated         = "rated"
	ColCreatedAt     = "created_at"
	ColLastMoveAt    = "last_move_at"
	ColTurns         = "turns"
	ColVictoryStatus = "victory_status"
	ColWinner        = "winner"
	ColIncrementCode = "increment_code"
	ColWhiteID       = "white_id"
	ColWhiteRating   = "white_rating"
	ColBlackID       = "black_id"
	ColBlackRating   = "black_rating"
	ColMoves         = "moves"
	ColOpeningEco    = "opening_eco"
	ColOpeningName   = "opening_name"
	ColOpeningPly    = "opening_ply"
)

// Schema describes the expected dataset layout. The exact column set is
// configuration: a dataset with renamed columns can be loaded by
// remapping Columns, and Required controls which fields must be present
// for a record to survive preprocessing.
type Schema struct {
	// Columns maps canonical column names to the header names used by
	// the source file.
	Columns map[string]string `yaml:"columns"`

	// Required lists canonical columns that a usable record must carry.
	Required []string `yaml:"required"`
}

// DefaultSchema returns the schema of the Kaggle datasnaek/chess export.
func DefaultSchema() Schema {
	columns := make(map[string]string, 16)
	for _, col := range []string{
		ColID, ColRated, ColCreatedAt, ColLastMoveAt, ColTurns,
		ColVictoryStatus, ColWinner, ColIncrementCode, ColWhiteID,
		ColWhiteRating, ColBlackID, ColBlackRating, ColMoves,
		ColOpeningEco, ColOpeningName, ColOpeningPly,
	} {
		columns[col] = col
	}
	return Schema{
		Columns: columns,
		Required: []string{
			ColRated, ColTurns, ColVictoryStatus, ColWinner,
			ColWhiteRating, ColBlackRating,
		},
	}
}

// header returns the source header name for a canonical column.
func (s Schema) header(col string) string {
	if h, ok := s.Columns[col]; ok && h != "" {
		return h
	}
	return col
}
