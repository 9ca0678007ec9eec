package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
	"github.com/ceschini/lichess-win-prediction/pkg/log"
)

// Load reads game records from a local file path or an http(s) URL.
// It returns a DataUnavailableError when the source cannot be read and
// a SchemaError when the content does not match the schema.
func Load(ctx context.Context, source string, schema Schema) ([]GameRecord, error) {
	reader, err := open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	records, err := Read(reader, source, schema)
	if err != nil {
		return nil, err
	}

	slog.Info("loaded dataset",
		log.StageKey, log.StageLoad,
		log.SourceKey, source,
		log.SamplesKey, len(records))
	return records, nil
}

func open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, errors.NewDataUnavailableError(source, "invalid URL", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, errors.NewDataUnavailableError(source, "request failed", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.NewDataUnavailableError(source, "unexpected status "+resp.Status, nil)
		}
		return resp.Body, nil
	}

	file, err := os.Open(source)
	if err != nil {
		return nil, errors.NewDataUnavailableError(source, "open failed", err)
	}
	return file, nil
}

// Read parses CSV content against the schema. The source argument is
// used only for error reporting.
func Read(r io.Reader, source string, schema Schema) ([]GameRecord, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewDataUnavailableError(source, "empty file", nil)
	}
	if err != nil {
		return nil, errors.NewDataUnavailableError(source, "reading header failed", err)
	}

	idx, err := columnIndex(header, source, schema)
	if err != nil {
		return nil, err
	}

	var records []GameRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewSchemaError(source, "", line, err.Error())
		}

		record, err := parseRow(row, idx, source, line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, errors.NewDataUnavailableError(source, "no game records", nil)
	}
	return records, nil
}

// columnIndex maps canonical columns to positions in the header row.
// Every mapped schema column must be present.
func columnIndex(header []string, source string, schema Schema) (map[string]int, error) {
	position := make(map[string]int, len(header))
	for i, name := range header {
		position[strings.TrimSpace(name)] = i
	}

	idx := make(map[string]int, len(schema.Columns))
	for col := range schema.Columns {
		h := schema.header(col)
		pos, ok := position[h]
		if !ok {
			return nil, errors.NewSchemaError(source, h, 0, "missing column")
		}
		idx[col] = pos
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int, source string, line int) (GameRecord, error) {
	p := rowParser{row: row, idx: idx, source: source, line: line}

	record := GameRecord{
		ID:            p.str(ColID),
		Rated:         p.boolean(ColRated),
		CreatedAt:     p.number(ColCreatedAt),
		LastMoveAt:    p.number(ColLastMoveAt),
		Turns:         p.number(ColTurns),
		VictoryStatus: p.str(ColVictoryStatus),
		Winner:        p.str(ColWinner),
		IncrementCode: p.str(ColIncrementCode),
		WhiteID:       p.str(ColWhiteID),
		WhiteRating:   p.number(ColWhiteRating),
		BlackID:       p.str(ColBlackID),
		BlackRating:   p.number(ColBlackRating),
		Moves:         p.str(ColMoves),
		OpeningEco:    p.str(ColOpeningEco),
		OpeningName:   p.str(ColOpeningName),
		OpeningPly:    p.number(ColOpeningPly),
	}
	return record, p.err
}

// rowParser accumulates the first parse error while extracting fields.
type rowParser struct {
	row    []string
	idx    map[string]int
	source string
	line   int
	err    error
}

func (p *rowParser) field(col string) (string, bool) {
	pos, ok := p.idx[col]
	if !ok || pos >= len(p.row) {
		return "", false
	}
	return strings.TrimSpace(p.row[pos]), true
}

func (p *rowParser) str(col string) string {
	v, _ := p.field(col)
	return v
}

// number parses a float field. An empty field is missing (NaN); a
// non-numeric field is a schema violation.
func (p *rowParser) number(col string) float64 {
	v, ok := p.field(col)
	if !ok || v == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if p.err == nil {
			p.err = errors.NewSchemaError(p.source, col, p.line, "not a number: "+v)
		}
		return math.NaN()
	}
	return f
}

func (p *rowParser) boolean(col string) bool {
	v, ok := p.field(col)
	if !ok || v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "true", "t", "1":
		return true
	case "false", "f", "0":
		return false
	default:
		if p.err == nil {
			p.err = errors.NewSchemaError(p.source, col, p.line, "not a boolean: "+v)
		}
		return false
	}
}
