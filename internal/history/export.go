package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotArray is returned by Import when the top-level JSON value is not an array.
var ErrNotArray = errors.New("import data must be a JSON array")

// csvHeader is the fixed header row of CSV exports.
const csvHeader = "テキスト,日時,タイムスタンプ"

// Renderer converts the entry list to an export format.
type Renderer interface {
	Render(entries []Entry) ([]byte, error)
	Extension() string
}

// Parser converts import data to an entry list.
type Parser interface {
	Parse(data []byte) ([]Entry, error)
}

// RendererFor returns the Renderer for format.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONRenderer{}, nil
	case "csv":
		return &CSVRenderer{}, nil
	case "txt", "text":
		return &TextRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ParserFor returns the Parser for format. Only JSON can be imported.
func ParserFor(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return &JSONParser{validate: validator.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported import format: %s", format)
	}
}

// JSONRenderer produces a 2-space indented array.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

func (r *JSONRenderer) Extension() string { return ".json" }

// CSVRenderer produces the header row and one fully quoted row per entry.
type CSVRenderer struct{}

func (r *CSVRenderer) Render(entries []Entry) ([]byte, error) {
	rows := make([]string, 0, len(entries)+1)
	rows = append(rows, csvHeader)
	for _, e := range entries {
		rows = append(rows, quote(e.Text)+","+quote(e.Date)+","+quote(strconv.FormatInt(e.Timestamp, 10)))
	}
	return []byte(strings.Join(rows, "\n")), nil
}

func (r *CSVRenderer) Extension() string { return ".csv" }

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// TextRenderer produces one "date: text" line per entry.
type TextRenderer struct{}

func (r *TextRenderer) Render(entries []Entry) ([]byte, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Date+": "+e.Text)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func (r *TextRenderer) Extension() string { return ".txt" }

// JSONParser reads an array of entries.
type JSONParser struct {
	validate *validator.Validate
}

func (p *JSONParser) Parse(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}
	var entries []Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("parsing import data: %w", err)
	}
	for i := range entries {
		if err := p.validate.Struct(entries[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
