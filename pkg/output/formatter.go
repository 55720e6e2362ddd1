package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/schemaRegistry"
	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FormatJson  = "json"
	FormatYaml  = "yaml"
	FormatTable = "table"
)

type Formatter struct {
	format string
	pretty bool
	w      io.Writer
}

func NewFormatter(format string, pretty bool, w io.Writer) *Formatter {
	if format == "" {
		format = FormatJson
	}
	if w == nil {
		w = os.Stdout
	}
	return &Formatter{format: format, pretty: pretty, w: w}
}

// WriteAggregates writes one document per caller: newline-delimited JSON
// objects, or YAML documents separated by "---".
func (f *Formatter) WriteAggregates(aggregates []*types.CallerAggregate) error {
	switch f.format {
	case FormatJson:
		return f.writeJSONStream(len(aggregates), func(i int) interface{} { return aggregates[i] })
	case FormatYaml:
		return f.writeYAMLStream(len(aggregates), func(i int) interface{} { return aggregates[i] })
	default:
		return errors.Errorf("unsupported output format: %s", f.format)
	}
}

// MethodRow is the printable form of a registry entry.
type MethodRow struct {
	Selector  string `json:"selector" yaml:"selector"`
	Name      string `json:"name" yaml:"name"`
	Signature string `json:"signature" yaml:"signature"`
	Shape     string `json:"shape" yaml:"shape"`
}

func NewMethodRows(methods []*schemaRegistry.MethodSchema) []MethodRow {
	rows := make([]MethodRow, 0, len(methods))
	for _, m := range methods {
		rows = append(rows, MethodRow{
			Selector:  m.SelectorHex(),
			Name:      m.Name,
			Signature: m.Signature,
			Shape:     m.Shape.String(),
		})
	}
	return rows
}

func (f *Formatter) PrintMethods(methods []*schemaRegistry.MethodSchema) error {
	rows := NewMethodRows(methods)
	switch f.format {
	case FormatJson:
		return f.printJSON(rows)
	case FormatYaml:
		return f.writeYAMLStream(1, func(int) interface{} { return rows })
	case FormatTable:
		return f.printMethodsTable(rows)
	default:
		return errors.Errorf("unsupported output format: %s", f.format)
	}
}

func (f *Formatter) newJSONEncoder() *json.Encoder {
	encoder := json.NewEncoder(f.w)
	encoder.SetEscapeHTML(false)
	if f.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

func (f *Formatter) printJSON(data interface{}) error {
	return f.newJSONEncoder().Encode(data)
}

func (f *Formatter) writeJSONStream(n int, item func(i int) interface{}) error {
	encoder := f.newJSONEncoder()
	for i := 0; i < n; i++ {
		if err := encoder.Encode(item(i)); err != nil {
			return errors.Wrapf(err, "failed to write document %d", i)
		}
	}
	return nil
}

func (f *Formatter) writeYAMLStream(n int, item func(i int) interface{}) (err error) {
	encoder := yaml.NewEncoder(f.w)
	encoder.SetIndent(2)
	defer func() {
		if closeErr := encoder.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "error closing output")
		}
	}()
	for i := 0; i < n; i++ {
		if err := encoder.Encode(item(i)); err != nil {
			return errors.Wrapf(err, "failed to write document %d", i)
		}
	}
	return nil
}

func (f *Formatter) printMethodsTable(rows []MethodRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(f.w, "No methods found")
		return err
	}

	table := tablewriter.NewWriter(f.w)
	table.SetHeader([]string{"SELECTOR", "NAME", "SHAPE", "SIGNATURE"})

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetHeaderLine(true)
	table.SetBorder(true)

	for _, row := range rows {
		table.Append([]string{row.Selector, row.Name, row.Shape, row.Signature})
	}
	table.Render()
	return nil
}

// OpenOutput opens the report destination. An empty path or "-" is stdout,
// which is returned with a no-op Close.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output file")
	}
	return file, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
