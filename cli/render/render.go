// Package render writes CLI results as json, table or yaml.
//
// Without --format, a terminal gets a table and anything else gets json.
// --no-color only affects tables; TUI views carry their own styling.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/modelpush/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	// Apply default format based on TTY detection
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// RenderTUI shows data in the TUI view for viewType. When the output is not
// a terminal the view is printed once instead.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}

	if f, ok := r.out.(*os.File); !ok || !isTTY(f) {
		return r.renderStatic(viewType, data)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderStatic(viewType string, data any) error {
	var view string
	if strings.HasPrefix(viewType, "inspect_") {
		view = tui.RenderInspectStatic(viewType, data)
	} else {
		view = tui.RenderStatsStatic(viewType, data)
	}
	_, err := fmt.Fprintln(r.out, view)
	return err
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// renderTable prints a slice as one row per element under a header of column
// names, and anything else as "name: value" lines.
func (r *Renderer) renderTable(data any) error {
	v := indirect(reflect.ValueOf(data))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(w, "(no results)")
			break
		}
		elem := v.Type().Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			for i := range v.Len() {
				fmt.Fprintln(w, plainCell(v.Index(i)))
			}
			break
		}
		cols := columnsOf(elem)
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.name
		}
		fmt.Fprintln(w, strings.Join(names, "\t"))
		for i := range v.Len() {
			row := indirect(v.Index(i))
			cells := make([]string, len(cols))
			for j, c := range cols {
				if row.IsValid() {
					cells[j] = c.cell(row.Field(c.index))
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	case reflect.Struct:
		for _, c := range columnsOf(v.Type()) {
			fmt.Fprintf(w, "%s:\t%s\n", c.name, c.cell(v.Field(c.index)))
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			name := fmt.Sprint(k.Interface())
			fmt.Fprintf(w, "%s:\t%s\n", name, cellFormatter(name)(v.MapIndex(k)))
		}
	default:
		fmt.Fprintln(w, plainCell(v))
	}
	return w.Flush()
}

// column is one table column taken from an exported struct field.
type column struct {
	name  string
	index int
	cell  func(reflect.Value) string
}

// columnsOf lists the exported fields of t that json would encode, named by
// their json tag.
func columnsOf(t reflect.Type) []column {
	cols := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.ToLower(f.Name)
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		cols = append(cols, column{name: name, index: i, cell: cellFormatter(name)})
	}
	return cols
}

// cellFormatter picks how a column is printed from its name. Byte counts are
// shown in binary units, durations in Go notation and non-zero status codes
// in hex, matching how the device reports them.
func cellFormatter(name string) func(reflect.Value) string {
	switch {
	case name == "status_code":
		return statusCell
	case strings.HasSuffix(name, "_bytes"), strings.Contains(name, "_bytes_"):
		return bytesCell
	case strings.HasSuffix(name, "_ms"):
		return millisCell
	default:
		return plainCell
	}
}

func statusCell(v reflect.Value) string {
	v = indirect(v)
	if !v.CanUint() || v.Uint() == 0 {
		return plainCell(v)
	}
	return fmt.Sprintf("0x%08X", v.Uint())
}

func bytesCell(v reflect.Value) string {
	n, ok := integer(indirect(v))
	if !ok {
		return plainCell(v)
	}
	return formatBytes(n)
}

func millisCell(v reflect.Value) string {
	n, ok := integer(indirect(v))
	if !ok {
		return plainCell(v)
	}
	return (time.Duration(n) * time.Millisecond).String()
}

func plainCell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// formatBytes prints n in B, KiB, MiB or GiB with one decimal above bytes.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}
	f := float64(n)
	for _, suffix := range []string{"KiB", "MiB"} {
		f /= unit
		if f < unit && f > -unit {
			return fmt.Sprintf("%.1f %s", f, suffix)
		}
	}
	return fmt.Sprintf("%.1f GiB", f/unit)
}

func integer(v reflect.Value) (int64, bool) {
	switch {
	case v.CanInt():
		return v.Int(), true
	case v.CanUint():
		return int64(v.Uint()), true
	}
	return 0, false
}

// indirect follows pointers, returning the zero Value for nil.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
