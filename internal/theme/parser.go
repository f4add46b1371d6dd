package theme

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"reflect"
	"strings"

	"github.com/example/swimlens/internal/tools"
)

// Parse reads a theme definition. Each line is "Key: colour", where Key is a
// Theme field name and colour is anything tools.ParseColor accepts. Fields
// that are not set keep the default theme's value.
func Parse(r io.Reader) (*Theme, error) {
	t := Default()
	t.Name = ""
	val := reflect.ValueOf(t).Elem()
	rgba := reflect.TypeOf(color.RGBA{})

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected Key: value", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "Name" {
			t.Name = value
			continue
		}
		field := val.FieldByName(key)
		if !field.IsValid() || field.Type() != rgba {
			// Unknown keys are skipped so newer theme files still load.
			continue
		}
		col, err := tools.ParseColor(value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
		field.Set(reflect.ValueOf(col))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// String writes t in the format Parse reads.
func (t *Theme) String() string {
	var sb strings.Builder
	val := reflect.ValueOf(t).Elem()
	typ := val.Type()
	fmt.Fprintf(&sb, "Name: %s\n", t.Name)
	for i := range typ.NumField() {
		c, ok := val.Field(i).Interface().(color.RGBA)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", typ.Field(i).Name, tools.HexColor(c))
	}
	return sb.String()
}
