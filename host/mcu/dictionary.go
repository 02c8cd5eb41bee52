package mcu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Dictionary is the parsed identify data of an MCU.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]interface{}    `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`

	byName map[string]*MessageFormat
	byID   map[int]*MessageFormat
}

// ParamKind is how one message parameter is encoded.
type ParamKind uint8

const (
	ParamInt ParamKind = iota
	ParamBytes
)

// Param is one "name=%x" field of a message format.
type Param struct {
	Name string
	Kind ParamKind
}

// MessageFormat describes one command or response.
type MessageFormat struct {
	ID       int
	Name     string
	Params   []Param
	Response bool
}

// ParseDictionary decodes identify data. Numeric constants are kept as
// json.Number so 32-bit values survive exactly.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(d); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	d.byName = make(map[string]*MessageFormat)
	d.byID = make(map[int]*MessageFormat)
	for msg, id := range d.Commands {
		d.add(msg, id, false)
	}
	for msg, id := range d.Responses {
		d.add(msg, id, true)
	}
	return d, nil
}

func (d *Dictionary) add(msg string, id int, response bool) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return
	}
	f := &MessageFormat{ID: id, Name: fields[0], Response: response}
	for _, p := range fields[1:] {
		name, conv, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		kind := ParamInt
		if strings.HasSuffix(conv, "*s") {
			kind = ParamBytes
		}
		f.Params = append(f.Params, Param{Name: name, Kind: kind})
	}
	d.byName[f.Name] = f
	d.byID[id] = f
}

// Lookup returns the format of the command or response called name.
func (d *Dictionary) Lookup(name string) (*MessageFormat, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// LookupID returns the format with the given ID.
func (d *Dictionary) LookupID(id int) (*MessageFormat, bool) {
	f, ok := d.byID[id]
	return f, ok
}

// ConfigUint returns a numeric constant.
func (d *Dictionary) ConfigUint(name string) (uint32, error) {
	v, ok := d.Config[name]
	if !ok {
		return 0, fmt.Errorf("constant %s not in dictionary", name)
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("constant %s is not a number", name)
	}
	n, err := strconv.ParseUint(num.String(), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("constant %s: %w", name, err)
	}
	return uint32(n), nil
}

// ConfigString returns a string constant such as MCU.
func (d *Dictionary) ConfigString(name string) string {
	s, _ := d.Config[name].(string)
	return s
}

// Enum returns the value of name in enumeration enum.
func (d *Dictionary) Enum(enum, name string) (uint32, bool) {
	v, ok := d.Enumerations[enum][name]
	return uint32(v), ok
}

// WriteSummary prints the dictionary the way the console shows it.
func (d *Dictionary) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %v\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	for _, k := range sortedKeys(d.Commands) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Commands[k], k)
	}
	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	for _, k := range sortedKeys(d.Responses) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Responses[k], k)
	}

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for _, k := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %d values\n", k, len(d.Enumerations[k]))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
