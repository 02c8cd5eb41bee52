package core

import (
	"sort"
	"sync"

	"timhal/protocol"
	"timhal/tinycompress"
)

// Constant is a firmware value published to the host, e.g. SYSTEM_CORE_CLOCK.
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps symbolic names to the integers used on the wire. Values
// are indexed by wire value; empty strings leave a gap.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary renders the data dictionary the host downloads with identify.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
	cachedCount   int // registry size the cache was built from
	compressed    []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "timhal-" + protocol.Version,
		buildVersions: "go-tinygo",
	}
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant publishes a constant in the global dictionary.
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration publishes an enumeration in the global dictionary.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
	d.compressed = nil
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// keep our own copy, the caller may reuse its slice
	v := make([]string, len(values))
	copy(v, values)
	d.enumerations[name] = &Enumeration{Name: name, Values: v}
	d.cached = nil
	d.compressed = nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
	d.compressed = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
	d.compressed = nil
}

// Generate returns the dictionary JSON. The result is cached until a
// constant, enumeration, version or command is added.
func (d *Dictionary) Generate() []byte {
	// Fetch commands before taking our own lock so the registry lock is never
	// acquired while holding the dictionary lock.
	entries := d.commandReg.Entries()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil || d.cachedCount != len(entries) {
		d.cached = d.buildJSON(entries)
		d.cachedCount = len(entries)
		d.compressed = nil
	}
	return d.cached
}

// buildJSON renders the dictionary by hand; encoding/json relies on
// reflection that is costly on the MCU. Caller holds d.mu.
func (d *Dictionary) buildJSON(entries []Command) []byte {
	b := make([]byte, 0, 2048)
	b = append(b, `{"version":`...)
	b = appendJSONString(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendJSONString(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendJSONString(b, name)
		b = append(b, ':')
		b = appendJSONValue(b, d.constants[name].Value)
	}

	b = append(b, `},"commands":{`...)
	b = appendEntries(b, entries, true)
	b = append(b, `},"responses":{`...)
	b = appendEntries(b, entries, false)
	b = append(b, '}')

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		names = names[:0]
		for name := range d.enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendJSONString(b, name)
			b = append(b, ":{"...)
			first := true
			for v, s := range d.enumerations[name].Values {
				if s == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				b = appendJSONString(b, s)
				b = append(b, ':')
				b = append(b, itoa(v)...)
				first = false
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

// appendEntries writes "name format":id pairs for commands (handler set) or
// responses (no handler).
func appendEntries(b []byte, entries []Command, commands bool) []byte {
	first := true
	for _, c := range entries {
		if (c.Handler != nil) != commands {
			continue
		}
		if !first {
			b = append(b, ',')
		}
		msg := c.Name
		if c.Format != "" {
			msg += " " + c.Format
		}
		b = appendJSONString(b, msg)
		b = append(b, ':')
		b = append(b, utoa(uint32(c.ID))...)
		first = false
	}
	return b
}

func appendJSONString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	return append(b, '"')
}

func appendJSONValue(b []byte, v interface{}) []byte {
	if s, ok := v.(string); ok {
		return appendJSONString(b, s)
	}
	return append(b, valueToString(v)...)
}

// Compressed returns the zlib stream identify serves. Hosts inflate it
// before parsing.
func (d *Dictionary) Compressed() []byte {
	d.Generate()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compressed == nil {
		d.compressed = tinycompress.Store(nil, d.cached)
	}
	return d.compressed
}

// GetChunk returns a copy of up to count bytes of the compressed dictionary
// starting at offset. An offset past the end yields an empty chunk, which
// tells the host the transfer is complete.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Compressed()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
