package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"rollcall/internal/logging"
)

// Entry is one decoded daemon log record.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	SessionID string
	Fields    map[string]string
	Raw       string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Parse decodes a JSON log line. Lines that are not JSON objects come back
// with only Raw set.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return entry
	}
	entry.Fields = make(map[string]string, len(record))
	for key, value := range record {
		text := stringify(value)
		switch key {
		case "ts", "time":
			if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
				entry.Time = ts
			}
		case "level":
			entry.Level = strings.ToLower(text)
		case "msg":
			entry.Message = text
		case logging.FieldComponent:
			entry.Component = text
		case logging.FieldSessionID:
			entry.SessionID = text
		default:
			entry.Fields[key] = text
		}
	}
	return entry
}

// Structured reports whether the line decoded as a log record.
func (e Entry) Structured() bool {
	return e.Fields != nil
}

// Filter selects entries by minimum level and component.
type Filter struct {
	Level     string
	Component string
}

// Match reports whether e passes f. Unstructured lines always pass.
func (f Filter) Match(e Entry) bool {
	if !e.Structured() {
		return true
	}
	if want := strings.ToLower(strings.TrimSpace(f.Level)); want != "" {
		min, ok := levelRank[want]
		if ok && levelRank[e.Level] < min {
			return false
		}
	}
	if comp := strings.TrimSpace(f.Component); comp != "" && !strings.EqualFold(comp, e.Component) {
		return false
	}
	return true
}

// Format renders e like the daemon's console output:
//
//	15:04:05 INFO  session [4f2c9a1b]: camera live device=/dev/video0
func (e Entry) Format() string {
	if !e.Structured() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(e.Level))
	if e.Component != "" {
		b.WriteByte(' ')
		b.WriteString(e.Component)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " [%s]", shortSession(e.SessionID))
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := e.Fields[key]
		if strings.ContainsAny(value, " \t\"") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
