package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerKind discriminates the scalar variants an answer may hold.
type AnswerKind int

const (
	AnswerString AnswerKind = iota
	AnswerNumber
	AnswerBool
)

// AnswerValue is a single survey answer: a string, a number, or a boolean.
// Nested objects and arrays are rejected at decode time.
type AnswerValue struct {
	kind AnswerKind
	str  string
	num  float64
	b    bool
}

func StringAnswer(s string) AnswerValue {
	return AnswerValue{kind: AnswerString, str: s}
}

func NumberAnswer(f float64) AnswerValue {
	return AnswerValue{kind: AnswerNumber, num: f}
}

func BoolAnswer(b bool) AnswerValue {
	return AnswerValue{kind: AnswerBool, b: b}
}

func (v AnswerValue) Kind() AnswerKind {
	return v.kind
}

func (v AnswerValue) String() string {
	switch v.kind {
	case AnswerString:
		return v.str
	case AnswerNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return strconv.FormatBool(v.b)
	}
}

// Numeric returns the answer as a float64 when it carries a numeric value.
// Numeric strings are parsed; booleans and non-finite values are excluded.
func (v AnswerValue) Numeric() (float64, bool) {
	switch v.kind {
	case AnswerNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return 0, false
		}
		return v.num, true
	case AnswerString:
		trimmed := strings.TrimSpace(v.str)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AnswerString:
		return json.Marshal(v.str)
	case AnswerNumber:
		return json.Marshal(v.num)
	default:
		return json.Marshal(v.b)
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case string:
		*v = StringAnswer(typed)
	case bool:
		*v = BoolAnswer(typed)
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric answer %q: %w", typed.String(), err)
		}
		*v = NumberAnswer(f)
	case nil:
		return fmt.Errorf("answer must be a string, number, or boolean; got null")
	default:
		return fmt.Errorf("answer must be a string, number, or boolean; got %T", raw)
	}
	return nil
}

// AnswerMap maps question keys to scalar answers. It persists as a JSON
// document column.
type AnswerMap map[string]AnswerValue

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (m *AnswerMap) Scan(value any) error {
	if value == nil {
		*m = AnswerMap{}
		return nil
	}
	var raw []byte
	switch typed := value.(type) {
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("unsupported answers column type %T", value)
	}
	if len(raw) == 0 {
		*m = AnswerMap{}
		return nil
	}
	return json.Unmarshal(raw, m)
}
