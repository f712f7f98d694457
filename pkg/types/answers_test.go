package types

import (
	"encoding/json"
	"testing"
)

func TestAnswerMapDecodesScalars(t *testing.T) {
	raw := []byte(`{"q1": "great", "q2": 4.5, "q3": true, "q4": "7"}`)
	var m AnswerMap
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["q1"].Kind() != AnswerString {
		t.Fatalf("q1 should be a string, got %v", m["q1"].Kind())
	}
	if f, ok := m["q2"].Numeric(); !ok || f != 4.5 {
		t.Fatalf("q2 numeric = %v, %v", f, ok)
	}
	if m["q3"].Kind() != AnswerBool {
		t.Fatalf("q3 should be a bool, got %v", m["q3"].Kind())
	}
	if f, ok := m["q4"].Numeric(); !ok || f != 7 {
		t.Fatalf("numeric strings should parse; got %v, %v", f, ok)
	}
}

func TestAnswerMapRejectsNestedShapes(t *testing.T) {
	cases := []string{
		`{"q1": {"nested": 1}}`,
		`{"q1": [1, 2]}`,
		`{"q1": null}`,
	}
	for _, raw := range cases {
		var m AnswerMap
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			t.Fatalf("expected decode error for %s", raw)
		}
	}
}

func TestAnswerNumericExclusions(t *testing.T) {
	if _, ok := BoolAnswer(true).Numeric(); ok {
		t.Fatal("booleans must not count as numeric")
	}
	if _, ok := StringAnswer("").Numeric(); ok {
		t.Fatal("empty strings must not count as numeric")
	}
	if _, ok := StringAnswer("not-a-number").Numeric(); ok {
		t.Fatal("non-numeric strings must not count as numeric")
	}
}

func TestAnswerMapRoundTripsThroughSQLValue(t *testing.T) {
	m := AnswerMap{"q1": NumberAnswer(3), "q2": StringAnswer("ok")}
	val, err := m.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded AnswerMap
	if err := decoded.Scan(val); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := decoded["q1"].Numeric(); !ok || f != 3 {
		t.Fatalf("q1 numeric = %v, %v", f, ok)
	}
	if decoded["q2"].String() != "ok" {
		t.Fatalf("unexpected q2 %q", decoded["q2"].String())
	}
}
