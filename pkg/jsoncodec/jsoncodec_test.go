package jsoncodec

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s, err := Default.Marshal(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	v, err := Default.Unmarshal(s, 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["a"] == nil {
		t.Fatalf("unexpected value: %#v", v)
	}
}

func TestUnmarshalRejectsExcessiveDepth(t *testing.T) {
	_, err := Default.Unmarshal(`{"a":{"b":{"c":1}}}`, 1)
	if err == nil {
		t.Fatalf("expected depth error")
	}
}

func TestUnmarshalAllowsShallowNesting(t *testing.T) {
	_, err := Default.Unmarshal(`{"a":{"b":1}}`, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
