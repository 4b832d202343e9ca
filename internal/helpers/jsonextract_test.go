package helpers

import (
	"reflect"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want map[string]interface{}
	}{
		{
			name: "tagged fence",
			in:   "pre ```json\n{\"a\":1}\n``` post",
			want: map[string]interface{}{"a": float64(1)},
		},
		{
			name: "generic fence",
			in:   "thinking...\n```\n{\"next_action\": \"finish\"}\n```",
			want: map[string]interface{}{"next_action": "finish"},
		},
		{
			name: "bare braces",
			in:   "Here is the plan: {\"intent\": \"dock\", \"steps\": []} done.",
			want: map[string]interface{}{"intent": "dock", "steps": []interface{}{}},
		},
		{
			name: "nested objects via bare braces",
			in:   `{"a": {"b": 2}} trailing prose`,
			want: map[string]interface{}{"a": map[string]interface{}{"b": float64(2)}},
		},
		{
			name: "no braces anywhere",
			in:   "I could not produce a plan.",
			want: map[string]interface{}{},
		},
		{
			name: "empty input",
			in:   "",
			want: map[string]interface{}{},
		},
		{
			name: "garbage inside fence does not fall back to braces",
			in:   "```json\nnot json at all\n``` but later {\"a\":1}",
			want: map[string]interface{}{},
		},
		{
			name: "only first fence considered",
			in:   "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```",
			want: map[string]interface{}{"a": float64(1)},
		},
		{
			name: "array payload is not a mapping",
			in:   "```json\n[1,2,3]\n```",
			want: map[string]interface{}{},
		},
		{
			name: "null payload yields empty map",
			in:   "```json\nnull\n```",
			want: map[string]interface{}{},
		},
		{
			name: "unclosed fence reads to end",
			in:   "```json\n{\"confidence\": 85}",
			want: map[string]interface{}{"confidence": float64(85)},
		},
		{
			name: "tagged fence wins over earlier generic fence",
			in:   "```\nplain\n``` then ```json\n{\"a\":1}\n```",
			want: map[string]interface{}{"a": float64(1)},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractJSON(tc.in)
			if got == nil {
				t.Fatalf("ExtractJSON(%q) returned nil map", tc.in)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractJSON(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractJSONNeverMutatesInput(t *testing.T) {
	t.Parallel()
	in := "```json\n{\"a\":1}\n```"
	first := ExtractJSON(in)
	second := ExtractJSON(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated extraction diverged: %#v vs %#v", first, second)
	}
}
