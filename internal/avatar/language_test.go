package avatar

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"plain english", "What are the library opening hours?", "en"},
		{"devanagari", "नमस्ते, आप कैसे हैं?", "hi"},
		{"gujarati", "કેમ છો", "hi"},
		{"two romanized hindi words", "mujhe pani chahiye", "hi"},
		{"question in romanized hindi", "kya hai", "hi"},
		{"single ambiguous word stays english", "tell me about the campus", "en"},
		{"empty", "", "en"},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.text); got != tc.want {
			t.Fatalf("%s: DetectLanguage(%q) = %q, want %q", tc.name, tc.text, got, tc.want)
		}
	}
}
