package avatar

import (
	"regexp"
	"strings"
)

var (
	boldRe      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe    = regexp.MustCompile(`\*([^*]+)\*`)
	underBoldRe = regexp.MustCompile(`__([^_]+)__`)
	underRe     = regexp.MustCompile(`_([^_]+)_`)
	headerRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletRe    = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	numListRe   = regexp.MustCompile(`(?m)^\d+\.\s+`)
	codeRe      = regexp.MustCompile("`([^`]+)`")
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emojiRe     = regexp.MustCompile(`[\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{1F900}-\x{1F9FF}\x{1FA70}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]`)
	rupeeNumRe  = regexp.MustCompile(`₹(\d+)`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
	spacesRe    = regexp.MustCompile(`[ \t]{2,}`)
)

// spoken expansions for abbreviations TTS mangles
var abbreviations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bGovt\.`), "Government"},
	{regexp.MustCompile(`\bHon'ble\b`), "Honourable"},
	{regexp.MustCompile(`\bMoU\b`), "M O U"},
	{regexp.MustCompile(`\bMSMEs\b`), "M S M Es"},
	{regexp.MustCompile(`\bAI\b`), "A I"},
	{regexp.MustCompile(`\bIoT\b`), "I o T"},
	{regexp.MustCompile(`\bGTM\b`), "Go To Market"},
	{regexp.MustCompile(`\bIP\b`), "Intellectual Property"},
}

// SanitizeForSpeech strips markdown, emoji and other text that sounds wrong
// when read aloud, and expands currency signs and abbreviations.
func SanitizeForSpeech(text string) string {
	cleaned := text

	cleaned = boldRe.ReplaceAllString(cleaned, "$1")
	cleaned = italicRe.ReplaceAllString(cleaned, "$1")
	cleaned = underBoldRe.ReplaceAllString(cleaned, "$1")
	cleaned = underRe.ReplaceAllString(cleaned, "$1")
	cleaned = headerRe.ReplaceAllString(cleaned, "")
	cleaned = bulletRe.ReplaceAllString(cleaned, "")
	cleaned = numListRe.ReplaceAllString(cleaned, "")
	cleaned = codeRe.ReplaceAllString(cleaned, "$1")
	cleaned = linkRe.ReplaceAllString(cleaned, "$1")

	cleaned = emojiRe.ReplaceAllString(cleaned, "")

	cleaned = rupeeNumRe.ReplaceAllString(cleaned, "$1 rupees")
	cleaned = strings.ReplaceAll(cleaned, "₹", "rupees")

	for _, a := range abbreviations {
		cleaned = a.re.ReplaceAllString(cleaned, a.repl)
	}

	cleaned = newlinesRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = spacesRe.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}
