package avatar

import "regexp"

var (
	devanagariRe = regexp.MustCompile(`[\x{0900}-\x{097F}]`)
	gujaratiRe   = regexp.MustCompile(`[\x{0A80}-\x{0AFF}]`)

	// Romanized Hindi function words. Several of these collide with English
	// fragments ("me", "ho", "par"), so a single hit is not enough: at least
	// two distinct patterns must match before text is tagged Hindi.
	romanHindiRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmujhe\b`), regexp.MustCompile(`(?i)\bkuchh?\b`),
		regexp.MustCompile(`(?i)\bkaisa\b`), regexp.MustCompile(`(?i)\bhai\b`),
		regexp.MustCompile(`(?i)\bho\b`), regexp.MustCompile(`(?i)\brah[aei]\b`),
		regexp.MustCompile(`(?i)\bkar[oen]\b`), regexp.MustCompile(`(?i)\bki[ya]?\b`),
		regexp.MustCompile(`(?i)\bka\b`), regexp.MustCompile(`(?i)\bke\b`),
		regexp.MustCompile(`(?i)\bko\b`), regexp.MustCompile(`(?i)\bse\b`),
		regexp.MustCompile(`(?i)\bme\b`), regexp.MustCompile(`(?i)\bpar\b`),
		regexp.MustCompile(`(?i)\bhain\b`), regexp.MustCompile(`(?i)\bhum\b`),
		regexp.MustCompile(`(?i)\btum\b`), regexp.MustCompile(`(?i)\byeh\b`),
		regexp.MustCompile(`(?i)\bwoh\b`), regexp.MustCompile(`(?i)\bkaha[nt]?\b`),
		regexp.MustCompile(`(?i)\bkya\b`), regexp.MustCompile(`(?i)\bkyon\b`),
		regexp.MustCompile(`(?i)\bkab\b`), regexp.MustCompile(`(?i)\bkaise\b`),
		regexp.MustCompile(`(?i)\bkitn[aei]\b`), regexp.MustCompile(`(?i)\bchahiy[ae]\b`),
		regexp.MustCompile(`(?i)\bdijiy[ae]\b`), regexp.MustCompile(`(?i)\bbata[no]\b`),
		regexp.MustCompile(`(?i)\bsamajh[no]\b`), regexp.MustCompile(`(?i)\bnahi\b`),
		regexp.MustCompile(`(?i)\bnhi\b`), regexp.MustCompile(`(?i)\bmat\b`),
		regexp.MustCompile(`(?i)\bhog[aei]\b`), regexp.MustCompile(`(?i)\bth[ai]\b`),
	}
)

// DetectLanguage picks the speech synthesis language for text: "hi" when it
// carries Devanagari or Gujarati script, or at least two distinct romanized
// Hindi function words; otherwise "en".
func DetectLanguage(text string) string {
	if devanagariRe.MatchString(text) || gujaratiRe.MatchString(text) {
		return "hi"
	}
	matches := 0
	for _, re := range romanHindiRes {
		if re.MatchString(text) {
			matches++
			if matches >= 2 {
				return "hi"
			}
		}
	}
	return "en"
}
