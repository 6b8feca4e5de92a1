package sections

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/wudi/pdfedit/model"
)

type typeRule struct {
	typ model.SectionType
	re  *regexp.Regexp
}

// Matched in order; the first hit wins.
var typeRules = []typeRule{
	{model.SectionContact, regexp.MustCompile(`(?i)^(contact|personal\s*info|info)`)},
	{model.SectionSummary, regexp.MustCompile(`(?i)^(summary|objective|profile|about\s*me|professional\s*summary|career\s*objective)`)},
	{model.SectionExperience, regexp.MustCompile(`(?i)^(experience|employment|work\s*history|professional\s*experience|work\s*experience)`)},
	{model.SectionEducation, regexp.MustCompile(`(?i)^(education|academic|qualification|degree|schooling)`)},
	{model.SectionSkills, regexp.MustCompile(`(?i)^(skills|technical\s*skills|competencies|expertise|technologies|core\s*competencies)`)},
	{model.SectionProjects, regexp.MustCompile(`(?i)^(projects|portfolio|personal\s*projects|key\s*projects)`)},
	{model.SectionCertifications, regexp.MustCompile(`(?i)^(certification|certificate|licenses?|credentials)`)},
	{model.SectionAwards, regexp.MustCompile(`(?i)^(awards?|achievements?|honors?|recognition)`)},
	{model.SectionLanguages, regexp.MustCompile(`(?i)^(languages?|language\s*skills)`)},
}

var (
	emailPattern  = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern  = regexp.MustCompile(`[0-9()+\-\s]{10,}`)
	bulletPattern = regexp.MustCompile(`^([•◦●○■▪]|[-–—*]\s|\d{1,2}[.)]\s|[a-z][.)]\s)`)
)

// minPhoneDigits keeps runs of spaces and dashes from reading as a phone
// number.
const minPhoneDigits = 7

// MatchType returns the section type whose pattern matches text, if any.
func MatchType(text string) (model.SectionType, bool) {
	text = strings.TrimSpace(text)
	for _, r := range typeRules {
		if r.re.MatchString(text) {
			return r.typ, true
		}
	}
	return model.SectionOther, false
}

// IsBullet reports whether a line starts with a list marker.
func IsBullet(text string) bool {
	return bulletPattern.MatchString(strings.TrimLeftFunc(text, unicode.IsSpace))
}

func hasContactDetails(text string) bool {
	if emailPattern.MatchString(text) {
		return true
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= minPhoneDigits {
			return true
		}
	}
	return false
}

// isUpperHeading reports whether the alphabetic text is fully uppercase and
// longer than three characters.
func isUpperHeading(text string) bool {
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 0 && len([]rune(strings.TrimSpace(text))) > 3
}

func isBoldRun(r model.TextRun) bool {
	return r.Bold() || strings.Contains(r.PDFFontName, "Bold")
}

// maxHeaderWords and maxTitleWords bound styled headers and pattern-only
// headers.
const (
	maxHeaderWords = 5
	maxTitleWords  = 4
	headerScale    = 1.1
)

// isHeader applies the header rules to a line given the page's mean run
// font size.
func isHeader(l line, meanSize float64) bool {
	words := len(strings.Fields(l.text))
	_, matches := MatchType(l.text)
	if matches && words <= maxTitleWords {
		return true
	}
	lead := l.runs[0]
	styled := lead.FontSize > headerScale*meanSize || isBoldRun(lead) || isUpperHeading(l.text)
	return styled && words <= maxHeaderWords && (matches || lead.FontSize > meanSize)
}
