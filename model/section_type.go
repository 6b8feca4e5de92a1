package model

import (
	"fmt"
	"strings"
)

// SectionType is the closed set of résumé section kinds.
type SectionType string

const (
	SectionContact        SectionType = "contact"
	SectionSummary        SectionType = "summary"
	SectionExperience     SectionType = "experience"
	SectionEducation      SectionType = "education"
	SectionSkills         SectionType = "skills"
	SectionProjects       SectionType = "projects"
	SectionCertifications SectionType = "certifications"
	SectionAwards         SectionType = "awards"
	SectionLanguages      SectionType = "languages"
	SectionOther          SectionType = "other"
)

// SectionTypes lists every type in declaration order.
var SectionTypes = []SectionType{
	SectionContact, SectionSummary, SectionExperience, SectionEducation, SectionSkills,
	SectionProjects, SectionCertifications, SectionAwards, SectionLanguages, SectionOther,
}

func (t SectionType) Valid() bool {
	for _, v := range SectionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseSectionType accepts any case.
func ParseSectionType(s string) (SectionType, error) {
	t := SectionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown section type %q", s)
	}
	return t, nil
}
