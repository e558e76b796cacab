// Package mapper converts Answer Sets to and from the nested record shape used
// for persistence.
package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// ToRecord assigns every answer to its fixed nested group. It performs no
// validation; drafts with empty answers map the same way.
func ToRecord(f types.FormData) types.Groups {
	return types.Groups{
		PersonalInfo: types.Group{
			"fullName":             f.FullName,
			"email":                f.Email,
			"countryOfCitizenship": f.CountryOfCitizenship,
			"countryOfResidence":   f.CountryOfResidence,
			"ageGroup":             f.AgeGroup,
			"maritalStatus":        f.MaritalStatus,
			"hasChildren":          f.HasChildren,
			"childrenAges":         f.ChildrenAges,
		},
		EducationInfo: types.Group{
			"highestEducation":       f.HighestEducation,
			"educationOutsideCanada": f.EducationOutsideCanada,
		},
		WorkExperience: types.Group{
			"yearsOfExperience":         f.YearsOfExperience,
			"workInRegulatedProfession": f.WorkInRegulatedProfession,
			"occupation":                f.Occupation,
		},
		LanguageSkills: types.Group{
			"speakEnglishOrFrench": f.SpeakEnglishOrFrench,
			"languageTest":         f.LanguageTest,
			"languageLevel":        f.LanguageLevel,
			"testScores":           f.TestScores,
		},
		CanadianConnections: types.Group{
			"interestedInImmigrating":      f.InterestedInImmigrating,
			"studiedOrWorkedInCanada":      f.StudiedOrWorkedInCanada,
			"jobOfferFromCanadianEmployer": f.JobOfferFromCanadianEmployer,
			"relativesInCanada":            f.RelativesInCanada,
			"settlementFunds":              f.SettlementFunds,
			"settlementFundsAmount":        f.SettlementFundsAmount,
		},
		AdditionalInfo: types.Group{
			"businessOrManagerialExperience": f.BusinessOrManagerialExperience,
			"additionalInfo":                 f.AdditionalInfo,
		},
	}
}

// FromGroups rebuilds an Answer Set from already structured groups. Absent or
// empty answers take their documented default.
func FromGroups(g types.Groups) types.FormData {
	p, e, w := g.PersonalInfo, g.EducationInfo, g.WorkExperience
	l, c, a := g.LanguageSkills, g.CanadianConnections, g.AdditionalInfo

	return types.FormData{
		FullName:             str(p, "fullName", ""),
		Email:                str(p, "email", ""),
		CountryOfCitizenship: str(p, "countryOfCitizenship", ""),
		CountryOfResidence:   str(p, "countryOfResidence", ""),
		AgeGroup:             str(p, "ageGroup", ""),
		MaritalStatus:        str(p, "maritalStatus", ""),
		HasChildren:          str(p, "hasChildren", types.AnswerNo),
		ChildrenAges:         str(p, "childrenAges", ""),

		HighestEducation:       str(e, "highestEducation", ""),
		EducationOutsideCanada: str(e, "educationOutsideCanada", types.AnswerNo),

		YearsOfExperience:         str(w, "yearsOfExperience", ""),
		WorkInRegulatedProfession: str(w, "workInRegulatedProfession", types.AnswerNotSure),
		Occupation:                str(w, "occupation", ""),

		SpeakEnglishOrFrench: str(l, "speakEnglishOrFrench", types.AnswerNo),
		LanguageTest:         str(l, "languageTest", types.AnswerNo),
		LanguageLevel:        str(l, "languageLevel", ""),
		TestScores:           str(l, "testScores", ""),

		InterestedInImmigrating:      str(c, "interestedInImmigrating", ""),
		StudiedOrWorkedInCanada:      str(c, "studiedOrWorkedInCanada", types.AnswerNo),
		JobOfferFromCanadianEmployer: str(c, "jobOfferFromCanadianEmployer", types.AnswerNo),
		RelativesInCanada:            str(c, "relativesInCanada", types.AnswerNo),
		SettlementFunds:              str(c, "settlementFunds", types.AnswerNo),
		SettlementFundsAmount:        str(c, "settlementFundsAmount", ""),

		BusinessOrManagerialExperience: str(a, "businessOrManagerialExperience", types.AnswerNo),
		AdditionalInfo:                 str(a, "additionalInfo", ""),
	}
}

// FromRecord rebuilds an Answer Set from stored groups. It never fails: a group
// that cannot be decoded contributes defaults only.
func FromRecord(raw types.RawGroups) types.FormData {
	f, _ := Decode(raw)
	return f
}

// Decode is FromRecord that also reports the names of groups whose stored
// value could not be decoded.
func Decode(raw types.RawGroups) (types.FormData, []string) {
	var failed []string
	group := func(name string, msg json.RawMessage) types.Group {
		res := DecodeGroup(msg)
		if !res.OK {
			failed = append(failed, name)
			return types.Group{}
		}
		return res.Group
	}

	g := types.Groups{
		PersonalInfo:        group(types.GroupPersonal, raw.PersonalInfo),
		EducationInfo:       group(types.GroupEducation, raw.EducationInfo),
		WorkExperience:      group(types.GroupWork, raw.WorkExperience),
		LanguageSkills:      group(types.GroupLanguage, raw.LanguageSkills),
		CanadianConnections: group(types.GroupConnections, raw.CanadianConnections),
		AdditionalInfo:      group(types.GroupAdditional, raw.AdditionalInfo),
	}
	return FromGroups(g), failed
}

// Encode serializes structured groups for storage.
func Encode(g types.Groups) (types.RawGroups, error) {
	var out types.RawGroups
	targets := []struct {
		dst *json.RawMessage
		src types.Group
	}{
		{&out.PersonalInfo, g.PersonalInfo},
		{&out.EducationInfo, g.EducationInfo},
		{&out.WorkExperience, g.WorkExperience},
		{&out.LanguageSkills, g.LanguageSkills},
		{&out.CanadianConnections, g.CanadianConnections},
		{&out.AdditionalInfo, g.AdditionalInfo},
	}
	for i, t := range targets {
		src := t.src
		if src == nil {
			src = types.Group{}
		}
		b, err := json.Marshal(src)
		if err != nil {
			return types.RawGroups{}, fmt.Errorf("failed to encode %s: %w", types.GroupNames[i], err)
		}
		*t.dst = b
	}
	return out, nil
}

// str reads key from g as a string, falling back to def when the key is
// absent, null or empty. Arrays of scalars are joined with ", ".
func str(g types.Group, key, def string) string {
	v, ok := g[key]
	if !ok || v == nil {
		return def
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(item))
		}
		s = strings.Join(parts, ", ")
	case []string:
		s = strings.Join(t, ", ")
	case map[string]any:
		return def
	default:
		s = fmt.Sprint(t)
	}

	if s == "" {
		return def
	}
	return s
}
