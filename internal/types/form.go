// Package types provides type definitions for structured data used throughout the eligibility intake service.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Answer values shared by the yes/no style questions.
const (
	AnswerYes     = "yes"
	AnswerNo      = "no"
	AnswerNotSure = "not-sure"
)

// FormData is one assessment's answers (the Answer Set). Field names follow the
// wire format used by the intake form.
type FormData struct {
	// Personal Information
	FullName             string `json:"fullName" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	CountryOfCitizenship string `json:"countryOfCitizenship" validate:"required,option=country"`
	CountryOfResidence   string `json:"countryOfResidence" validate:"required,option=country"`
	AgeGroup             string `json:"ageGroup" validate:"required,option=age_group"`
	MaritalStatus        string `json:"maritalStatus" validate:"required,option=marital_status"`
	HasChildren          string `json:"hasChildren" validate:"required,option=yes_no"`
	ChildrenAges         string `json:"childrenAges,omitempty"`

	// Education
	HighestEducation       string `json:"highestEducation" validate:"required,option=education"`
	EducationOutsideCanada string `json:"educationOutsideCanada" validate:"required,option=yes_no"`

	// Work Experience
	YearsOfExperience         string `json:"yearsOfExperience" validate:"required,option=experience"`
	WorkInRegulatedProfession string `json:"workInRegulatedProfession" validate:"required,option=yes_no_unsure"`
	Occupation                string `json:"occupation" validate:"required"`

	// Language Skills
	SpeakEnglishOrFrench string `json:"speakEnglishOrFrench" validate:"required,option=yes_no"`
	LanguageTest         string `json:"languageTest" validate:"required,option=yes_no"`
	LanguageLevel        string `json:"languageLevel,omitempty"`
	TestScores           string `json:"testScores,omitempty"`

	// Canadian Connections
	InterestedInImmigrating      string `json:"interestedInImmigrating" validate:"required,option=immigration_reason"`
	StudiedOrWorkedInCanada      string `json:"studiedOrWorkedInCanada" validate:"required,option=yes_no"`
	JobOfferFromCanadianEmployer string `json:"jobOfferFromCanadianEmployer" validate:"required,option=yes_no"`
	RelativesInCanada            string `json:"relativesInCanada" validate:"required,option=yes_no"`
	SettlementFunds              string `json:"settlementFunds" validate:"required,option=yes_no"`
	SettlementFundsAmount        string `json:"settlementFundsAmount,omitempty"`

	// Additional Information
	BusinessOrManagerialExperience string `json:"businessOrManagerialExperience" validate:"required,option=yes_no"`
	AdditionalInfo                 string `json:"additionalInfo,omitempty"`
}

// FormOptions lists the allowed values of every pick-list question, keyed by
// the name used in the `option` validation tag.
var FormOptions = map[string][]string{
	"yes_no":        {AnswerYes, AnswerNo},
	"yes_no_unsure": {AnswerYes, AnswerNo, AnswerNotSure},
	"country": {
		"United States", "United Kingdom", "India", "China", "Philippines",
		"Nigeria", "France", "Germany", "Other",
	},
	"age_group": {"Under 18", "18-29", "30-35", "36-40", "41-45", "46-55", "Over 55"},
	"marital_status": {
		"Single", "Married", "Common-law", "Separated", "Divorced", "Widowed",
	},
	"education": {
		"High School", "College Diploma", "Bachelor's Degree", "Master's Degree",
		"PhD or higher", "Trade Certificate", "No formal education",
	},
	"experience": {
		"Less than 1 year", "1-2 years", "2-3 years", "3-5 years", "Over 5 years",
	},
	"immigration_reason": {
		"Permanent Residency (Express Entry or PNP)", "Work Permit", "Study Permit",
		"Business/Investment Program", "Refugee/Asylum", "I'm not sure",
	},
}

// IsOption reports whether value is one of the allowed values of list.
func IsOption(list, value string) bool {
	for _, v := range FormOptions[list] {
		if v == value {
			return true
		}
	}
	return false
}
