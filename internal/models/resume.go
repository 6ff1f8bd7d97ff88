package models

// ParsedResumeData is the structured shape returned by the resume parser.
type ParsedResumeData struct {
	Name       string       `json:"name"`
	Email      string       `json:"email,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Location   string       `json:"location,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
}

type Experience struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

// ParseOutcome pairs an extraction with the optional structured parse.
type ParseOutcome struct {
	Extraction ExtractionResult  `json:"extraction"`
	Resume     *ParsedResumeData `json:"resume,omitempty"`
	ParseError string            `json:"parseError,omitempty"`
}
