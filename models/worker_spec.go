package models

// WorkerSpec is the serialized configuration blob handed to a worker
// process on launch. It is written to the worker's stdin as one JSON
// document and is preserved verbatim across supervisor-issued restarts.
type WorkerSpec struct {
	UserID          int              `json:"user_id"`
	SessionID       string           `json:"session_id"`
	MaxApplications int              `json:"max_applications"`
	Search          SearchConfig     `json:"search"`
	Answers         AnswerConfig     `json:"answers"`
	Profile         CandidateProfile `json:"profile"`
	ResumeS3Key     string           `json:"resume_s3_key"`
	CoverLetter     string           `json:"cover_letter,omitempty"`
}

// SearchConfig drives the discovery traversal and its filters.
type SearchConfig struct {
	Positions        []string `json:"positions"`
	Locations        []string `json:"locations"`
	CompanyBlacklist []string `json:"company_blacklist,omitempty"`
	PosterBlacklist  []string `json:"poster_blacklist,omitempty"`
	TitleBlacklist   []string `json:"title_blacklist,omitempty"`
	MaxPages         int      `json:"max_pages,omitempty"`
	JobFitCheck      bool     `json:"job_fit_check,omitempty"`
}

// AnswerConfig feeds the deterministic rules of the answer engine.
type AnswerConfig struct {
	RequiresSponsorship bool           `json:"requires_sponsorship"`
	SkillYears          map[string]int `json:"skill_years,omitempty"`
	DefaultYears        int            `json:"default_years,omitempty"`
	MinSalary           int            `json:"min_salary,omitempty"`
	NoticePeriodDays    int            `json:"notice_period_days,omitempty"`
}

// CandidateProfile holds the personal data used to fill form steps and to
// build the generative-fallback context.
type CandidateProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	AltEmail   string `json:"alt_email,omitempty"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	Country    string `json:"country"`
	LinkedIn   string `json:"linkedin,omitempty"`
	Background string `json:"background,omitempty"`
}

func (p CandidateProfile) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
