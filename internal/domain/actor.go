package domain

// SubjectType differentiates operator tokens from provider credentials.
type SubjectType string

const (
	SubjectTypeUser     SubjectType = "USER"
	SubjectTypeProvider SubjectType = "PROVIDER"
)
