package snippet

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxCodeSize    = 100_000
	MaxTitleLength = 100
	DefaultTitle   = "Untitled"
	ImportedTitle  = "Imported Snippet"
)

// Languages are the languages a snippet may be saved in.
var Languages = []string{
	"javascript", "python", "java", "cpp", "c", "csharp", "go",
	"rust", "php", "ruby", "swift", "kotlin", "typescript", "scala",
}

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMissingFields   = &ValidationError{Message: "Language and code are required"}
	ErrCodeTooLarge    = &ValidationError{Message: "Code size exceeds maximum limit (100KB)"}
	ErrTitleTooLong    = &ValidationError{Message: "Title exceeds maximum length (100 characters)"}
	ErrInvalidLanguage = &ValidationError{
		Message: fmt.Sprintf("Invalid language. Supported: %s", strings.Join(Languages, ", ")),
	}
)

// NormalizeLanguage lower-cases a language name.
func NormalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// ValidLanguage reports whether language is supported.
func ValidLanguage(language string) bool {
	return slices.Contains(Languages, NormalizeLanguage(language))
}

// TruncateTitle cuts title to the maximum length, or returns fallback when it is empty.
func TruncateTitle(title, fallback string) string {
	if title == "" {
		return fallback
	}

	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}

	return string([]rune(title)[:MaxTitleLength])
}

// ValidateNew checks the fields of a snippet being created.
func ValidateNew(language, code string) error {
	if language == "" || code == "" {
		return ErrMissingFields
	}

	if len(code) > MaxCodeSize {
		return ErrCodeTooLarge
	}

	if !ValidLanguage(language) {
		return ErrInvalidLanguage
	}

	return nil
}

// ValidatePatch checks the fields of an update.
func ValidatePatch(p Patch) error {
	if p.Code != nil && len(*p.Code) > MaxCodeSize {
		return ErrCodeTooLarge
	}

	if p.Title != nil && utf8.RuneCountInString(*p.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	if p.Language != nil && !ValidLanguage(*p.Language) {
		return ErrInvalidLanguage
	}

	return nil
}
