// Package formfill maps a user profile onto application-form fields. Known
// fields are filled via the strategy's selector mapping; unknown fields fall
// back to heuristic identification from the field's name, id, placeholder,
// and type text.
package formfill

import "github.com/jonathan/apply-agent/internal/types"

// Field is a logical form-field key that a profile value can fill.
type Field string

const (
	FieldFirstName   Field = "first_name"
	FieldLastName    Field = "last_name"
	FieldFullName    Field = "full_name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldLinkedIn    Field = "linkedin"
	FieldWebsite     Field = "website"
	FieldLocation    Field = "location"
	FieldSalary      Field = "salary"
	FieldResume      Field = "resume"
	FieldCoverLetter Field = "cover_letter"
)

// Value returns the profile value for a logical field, or "" when the
// profile has nothing to offer for it.
func Value(profile *types.UserProfile, field Field) string {
	if profile == nil {
		return ""
	}
	switch field {
	case FieldFirstName:
		return profile.FirstName
	case FieldLastName:
		return profile.LastName
	case FieldFullName:
		return profile.FullName()
	case FieldEmail:
		return profile.Email
	case FieldPhone:
		return profile.Phone
	case FieldLinkedIn:
		return profile.LinkedIn
	case FieldWebsite:
		return profile.Website
	case FieldLocation:
		return profile.Location
	case FieldSalary:
		return profile.DesiredSalary
	case FieldResume:
		return profile.ResumePath
	case FieldCoverLetter:
		return profile.CoverLetterPath
	}
	return ""
}

// IsFileField reports whether the field is filled via file upload rather
// than typing.
func IsFileField(field Field) bool {
	return field == FieldResume || field == FieldCoverLetter
}
