package formfill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestValue(t *testing.T) {
	profile := &types.UserProfile{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Phone:           "555-0100",
		LinkedIn:        "https://linkedin.com/in/ada",
		Location:        "London",
		DesiredSalary:   "120000",
		ResumePath:      "/docs/resume.pdf",
		CoverLetterPath: "/docs/cover.pdf",
	}

	assert.Equal(t, "Ada", Value(profile, FieldFirstName))
	assert.Equal(t, "Lovelace", Value(profile, FieldLastName))
	assert.Equal(t, "Ada Lovelace", Value(profile, FieldFullName))
	assert.Equal(t, "ada@example.com", Value(profile, FieldEmail))
	assert.Equal(t, "120000", Value(profile, FieldSalary))
	assert.Equal(t, "/docs/resume.pdf", Value(profile, FieldResume))
	assert.Equal(t, "/docs/cover.pdf", Value(profile, FieldCoverLetter))

	assert.Empty(t, Value(profile, FieldWebsite))
	assert.Empty(t, Value(profile, Field("unknown")))
	assert.Empty(t, Value(nil, FieldEmail))
}

func TestIsFileField(t *testing.T) {
	assert.True(t, IsFileField(FieldResume))
	assert.True(t, IsFileField(FieldCoverLetter))
	assert.False(t, IsFileField(FieldEmail))
	assert.False(t, IsFileField(FieldFirstName))
}
