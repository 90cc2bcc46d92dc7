package validators

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailValidator(t *testing.T) {
	assert.NoError(t, EmailValidator("ada@example.com"))
	assert.ErrorIs(t, EmailValidator(""), ErrEmailEmpty)
	assert.ErrorIs(t, EmailValidator("not-an-email"), ErrEmailInvalid)
	assert.ErrorIs(t, EmailValidator("Ada <ada@example.com>"), ErrEmailInvalid)
	assert.ErrorIs(t, EmailValidator(strings.Repeat("a", 250)+"@x.io"), ErrEmailTooLong)

	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestPasswordValidators(t *testing.T) {
	assert.NoError(t, PasswordValidator("12345678"))
	assert.ErrorIs(t, PasswordValidator(""), ErrPasswordEmpty)
	assert.ErrorIs(t, PasswordValidator("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, PasswordValidator(strings.Repeat("a", 256)), ErrPasswordTooLong)

	assert.NoError(t, ConfirmPasswordValidator("password1", "password1"))
	assert.ErrorIs(t, ConfirmPasswordValidator("password1", "password2"), ErrPasswordMismatch)
	assert.ErrorIs(t, ConfirmPasswordValidator("short", "short"), ErrPasswordTooShort)
}

func TestNameValidators(t *testing.T) {
	assert.NoError(t, NameValidator("Ada Lovelace"))
	assert.ErrorIs(t, NameValidator("   "), ErrNameEmpty)
	assert.ErrorIs(t, NameValidator("a\nb"), ErrNameInvalid)
	assert.ErrorIs(t, NameValidator(strings.Repeat("é", 256)), ErrNameTooLong)

	assert.NoError(t, FileNameValidator("report v2.pdf"))
	assert.ErrorIs(t, FileNameValidator("a/b.pdf"), ErrNameInvalid)
	assert.ErrorIs(t, FileNameValidator(".."), ErrNameInvalid)
}

func TestContentTypeAndSize(t *testing.T) {
	assert.NoError(t, ContentTypeValidator("application/pdf"))
	assert.NoError(t, ContentTypeValidator("text/plain; charset=utf-8"))
	assert.ErrorIs(t, ContentTypeValidator(""), ErrContentTypeEmpty)
	assert.ErrorIs(t, ContentTypeValidator("not a type"), ErrContentTypeInvalid)

	code, err := SizeValidator(10, 100)
	assert.NoError(t, err)
	assert.Zero(t, code)

	code, err = SizeValidator(0, 100)
	assert.ErrorIs(t, err, ErrFileEmpty)
	assert.Equal(t, http.StatusBadRequest, code)

	code, err = SizeValidator(101, 100)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestLogicalPathBinding(t *testing.T) {
	RegisterBindings()
	RegisterBindings()

	type body struct {
		Path string `json:"path" binding:"required,logicalpath"`
	}

	require.NoError(t, binding.Validator.ValidateStruct(&body{Path: "/Documents/a.txt"}))
	assert.Error(t, binding.Validator.ValidateStruct(&body{Path: "/Documents/../a.txt"}))
	assert.Error(t, binding.Validator.ValidateStruct(&body{Path: "/"}))
}
