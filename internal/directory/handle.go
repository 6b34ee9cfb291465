package directory

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/thereayou/chat-relay/internal/apperr"
)

const (
	MinHandleLength       = 6
	MaxHandleLength       = 12
	suggestedHandleLength = 8
	handleAlphabet        = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	handlePattern = regexp.MustCompile(`^[a-z0-9]{6,12}$`)
	stripPattern  = regexp.MustCompile(`[^a-z0-9]`)
	validate      = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeHandle lower-cases raw and strips everything outside [a-z0-9].
// The result is not guaranteed to be valid.
func NormalizeHandle(raw string) string {
	return stripPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
}

func ValidateHandle(handle string) error {
	if err := validate.Var(handle, "required,handle"); err != nil {
		return apperr.New(apperr.KindInvalidOperation, "handle must be 6 to 12 characters of a-z and 0-9")
	}
	return nil
}

// RandomHandle returns an 8 character handle. It is valid but may be taken.
func RandomHandle() string {
	var b strings.Builder
	b.Grow(suggestedHandleLength)
	for i := 0; i < suggestedHandleLength; i++ {
		b.WriteByte(handleAlphabet[rand.IntN(len(handleAlphabet))])
	}
	return b.String()
}

func FormatHandle(handle string) string {
	return "@" + handle
}
