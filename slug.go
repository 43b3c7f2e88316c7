package cartridge

import (
	"regexp"

	"github.com/archivefs/cartridge/errs"
)

// slugPattern is spec.md §6's kebab-case identifier:
// ^[a-z0-9]([a-z0-9-]*[a-z0-9])?$, 1-214 characters, no "--".
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const maxSlugLen = 214

// ValidateSlug reports an InvalidArgument error if slug does not satisfy
// spec.md §6's manifest slug contract.
func ValidateSlug(slug string) error {
	if len(slug) == 0 || len(slug) > maxSlugLen {
		return errs.New(errs.KindInvalidArgument, "ValidateSlug", "slug length must be 1-214")
	}
	if !slugPattern.MatchString(slug) {
		return errs.New(errs.KindInvalidArgument, "ValidateSlug", "slug must be kebab-case: "+slug)
	}
	if containsDoubleDash(slug) {
		return errs.New(errs.KindInvalidArgument, "ValidateSlug", "slug must not contain \"--\": "+slug)
	}
	return nil
}

func containsDoubleDash(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '-' && s[i+1] == '-' {
			return true
		}
	}
	return false
}
