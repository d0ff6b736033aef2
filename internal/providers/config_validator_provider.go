package providers

import (
	"fmt"
	"strings"

	"github.com/gookit/validate"
	"countly/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		msgs := make([]string, 0, len(v.Errors))
		for field, errs := range v.Errors {
			for _, msg := range errs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
			}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}
