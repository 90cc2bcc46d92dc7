package validators

import (
	"bitwise74/fileshare-api/pkg/vpath"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterBindings adds the custom struct tags to gin's validator. Fields
// tagged `binding:"logicalpath"` must hold a valid file path.
func RegisterBindings() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterValidation("logicalpath", func(fl validator.FieldLevel) bool {
			return vpath.Validate(fl.Field().String()) == nil
		})
	})
}
