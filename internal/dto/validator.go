package dto

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 向 gin 的校验引擎注册自定义规则
//   - isodate: YYYY-MM-DD
//   - hhmm:    HH:MM
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("binding 校验引擎不是 validator/v10")
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	if err := v.RegisterValidation("isodate", layoutRule("2006-01-02")); err != nil {
		return err
	}
	return v.RegisterValidation("hhmm", layoutRule("15:04"))
}

func layoutRule(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != len(layout) {
			return false
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}
