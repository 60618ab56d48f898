package model

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate проверяет диапазоны полей по тегам validate
func (s *Settings) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrIncorrectConfig, err)
	}
	return nil
}

func (p *Preset) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrIncorrectConfig, err)
	}
	return nil
}
