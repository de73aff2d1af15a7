package validator

import (
	"reflect"
	"sync"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Custom validation function for contract addresses
func validateL2Address(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	f, err := new(felt.Felt).SetString(s)
	return err == nil && core.IsValidAddress(f)
}

// Custom validation function for resource names in fee weight maps
func validateResourceKind(fl validator.FieldLevel) bool {
	kind, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	for _, known := range core.ResourceKinds {
		if kind == known {
			return true
		}
	}
	return false
}

// Validator returns a singleton that can be used to validate various objects
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		if err := v.RegisterValidation("l2_address", validateL2Address); err != nil {
			panic("failed to register validation: " + err.Error())
		}

		if err := v.RegisterValidation("resource_kind", validateResourceKind); err != nil {
			panic("failed to register validation: " + err.Error())
		}

		// Register these types to use their string representation for validation
		// purposes
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			switch f := field.Interface().(type) {
			case felt.Felt:
				return f.String()
			case *felt.Felt:
				return f.String()
			}
			panic("not a felt")
		}, felt.Felt{}, &felt.Felt{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if k, ok := field.Interface().(core.ClassKind); ok {
				return k.String()
			}
			panic("not a core.ClassKind")
		}, core.ClassKind(0))
	})
	return v
}
