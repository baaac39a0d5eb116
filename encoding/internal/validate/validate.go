// Package validate checks decoded structs with their validate tags.
package validate

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Struct validates v when it is a struct or a pointer to one.
// Other values are accepted as is.
func Struct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	once.Do(func() {
		instance = validator.New()
	})
	return instance.Struct(rv.Interface())
}
