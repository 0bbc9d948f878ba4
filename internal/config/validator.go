// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` once the merged Koanf
// tree is unmarshalled.  Any failure aborts startup.  Struct tags cover the
// field-level rules; the checks below span fields.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if n := strings.Count(c.Database.DSN, "%s"); n > 1 {
		return fmt.Errorf("database.dsn: want at most one %%s verb, found %d", n)
	}
	if strings.Contains(c.Database.DSN, "%s") && c.Database.Password == "" {
		return errors.New("database.password: required when dsn has a %s verb")
	}
	return nil
}
