package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LoadEnv overrides config fields from the environment variables named by
// their env struct tags. Nested structs are walked recursively.
func LoadEnv(cfg *Config) error {
	return processStructEnv(reflect.ValueOf(cfg).Elem())
}

func processStructEnv(val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if fieldVal.Kind() == reflect.Struct {
			if err := processStructEnv(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envValue, exists := os.LookupEnv(envName)
		if !exists {
			continue
		}
		if err := setField(fieldVal, envName, envValue); err != nil {
			return err
		}
	}
	return nil
}

func setField(fieldVal reflect.Value, envName, envValue string) error {
	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(envValue)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fieldVal.Type() == durationType {
			d, err := time.ParseDuration(envValue)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %w", envName, err)
			}
			fieldVal.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", envName, err)
		}
		fieldVal.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", envName, err)
		}
		fieldVal.SetBool(b)

	case reflect.Slice:
		if fieldVal.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type for %s", envName)
		}
		parts := strings.Split(envValue, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		fieldVal.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported type %s for %s", fieldVal.Kind(), envName)
	}
	return nil
}
