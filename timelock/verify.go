package timelock

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var futureFieldNames = map[string]struct{}{
	"timestamp": {},
	"time":      {},
	"date":      {},
}

// VerifyNoFutureAccess recursively inspects an arbitrary value — the
// payload about to be handed to an agent — and fails when any field or map
// key named "timestamp", "time", or "date" (case-insensitive) carries a
// value later than currentTime. This is the last line of defense against
// accidentally leaking a future date through a hand-built struct or map
// that bypassed the InformationContext builder.
func VerifyNoFutureAccess(value any, currentTime int64) error {
	return walk(reflect.ValueOf(value), currentTime, "$")
}

func walk(v reflect.Value, currentTime int64, path string) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return walk(v.Elem(), currentTime, path)
	case reflect.Struct:
		if v.Type() == reflect.TypeOf(time.Time{}) {
			return nil
		}
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			fieldPath := path + "." + field.Name
			if isFutureFieldName(field.Name) {
				if err := checkNotFuture(v.Field(i), currentTime, fieldPath); err != nil {
					return err
				}
			}
			if err := walk(v.Field(i), currentTime, fieldPath); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			keyPath := fmt.Sprintf("%s[%v]", path, key.Interface())
			if key.Kind() == reflect.String && isFutureFieldName(key.String()) {
				if err := checkNotFuture(iter.Value(), currentTime, keyPath); err != nil {
					return err
				}
			}
			if err := walk(iter.Value(), currentTime, keyPath); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), currentTime, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func isFutureFieldName(name string) bool {
	_, ok := futureFieldNames[strings.ToLower(name)]
	return ok
}

// checkNotFuture inspects a value already known to sit under a
// timestamp/time/date-named field or key, and fails if it denotes an
// instant after currentTime. Supported shapes: time.Time, a Unix-seconds
// int64/float64, or an RFC3339 string.
func checkNotFuture(v reflect.Value, currentTime int64, path string) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	var unix int64
	switch {
	case v.Type() == reflect.TypeOf(time.Time{}):
		unix = v.Interface().(time.Time).Unix()
	case v.Kind() == reflect.Int || v.Kind() == reflect.Int64 || v.Kind() == reflect.Int32:
		unix = v.Int()
	case v.Kind() == reflect.Float64 || v.Kind() == reflect.Float32:
		unix = int64(v.Float())
	case v.Kind() == reflect.String:
		parsed, err := time.Parse(time.RFC3339, v.String())
		if err != nil {
			// Not a recognizable timestamp string; nothing to check.
			return nil
		}
		unix = parsed.Unix()
	default:
		return nil
	}
	if unix > currentTime {
		return fmt.Errorf("timelock: future-dated field %s (%d > %d)", path, unix, currentTime)
	}
	return nil
}
