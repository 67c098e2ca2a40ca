package cache

import (
	"encoding/json"
	"fmt"
)

// GenerateKeyWithParams creates a cache key with multiple parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// BuildPattern creates a glob pattern matching every key under prefix.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
