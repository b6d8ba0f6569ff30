package store

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeID renders a new ID for storage in the ID map.
func EncodeID(v any) (string, error) {
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10), nil
	case int:
		return strconv.Itoa(id), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float64:
		if id != float64(int64(id)) {
			return "", fmt.Errorf("%w: %v", ErrInvalidNewID, id)
		}
		return strconv.FormatInt(int64(id), 10), nil
	case []byte:
		return EncodeID(string(id))
	case string:
		if strings.TrimSpace(id) == "" {
			return "", ErrInvalidNewID
		}
		return id, nil
	case nil:
		return "", ErrInvalidNewID
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidNewID, v)
	}
}

// DecodeID re-types a stored new ID: integers become int64, anything else
// stays a string.
func DecodeID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
