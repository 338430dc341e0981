package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnexpectedShape = errors.New("unexpected response shape")

// 不同接口把列表放在不同的字段下
var defaultListKeys = []string{"data", "items", "complaints", "content"}

var defaultObjectKeys = []string{"data", "user", "complaint"}

// NormalizeList 接受裸数组、{data: [...]}、{items: [...]}、{complaints: [...]}
// 以及 {data: {complaints: [...]}} 这样多包一层的形式
func NormalizeList[T any](res *Result, keys ...string) ([]T, error) {
	if res == nil || len(bytes.TrimSpace(res.Raw)) == 0 {
		return []T{}, nil
	}
	return normalizeList[T](res.Raw, append(keys, defaultListKeys...), 1)
}

func normalizeList[T any](raw json.RawMessage, keys []string, depth int) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return []T{}, nil
	case raw[0] == '[':
		out := []T{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return out, nil
	case raw[0] == '{':
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		// null 或标量的字段跳过，继续检查后面的字段
		null := false
		for _, key := range keys {
			v, ok := fields[key]
			if !ok {
				continue
			}
			v = bytes.TrimSpace(v)
			switch {
			case len(v) == 0 || bytes.Equal(v, []byte("null")):
				null = true
			case v[0] == '[':
				return normalizeList[T](v, keys, 0)
			case v[0] == '{' && depth > 0:
				if out, err := normalizeList[T](v, keys, depth-1); err == nil {
					return out, nil
				}
			}
		}
		if null {
			return []T{}, nil
		}
	}
	return nil, ErrUnexpectedShape
}

// NormalizeObject 接受裸对象以及 {data: {...}}、{user: {...}} 等包装形式
func NormalizeObject[T any](res *Result, keys ...string) (T, error) {
	var out T
	if res == nil {
		return out, ErrUnexpectedShape
	}

	raw := bytes.TrimSpace(res.Raw)
	if len(raw) == 0 || raw[0] != '{' {
		return out, ErrUnexpectedShape
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	for _, key := range append(keys, defaultObjectKeys...) {
		v := bytes.TrimSpace(fields[key])
		if len(v) > 0 && v[0] == '{' {
			raw = v
			break
		}
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return out, nil
}
