package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoJSONObject is returned when a response contains no well-formed JSON object.
var ErrNoJSONObject = errors.New("llm: no JSON object in response")

// ExtractJSONObject returns the first well-formed JSON object embedded in text.
// Models wrap JSON in prose or code fences often enough that the whole
// response cannot be decoded directly.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoJSONObject
}

// ParseStructured decodes the first JSON object in text into target.
func ParseStructured(text string, target interface{}) error {
	if target == nil {
		return errors.New("target cannot be nil")
	}
	if reflect.ValueOf(target).Kind() != reflect.Ptr {
		return errors.New("target must be a pointer")
	}
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}
