package cache

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"

	"github.com/golang/snappy"
)

// Entry is the stored envelope of a cached value
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// maxSafeInteger is the largest integer a JSON consumer using doubles reads exactly
var maxSafeInteger = big.NewInt(1<<53 - 1)

// marshalData encodes v to JSON. Integers are written exactly.
func marshalData(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return raw, nil
}

// unmarshalData decodes raw into a T. Numbers landing in interface values
// become float64, except integers outside ±(2^53-1) which become decimal strings.
func unmarshalData[T any](raw json.RawMessage) (T, error) {
	var data T
	if !containsInterface(reflect.TypeOf(&data).Elem()) {
		if err := json.Unmarshal(raw, &data); err != nil {
			return data, fmt.Errorf("failed to unmarshal value: %w", err)
		}
		return data, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return data, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	normalizeNumbers(reflect.ValueOf(&data).Elem())
	return data, nil
}

var interfaceTypes sync.Map // reflect.Type -> bool

// containsInterface reports whether decoding into t can produce interface values
func containsInterface(t reflect.Type) bool {
	if v, ok := interfaceTypes.Load(t); ok {
		return v.(bool)
	}
	found := walkType(t, map[reflect.Type]bool{})
	interfaceTypes.Store(t, found)
	return found
}

func walkType(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return walkType(t.Elem(), seen)
	case reflect.Map:
		return walkType(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() && walkType(t.Field(i).Type, seen) {
				return true
			}
		}
	}
	return false
}

// normalizeNumbers replaces json.Number values held in interfaces under v
func normalizeNumbers(v reflect.Value) {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		elem := v.Elem()
		if n, ok := elem.Interface().(json.Number); ok {
			if v.CanSet() {
				v.Set(reflect.ValueOf(numberValue(n)))
			}
			return
		}
		cp := reflect.New(elem.Type()).Elem()
		cp.Set(elem)
		normalizeNumbers(cp)
		if v.CanSet() {
			v.Set(cp)
		}
	case reflect.Pointer:
		if !v.IsNil() {
			normalizeNumbers(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				normalizeNumbers(v.Field(i))
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			normalizeNumbers(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			item := reflect.New(v.Type().Elem()).Elem()
			item.Set(iter.Value())
			normalizeNumbers(item)
			v.SetMapIndex(iter.Key(), item)
		}
	}
}

// numberValue is what a double-based JSON reader can represent exactly
func numberValue(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		i, ok := new(big.Int).SetString(s, 10)
		if ok && i.CmpAbs(maxSafeInteger) > 0 {
			return s
		}
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return f
}

// encodeEntry serializes, compresses and base64-encodes an entry
func encodeEntry(entry Entry) (string, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry: %w", err)
	}
	return base64.StdEncoding.EncodeToString(snappy.Encode(nil, raw)), nil
}

// decodeEntry reverses encodeEntry
func decodeEntry(s string) (Entry, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to decode base64: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to decompress entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	if len(entry.Data) == 0 {
		return Entry{}, fmt.Errorf("entry has no data")
	}
	return entry, nil
}
