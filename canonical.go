package authx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// EncodeCanonical serialises v so that semantically equal values always yield identical bytes.
//
// Object keys are sorted by code point, no insignificant whitespace is written and numbers have a
// single textual form: integers in plain decimal, floats in the shortest round-tripping decimal
// form without exponent. Supported values are nil, bool, string, Go integer and float types,
// AuthorizationLevel, json.Number, Claims, map[string]any and []any. Values that would not
// re-encode to the same bytes after DecodeCanonical are rejected: strings and keys that are
// not valid UTF-8, unsigned integers above math.MaxInt64, NaN and infinities.
func EncodeCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, newError(ErrCodeMalformedEncoding, err)
	}
	return buf.Bytes(), nil
}

// DecodeCanonical parses bytes produced by EncodeCanonical.
// Integers decode to int64 and fractional numbers to float64, so re-encoding a decoded value
// reproduces the original bytes.
func DecodeCanonical(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, newError(ErrCodeMalformedEncoding, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, newError(ErrCodeMalformedEncoding, errors.New("trailing data after value"))
	}

	out, err := normalizeDecoded(v)
	if err != nil {
		return nil, newError(ErrCodeMalformedEncoding, err)
	}
	return out, nil
}

// DecodeCanonicalObject decodes data and requires the top-level value to be an object.
func DecodeCanonicalObject(data []byte) (Claims, error) {
	v, err := DecodeCanonical(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, newError(ErrCodeMalformedEncoding, fmt.Errorf("expected object, got %T", v))
	}
	return Claims(obj), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, val)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		return writeUint(buf, uint64(val))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		return writeUint(buf, val)
	case AuthorizationLevel:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case float32:
		return writeFloat(buf, float64(val))
	case float64:
		return writeFloat(buf, val)
	case json.Number:
		n, err := parseNumber(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, n)
	case Claims:
		return writeObject(buf, val)
	case map[string]any:
		return writeObject(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// byte order of UTF-8 strings is code point order
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := checkString(s); err != nil {
		return err
	}
	quoted, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(quoted)
	return nil
}

// writeUint rejects values that would decode as float64.
func writeUint(buf *bytes.Buffer, u uint64) error {
	if err := checkUint(u); err != nil {
		return err
	}
	buf.WriteString(strconv.FormatUint(u, 10))
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if err := checkFloat(f); err != nil {
		return err
	}
	if f == 0 {
		f = 0 // drop the sign of negative zero
	}
	buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Invalid UTF-8 is escaped as U+FFFD, which decodes to a different string.
func checkString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	return nil
}

func checkUint(u uint64) error {
	if u > math.MaxInt64 {
		return fmt.Errorf("integer %d exceeds %d", u, int64(math.MaxInt64))
	}
	return nil
}

func checkFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("number %v has no canonical form", f)
	}
	return nil
}

func parseNumber(n json.Number) (any, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

func normalizeDecoded(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return parseNumber(val)
	case map[string]any:
		for k, item := range val {
			n, err := normalizeDecoded(item)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case []any:
		for i, item := range val {
			n, err := normalizeDecoded(item)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	default:
		return v, nil
	}
}
