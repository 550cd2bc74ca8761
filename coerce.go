package protodict

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// coercion converts a leaf field value between its protoreflect form and
// its JSON-safe mapping form.
type coercion struct {
	encode func(v protoreflect.Value, o *encodeOptions) any
	decode func(v any) (protoreflect.Value, error)
}

// coercions is the kind dispatch table for leaf kinds. Enum, message and
// group kinds are handled by the encoder and decoder directly.
var coercions = map[protoreflect.Kind]coercion{
	protoreflect.BoolKind:     {encode: encodeBool, decode: decodeBool},
	protoreflect.StringKind:   {encode: encodeString, decode: decodeString},
	protoreflect.BytesKind:    {encode: encodeBytes, decode: decodeBytes},
	protoreflect.Int32Kind:    {encode: encodeInt32, decode: decodeInt32},
	protoreflect.Sint32Kind:   {encode: encodeInt32, decode: decodeInt32},
	protoreflect.Sfixed32Kind: {encode: encodeInt32, decode: decodeInt32},
	protoreflect.Int64Kind:    {encode: encodeInt64, decode: decodeInt64},
	protoreflect.Sint64Kind:   {encode: encodeInt64, decode: decodeInt64},
	protoreflect.Sfixed64Kind: {encode: encodeInt64, decode: decodeInt64},
	protoreflect.Uint32Kind:   {encode: encodeUint32, decode: decodeUint32},
	protoreflect.Fixed32Kind:  {encode: encodeUint32, decode: decodeUint32},
	protoreflect.Uint64Kind:   {encode: encodeUint64, decode: decodeUint64},
	protoreflect.Fixed64Kind:  {encode: encodeUint64, decode: decodeUint64},
	protoreflect.FloatKind:    {encode: encodeFloat, decode: decodeFloat},
	protoreflect.DoubleKind:   {encode: encodeDouble, decode: decodeDouble},
}

// lookupCoercion returns the table entry for a leaf kind.
func lookupCoercion(kind protoreflect.Kind) (coercion, error) {
	c, ok := coercions[kind]
	if !ok {
		return coercion{}, fmt.Errorf("unsupported field kind: %v", kind)
	}
	return c, nil
}

func encodeBool(v protoreflect.Value, _ *encodeOptions) any   { return v.Bool() }
func encodeString(v protoreflect.Value, _ *encodeOptions) any { return v.String() }

func encodeBytes(v protoreflect.Value, _ *encodeOptions) any {
	return base64.StdEncoding.EncodeToString(v.Bytes())
}

func encodeInt32(v protoreflect.Value, _ *encodeOptions) any  { return int32(v.Int()) }
func encodeUint32(v protoreflect.Value, _ *encodeOptions) any { return uint32(v.Uint()) }

func encodeInt64(v protoreflect.Value, o *encodeOptions) any {
	if o.int64AsString {
		return strconv.FormatInt(v.Int(), 10)
	}
	return v.Int()
}

func encodeUint64(v protoreflect.Value, o *encodeOptions) any {
	if o.int64AsString {
		return strconv.FormatUint(v.Uint(), 10)
	}
	return v.Uint()
}

func encodeFloat(v protoreflect.Value, _ *encodeOptions) any {
	f := v.Float()
	if s, ok := nonFiniteString(f); ok {
		return s
	}
	return float32(f)
}

func encodeDouble(v protoreflect.Value, _ *encodeOptions) any {
	f := v.Float()
	if s, ok := nonFiniteString(f); ok {
		return s
	}
	return f
}

// nonFiniteString spells NaN and the infinities the way protojson does,
// since JSON numbers cannot carry them.
func nonFiniteString(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	default:
		return "", false
	}
}

func decodeBool(value any) (protoreflect.Value, error) {
	b, ok := value.(bool)
	if !ok {
		return protoreflect.Value{}, invalidf("expected bool, got %T", value)
	}
	return protoreflect.ValueOfBool(b), nil
}

func decodeString(value any) (protoreflect.Value, error) {
	s, ok := value.(string)
	if !ok {
		return protoreflect.Value{}, invalidf("expected string, got %T", value)
	}
	return protoreflect.ValueOfString(s), nil
}

func decodeBytes(value any) (protoreflect.Value, error) {
	switch v := value.(type) {
	case []byte:
		return protoreflect.ValueOfBytes(v), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			// protojson also accepts the URL-safe alphabet.
			var urlErr error
			b, urlErr = base64.URLEncoding.DecodeString(v)
			if urlErr != nil {
				return protoreflect.Value{}, fmt.Errorf("%w: %v", ErrMalformedBytes, err)
			}
		}
		return protoreflect.ValueOfBytes(b), nil
	default:
		return protoreflect.Value{}, invalidf("expected base64 string, got %T", value)
	}
}

func decodeInt32(value any) (protoreflect.Value, error) {
	i64, err := toInt64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	if i64 < math.MinInt32 || i64 > math.MaxInt32 {
		return protoreflect.Value{}, invalidf("value %d overflows int32", i64)
	}
	return protoreflect.ValueOfInt32(int32(i64)), nil
}

func decodeInt64(value any) (protoreflect.Value, error) {
	i64, err := toInt64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	return protoreflect.ValueOfInt64(i64), nil
}

func decodeUint32(value any) (protoreflect.Value, error) {
	u64, err := toUint64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	if u64 > math.MaxUint32 {
		return protoreflect.Value{}, invalidf("value %d overflows uint32", u64)
	}
	return protoreflect.ValueOfUint32(uint32(u64)), nil
}

func decodeUint64(value any) (protoreflect.Value, error) {
	u64, err := toUint64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	return protoreflect.ValueOfUint64(u64), nil
}

// float32Overflow is the smallest magnitude that rounds to infinity as a
// float32. Shortest-form text of MaxFloat32 parses to a float64 just above
// MaxFloat32 and must still be accepted.
const float32Overflow = 0x1.ffffffp127

func decodeFloat(value any) (protoreflect.Value, error) {
	f64, err := toFloat64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	if !math.IsInf(f64, 0) && math.Abs(f64) >= float32Overflow {
		return protoreflect.Value{}, invalidf("value %g overflows float", f64)
	}
	return protoreflect.ValueOfFloat32(float32(f64)), nil
}

func decodeDouble(value any) (protoreflect.Value, error) {
	f64, err := toFloat64(value)
	if err != nil {
		return protoreflect.Value{}, err
	}
	return protoreflect.ValueOfFloat64(f64), nil
}

// toInt64 converts the numeric forms a decoded document may carry to int64.
// Floats must be integral; strings and json.Number must be decimal integers.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, invalidf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalidf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case json.Number:
		return parseInt64(string(v))
	case string:
		return parseInt64(v)
	default:
		return 0, invalidf("cannot convert %T to integer", value)
	}
}

// toUint64 converts the numeric forms a decoded document may carry to uint64.
func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case json.Number:
		return parseUint64(string(v))
	case string:
		return parseUint64(v)
	case float32:
		return floatToUint64(float64(v))
	case float64:
		return floatToUint64(v)
	default:
		i64, err := toInt64(value)
		if err != nil {
			return 0, err
		}
		if i64 < 0 {
			return 0, invalidf("negative value %d cannot be converted to unsigned", i64)
		}
		return uint64(i64), nil
	}
}

// toFloat64 converts numbers, json.Number and numeric strings to float64.
// The strings "NaN", "Infinity" and "-Infinity" are accepted.
func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return parseFloat64(string(v))
	case string:
		switch v {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return parseFloat64(v)
	default:
		return 0, invalidf("cannot convert %T to float", value)
	}
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, invalidf("value %g is not an integer", f)
	}
	// float64(MaxInt64) rounds up to 2^63, which is already out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, invalidf("value %g overflows int64", f)
	}
	return int64(f), nil
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, invalidf("value %g is not an integer", f)
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, invalidf("value %g overflows uint64", f)
	}
	return uint64(f), nil
}

func parseInt64(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Accept exponent forms such as "1e3" when they are integral.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, invalidf("cannot parse %q as integer", s)
		}
		return floatToInt64(f)
	}
	return i, nil
}

func parseUint64(s string) (uint64, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, invalidf("cannot parse %q as unsigned integer", s)
		}
		return floatToUint64(f)
	}
	return u, nil
}

func parseFloat64(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalidf("cannot parse %q as float", s)
	}
	return f, nil
}
