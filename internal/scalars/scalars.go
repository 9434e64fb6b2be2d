// Package scalars defines the custom GraphQL scalars shared by every schema type.
// Each scalar is a singleton: graphql-go rejects two distinct types with one name.
package scalars

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

var (
	decimalOnce sync.Once
	decimal     *graphql.Scalar

	nonNegativeIntOnce sync.Once
	nonNegativeInt     *graphql.Scalar
)

// NonNegativeInt is used for page sizes.
func NonNegativeInt() *graphql.Scalar {
	nonNegativeIntOnce.Do(func() {
		nonNegativeInt = graphql.NewScalar(graphql.ScalarConfig{
			Name:        "NonNegativeInt",
			Description: "An integer greater than or equal to zero.",
			Serialize: func(value interface{}) interface{} {
				if parsed, ok := coerceNonNegativeInt(value); ok {
					return parsed
				}
				return nil
			},
			ParseValue: func(value interface{}) interface{} {
				if parsed, ok := coerceNonNegativeInt(value); ok {
					return parsed
				}
				return nil
			},
			ParseLiteral: func(valueAST ast.Value) interface{} {
				intValue, ok := valueAST.(*ast.IntValue)
				if !ok {
					return nil
				}
				parsed, err := strconv.Atoi(intValue.Value)
				if err != nil || parsed < 0 {
					return nil
				}
				return parsed
			},
		})
	})
	return nonNegativeInt
}

// Decimal carries money amounts as exact strings.
func Decimal() *graphql.Scalar {
	decimalOnce.Do(func() {
		decimal = graphql.NewScalar(graphql.ScalarConfig{
			Name:        "Decimal",
			Description: "Fixed-point decimal value serialized as a string.",
			Serialize: func(value interface{}) interface{} {
				switch v := value.(type) {
				case []byte:
					return string(v)
				case string:
					return v
				case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
					return fmt.Sprintf("%v", v)
				case float32, float64:
					return fmt.Sprintf("%v", v)
				default:
					return nil
				}
			},
			ParseValue: func(value interface{}) interface{} {
				switch v := value.(type) {
				case string:
					return parseDecimal(v)
				case []byte:
					return parseDecimal(string(v))
				case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
					return fmt.Sprintf("%v", v)
				case float64:
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return nil
					}
					return strconv.FormatFloat(v, 'f', -1, 64)
				case float32:
					if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
						return nil
					}
					return strconv.FormatFloat(float64(v), 'f', -1, 32)
				default:
					return nil
				}
			},
			ParseLiteral: func(valueAST ast.Value) interface{} {
				switch v := valueAST.(type) {
				case *ast.StringValue:
					return parseDecimal(v.Value)
				case *ast.IntValue:
					return v.Value
				case *ast.FloatValue:
					return parseDecimal(v.Value)
				default:
					return nil
				}
			},
		})
	})
	return decimal
}

// decimalLiteral rejects exponents and Go base prefixes.
var decimalLiteral = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)$`)

// parseDecimal returns s when it is a plain decimal literal, nil otherwise.
func parseDecimal(s string) interface{} {
	s = strings.TrimSpace(s)
	if !decimalLiteral.MatchString(s) {
		return nil
	}
	return s
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
