package resolve

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/ruler/pkg/core"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ConvertValue converts a discriminator literal to the given value type.
func ConvertValue(vt core.ValueType, literal string) (any, error) {
	s := strings.TrimSpace(literal)
	switch vt {
	case core.TypeString:
		return literal, nil
	case core.TypeInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return i, nil
	case core.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return f, nil
	case core.TypeDecimal:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return json.Number(s), nil
	case core.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return b, nil
	case core.TypeUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return u, nil
	case core.TypeTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot convert %q to %s: unrecognized time format", literal, vt)
	case core.TypeBytes:
		h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", literal, vt, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot convert %q: unknown value type %d", literal, vt)
	}
}
