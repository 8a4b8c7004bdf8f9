package bot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned when embed color can not be parsed
var ErrInvalidColor = errors.New("invalid color")

// Color is an embed color accepting either a number or a hex string in JSON
type Color int

// UnmarshalJSON implementation
func (c *Color) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	if data[0] == '"' {
		var s string

		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		v, err := ParseColor(s)
		if err != nil {
			return err
		}

		*c = Color(v)

		return nil
	}

	var n int64

	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidColor, data)
	}

	if n < 0 || n > 0xffffff {
		return fmt.Errorf("%w: %d out of range", ErrInvalidColor, n)
	}

	*c = Color(n)

	return nil
}

// ParseColor parses color into RGB integer: "#rrggbb" and "#rgb" are hex, all-digit strings are
// decimal, anything else is tried as hex without leading "#"
func ParseColor(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 || n > 0xffffff {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidColor, n)
		}

		return int(n), nil
	}

	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	col, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidColor, s)
	}

	r, g, b := col.RGB255()

	return int(r)<<16 | int(g)<<8 | int(b), nil
}
