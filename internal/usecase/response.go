package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/outfitter/backend/internal/domain"
)

// decodeStructured parses a model response into v. Markdown fences and text
// around the JSON object are tolerated; anything that does not decode into v is ErrParse.
func decodeStructured(raw string, v any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in response", domain.ErrParse)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s[start : end+1])))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return nil
}

// looseText accepts a JSON string, number or null. Models return prices both ways.
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	d := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(d, []byte("null")):
		*t = ""
	case len(d) > 0 && d[0] == '"':
		var s string
		if err := json.Unmarshal(d, &s); err != nil {
			return err
		}
		*t = looseText(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(d, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", string(d))
		}
		*t = looseText(n.String())
	}
	return nil
}

// score is a 0-100 integer score. Fractional values are rounded; anything out
// of range or non-numeric fails decoding.
type score int

func (s *score) UnmarshalJSON(data []byte) error {
	d := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(d, 64)
	if err != nil {
		return fmt.Errorf("score %s is not a number", string(data))
	}
	if v < 0 || v > 100 || math.IsNaN(v) {
		return fmt.Errorf("score %v out of range 0-100", v)
	}
	*s = score(math.Round(v))
	return nil
}
