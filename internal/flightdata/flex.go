package flightdata

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexFloat tolerates providers that emit numbers as JSON strings, numbers,
// or null in the same field across responses.
type FlexFloat struct {
	value   float64
	present bool
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexFloat
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		f.present = true
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil // Garbage string values are treated as absent
		}
		f.value = parsed
		f.present = true
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexFloat", data)
}

// Float64 returns the value, or 0 when absent
func (f FlexFloat) Float64() float64 {
	return f.value
}

// Present reports whether the field carried a usable numeric value
func (f FlexFloat) Present() bool {
	return f.present
}
