package series

import (
	"encoding/json"
	"math"
	"strconv"
)

var nan = math.NaN()

// Values is a float slice whose missing (NaN or infinite) entries are encoded
// as JSON null.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+12*len(v))
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler; null entries become NaN.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = nan
		} else {
			out[i] = *p
		}
	}
	*v = out
	return nil
}

func valuesOf(src []float64) Values {
	return append(Values(nil), src...)
}
