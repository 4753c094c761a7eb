package forecast

// MinMaxScaler maps the fitted range onto [0,1].
type MinMaxScaler struct {
	Min   float64 `json:"min"`
	Scale float64 `json:"scale"`
}

// FitMinMax fits on the full range of values. A zero range scales by 1.
func FitMinMax(values []float64) MinMaxScaler {
	if len(values) == 0 {
		return MinMaxScaler{Scale: 1}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	scale := hi - lo
	if scale == 0 {
		scale = 1
	}
	return MinMaxScaler{Min: lo, Scale: scale}
}

func (s MinMaxScaler) Transform(v float64) float64 { return (v - s.Min) / s.Scale }

func (s MinMaxScaler) Inverse(v float64) float64 { return v*s.Scale + s.Min }

// TransformAll returns a new normalized slice.
func (s MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}
