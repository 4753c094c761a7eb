package forecast

// WindowSample maps a fixed-length window to the value that follows it.
type WindowSample struct {
	Features []float64
	Target   float64
}

// BuildWindows produces len(values)-window samples. Features alias values.
func BuildWindows(values []float64, window int) ([]WindowSample, error) {
	if window < 1 {
		return nil, invalidParams("windows", "window size %d", window)
	}
	if len(values) <= window {
		return nil, insufficient("windows", len(values), window+1)
	}
	out := make([]WindowSample, 0, len(values)-window)
	for i := 0; i+window < len(values); i++ {
		out = append(out, WindowSample{Features: values[i : i+window], Target: values[i+window]})
	}
	return out, nil
}
