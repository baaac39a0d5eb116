package toolhost

// Args are the validated arguments of a tool call.
// Integers are normalized to int64 and numbers to float64.
type Args map[string]any

// Has returns true if the argument is present and not nil.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the string argument, or empty string.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument, or 0.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the boolean argument, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}
