package assert

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

// Range panics if min is greater than max.
func Range[T ~int | ~int64 | ~float64](min, max T) {
	if min > max {
		panic("expected min to be less than or equal to max")
	}
}
