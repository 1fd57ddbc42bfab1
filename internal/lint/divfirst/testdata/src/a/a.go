package a

func vested(amount, elapsed, duration uint64) uint64 {
	return amount / duration * elapsed // want "integer division before multiplication"
}

func vestedCorrect(amount, elapsed, duration uint64) uint64 {
	return amount * elapsed / duration
}

func nested(a, b, c int) int {
	return c * (a / b) // want "integer division before multiplication"
}

func assign(a, b, c int) int {
	c *= a / b // want "integer division before multiplication"
	return c
}

func float(a, b, c float64) float64 {
	return a / b * c
}

func constant(c int) int {
	const perDay = 86400 / 60
	return perDay * c * (3600 / 60)
}
