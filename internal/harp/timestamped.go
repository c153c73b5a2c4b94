// internal/harp/timestamped.go
package harp

// Timestamped pairs a decoded value with the device timestamp, in seconds,
// taken from the reply envelope. Plain data, owned by value.
type Timestamped[T any] struct {
	Value   T
	Seconds float64
}

func NewTimestamped[T any](v T, seconds float64) Timestamped[T] {
	return Timestamped[T]{Value: v, Seconds: seconds}
}
