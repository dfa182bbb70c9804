// Package channel provides generic queue interfaces for decoupled communication.
package channel

// Receiver provides read access to a queue.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a queue.
type Sender[T any] interface {
	Send(T)
	// TrySend enqueues without blocking and reports whether v was accepted.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// New creates a queue holding up to size pending values.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
