package channel

// Route binds a message kind to a Go payload type, so handlers and senders of
// that kind agree on T.
//
//	var Score = channel.NewRoute[ScoreUpdate]("score")
//
//	Score.Handle(client, func(s ScoreUpdate) { ... })
//	err := Score.Send(client, ScoreUpdate{Value: 42})
type Route[T any] struct {
	kind string
}

// NewRoute returns the route for kind.
func NewRoute[T any](kind string) Route[T] {
	return Route[T]{kind: kind}
}

// Kind returns the route's message kind.
func (r Route[T]) Kind() string {
	return r.kind
}

// Handle registers fn for the route's kind on c. Payloads that do not decode
// into T are logged and dropped.
func (r Route[T]) Handle(c *Client, fn func(T)) {
	c.On(r.kind, func(data Payload) {
		var v T
		if err := Decode(data, &v); err != nil {
			c.logger.Warn("Dropping %q payload: %v", r.kind, err)

			return
		}

		fn(v)
	})
}

// Send transmits v under the route's kind.
func (r Route[T]) Send(c *Client, v T) error {
	return c.Send(r.kind, v)
}
