package event

// DefaultMaxArgs is the default number of arguments a Fire call may forward.
const DefaultMaxArgs = 1024

// Option configures an Event.
type Option func(*eventConfig)

// eventConfig contains configuration for an event.
type eventConfig struct {
	// name labels the event in diagnostics.
	name string

	// reporter receives dispatch failures.
	reporter Reporter

	// observer is notified after every Fire frame.
	observer Observer

	// maxArgs bounds the arguments a Fire call may forward.
	maxArgs int
}

// defaultEventConfig returns sensible default configuration.
func defaultEventConfig() eventConfig {
	return eventConfig{
		reporter: DefaultReporter(),
		maxArgs:  DefaultMaxArgs,
	}
}

// WithName sets the event's diagnostic name.
func WithName(name string) Option {
	return func(c *eventConfig) {
		c.name = name
	}
}

// WithReporter sets where dispatch failures are reported.
func WithReporter(r Reporter) Option {
	return func(c *eventConfig) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithObserver sets an observer notified after every Fire frame.
func WithObserver(o Observer) Option {
	return func(c *eventConfig) {
		c.observer = o
	}
}

// WithMaxArgs bounds the number of arguments a Fire call may forward.
func WithMaxArgs(n int) Option {
	return func(c *eventConfig) {
		if n >= 0 {
			c.maxArgs = n
		}
	}
}

// WaitOption configures a Wait call.
type WaitOption func(*waitConfig)

type waitConfig struct {
	closeOnError bool
}

// WithCloseOnError closes the waiting task if resuming it fails, which runs
// its pending cleanups.
func WithCloseOnError() WaitOption {
	return func(c *waitConfig) {
		c.closeOnError = true
	}
}
