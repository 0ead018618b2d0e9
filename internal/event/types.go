package event

// Handler is the interface for subscriber callbacks.
type Handler interface {
	// Handle receives the arguments of a Fire call.
	Handle(args ...any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(args ...any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(args ...any) error {
	return f(args...)
}

// Coroutine is a suspended unit of work that a Waiter resumes.
// *task.Task implements it; host runtimes supply their own.
type Coroutine interface {
	// Accepts reports whether a resume carrying n values fits.
	Accepts(n int) bool

	// Resume continues the coroutine with args. Values it produces are
	// discarded by Fire.
	Resume(args ...any) ([]any, error)

	// Close forcibly terminates the coroutine so its scoped cleanup runs.
	Close() error
}

// FireSummary describes one Fire frame.
type FireSummary struct {
	// Args is the number of forwarded arguments.
	Args int

	// Nested is true when the frame ran inside another Fire of the same event.
	Nested bool

	// SubscribersInvoked counts handler invocations, including failed ones.
	SubscribersInvoked int

	// SubscriberFailures counts handlers that returned an error or panicked.
	SubscriberFailures int

	// WaitersResumed counts resume attempts, including failed ones.
	WaitersResumed int

	// WaiterFailures counts resumes that failed.
	WaiterFailures int

	// WaitersSkipped counts waiters skipped for capacity.
	WaitersSkipped int
}

// Observer is notified once per Fire frame.
type Observer interface {
	ObserveFire(e *Event, summary FireSummary)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(e *Event, summary FireSummary)

// ObserveFire implements the Observer interface.
func (f ObserverFunc) ObserveFire(e *Event, summary FireSummary) {
	f(e, summary)
}

// Stats contains cumulative event statistics.
type Stats struct {
	// Fires is the number of Fire frames that dispatched, nested ones included.
	Fires uint64

	// Rejected is the number of Fire calls refused for capacity.
	Rejected uint64

	// HandlersExecuted is the total number of handler invocations.
	HandlersExecuted uint64

	// HandlerErrors is the number of handler invocations that failed.
	HandlerErrors uint64

	// WaitersResumed is the number of waiter resume attempts.
	WaitersResumed uint64

	// WaiterErrors is the number of waiter resumes that failed.
	WaiterErrors uint64

	// WaitersSkipped is the number of waiters dropped for capacity.
	WaitersSkipped uint64
}
