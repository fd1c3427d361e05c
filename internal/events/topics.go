package events

// Kafka topics for invocation lifecycle events
const (
	TopicInvocationEvents = "hermes.invocation.events"
)

// Event types carried on the invocation topic
const (
	EventInvocationCompleted = "invocation.completed"
	EventInvocationFailed    = "invocation.failed"
)
