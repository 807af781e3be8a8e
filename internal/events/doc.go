// Package events carries lifecycle notifications between services.
//
// Services emit a LifecycleEvent after a state change has committed. Handlers
// registered on the emitter react to it, for example by scheduling a provider
// notification email. Emitting never rolls back the change that caused it.
//
// The primary components are:
// - LifecycleEvent: a typed record of something that happened
// - EventHandler: interface for components that react to events
// - EventEmitter: interface for components that publish events
package events
