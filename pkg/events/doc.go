/*
Package events provides an in-memory event broker used to carry the copy
pipeline's task signals and the dispatcher's slave/task notifications to
interested subscribers without coupling publishers to listeners.

# Architecture

	┌──────────────── EVENT BROKER ────────────────┐
	│  Publish → eventCh (buffer 100) → broadcast   │
	│  loop → per-subscriber channel (buffer 50)    │
	└────────────────────────────────────────────────┘

Publish never blocks on a slow subscriber: a full subscriber channel simply
drops the event for that subscriber. Subscribers that need every event
(tests, in particular) should drain promptly.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{Type: events.EventTaskFinished, Message: task.ID()})
*/
package events
