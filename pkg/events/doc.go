/*
Package events provides the in-memory broker that fans drain events out to
subscribers.

# Architecture

	Shell.publish ──► eventCh (buffer: 100) ──► broadcast loop
	                                              │
	                          ┌───────────────────┼──────────────┐
	                          ▼                   ▼              ▼
	                   Subscriber (50)     Subscriber (50)     ...
	                   storage.Recorder

Publish never blocks the drain. A subscriber whose buffer is full misses the
event rather than stalling the broadcast loop.

# Event Types

	drain.started    the shell began its first round
	round.progress   weight was lowered (Result carries the changes)
	round.backoff    backfills or latency above threshold (Result.Reason)
	round.complete   every target is at weight 0
	round.failed     a cluster or benchmark call failed (Error)
	pool.ready       the scratch pool exists
	pool.released    the scratch pool was deleted
	pool.kept        the scratch pool could not be deleted
	drain.finished   the shell returned, complete or not

Every event carries the RunID of the shell that published it.

# Shutdown

Stop delivers whatever is still queued and then closes every subscriber
channel, so a consumer ranging over its Subscriber sees the final
drain.finished event before the loop ends. Events published after Stop are
dropped.

# Usage

	broker := events.NewBroker()
	broker.Start()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventPoolReady,
		Message:  "scratch pool ready",
		Metadata: map[string]string{"pool": "test"},
	})

	broker.Stop()

Publish fills in ID and Timestamp when they are empty.
*/
package events
