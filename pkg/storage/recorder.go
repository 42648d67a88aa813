package storage

import (
	"github.com/AntonOks/ceph-scripts/pkg/events"
	"github.com/AntonOks/ceph-scripts/pkg/log"
)

// Recorder appends every event from a broker subscription to a Store
type Recorder struct {
	store Store
	sub   events.Subscriber
	done  chan struct{}
}

// NewRecorder creates a recorder reading from sub
func NewRecorder(store Store, sub events.Subscriber) *Recorder {
	return &Recorder{
		store: store,
		sub:   sub,
		done:  make(chan struct{}),
	}
}

// Start consumes events until the subscription is closed
func (r *Recorder) Start() {
	go r.run()
}

// Wait blocks until the subscription has been drained
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	logger := log.WithComponent("journal")

	for event := range r.sub {
		if err := r.store.AppendRound(RecordFromEvent(event)); err != nil {
			logger.Error().Err(err).Str("event", string(event.Type)).Msg("failed to journal event")
		}
	}
}

// RecordFromEvent flattens an event into a journal record
func RecordFromEvent(event *events.Event) *RoundRecord {
	rec := &RoundRecord{
		ID:        event.ID,
		RunID:     event.RunID,
		Round:     event.Round,
		Event:     string(event.Type),
		Timestamp: event.Timestamp,
		Duration:  event.Duration,
		Error:     event.Error,
		Message:   event.Message,
	}
	if res := event.Result; res != nil {
		rec.Status = string(res.Status)
		rec.Reason = res.Reason
		rec.Delta = res.Delta
		rec.TotalWeight = res.TotalWeight
		rec.Backfills = res.Backfills
		rec.LatencyMs = res.LatencyMs
		for _, c := range res.Changes {
			rec.Changes = append(rec.Changes, Change{OSD: c.NodeID, From: c.From, To: c.To})
		}
	}
	return rec
}
