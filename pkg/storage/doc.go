/*
Package storage keeps an append-only journal of drain events in a bbolt file.

# Layout

Each event becomes a RoundRecord stored as JSON in the "rounds" bucket under
a big-endian sequence key, so a cursor walks entries in the order they were
written:

	rounds/
	  0000000000000001 → {"event":"drain.started", ...}
	  0000000000000002 → {"event":"round.backoff", "reason":"too many backfills", ...}
	  0000000000000003 → {"event":"round.progress", "changes":[...], ...}

The journal is for operators ("ceph-gentle-drain history"). The controller
never reads it back, and a drain resumes from the cluster's own weights, not
from the journal.

# Locking

bbolt takes an exclusive file lock for writers. While a drain holds the
journal open, history cannot read it and fails after a two second timeout.

# Usage

Recording a drain:

	store, err := storage.NewBoltStore("/var/lib/gentle-drain/journal.db")
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := storage.NewRecorder(store, broker.Subscribe())
	recorder.Start()
	...
	broker.Stop()
	recorder.Wait()

Reading it back:

	store, err := storage.OpenBoltStoreReadOnly(path)
	if err != nil {
		return err // a missing file is an error, never created
	}
	defer store.Close()

	records, err := store.ListRounds(20) // newest 20, oldest first
*/
package storage
