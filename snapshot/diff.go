package snapshot

import (
	"sort"
	"time"

	"menuwatch/models"
)

// Diff compares two snapshots keyed by identity and returns the change
// events: additions and removals first, then field changes over the
// tracked fields {quantity, min_order, price}.
//
// Field values are compared as normalized strings, so a price stored
// as "5" and one recomputed as 5.00 never produce a spurious event.
// All events from one invocation share ts; within each group, events
// are ordered by identity ascending so output is deterministic.
// Diff(s, s, ts) is empty for any snapshot s.
func Diff(previous, current *models.Snapshot, ts time.Time) []models.ChangeEvent {
	var events []models.ChangeEvent

	for _, id := range sortedKeys(current) {
		if _, ok := previous.Records[id]; ok {
			continue
		}
		rec := current.Records[id]
		events = append(events, models.ChangeEvent{
			Timestamp: ts,
			Type:      models.ChangeAdded,
			Identity:  id,
			Name:      rec.Name,
			Link:      rec.Link,
		})
	}

	for _, id := range sortedKeys(previous) {
		if _, ok := current.Records[id]; ok {
			continue
		}
		last := previous.Records[id]
		events = append(events, models.ChangeEvent{
			Timestamp: ts,
			Type:      models.ChangeRemoved,
			Identity:  id,
			Name:      last.Name,
			Link:      last.Link,
		})
	}

	for _, id := range sortedKeys(previous) {
		newRec, ok := current.Records[id]
		if !ok {
			continue
		}
		oldRec := previous.Records[id]
		for _, field := range models.TrackedFields {
			oldVal, newVal := oldRec.Field(field), newRec.Field(field)
			if oldVal == newVal {
				continue
			}
			events = append(events, models.ChangeEvent{
				Timestamp: ts,
				Type:      models.ChangeField,
				Identity:  id,
				Name:      newRec.Name,
				Link:      newRec.Link,
				Field:     field,
				Old:       oldVal,
				New:       newVal,
			})
		}
	}

	return events
}

func sortedKeys(s *models.Snapshot) []string {
	keys := make([]string, 0, s.Len())
	for id := range s.Records {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
