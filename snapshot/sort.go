package snapshot

import (
	"sort"
	"strings"

	"menuwatch/classify"
	"menuwatch/models"
)

// Sort orders records for presentation: tier rank, then lab rank, then
// case-insensitive name. The order is total because name is part of
// identity, so no two distinct records tie on all three keys.
func Sort(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ta, tb := classify.TierRank(a.Tier), classify.TierRank(b.Tier); ta != tb {
			return ta < tb
		}
		if la, lb := classify.LabRank(a.Lab), classify.LabRank(b.Lab); la != lb {
			return la < lb
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// Sorted returns the snapshot's records in presentation order.
func Sorted(s *models.Snapshot) []*models.Record {
	records := make([]*models.Record, 0, s.Len())
	for _, rec := range s.Records {
		records = append(records, rec)
	}
	Sort(records)
	return records
}
