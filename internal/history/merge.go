package history

import "sort"

// Merge deduplicates items by URL, keeping the record with the greatest
// last-visit timestamp, and returns the result sorted by recency
// descending. It is pure and idempotent.
func Merge(items []*Item) []*Item {
	byURL := make(map[string]*Item, len(items))
	for _, it := range items {
		if prev, ok := byURL[it.URL]; ok && prev.LastVisit >= it.LastVisit {
			continue
		}
		byURL[it.URL] = it
	}

	merged := make([]*Item, 0, len(byURL))
	for _, it := range byURL {
		merged = append(merged, it)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].LastVisit != merged[j].LastVisit {
			return merged[i].LastVisit > merged[j].LastVisit
		}
		// stable ordering for identical timestamps
		return merged[i].URL < merged[j].URL
	})

	return merged
}
