package holiday

import (
	"sort"
	"time"
)

// DefaultAnchorMaxDays is how close a sale start must land to a holiday to
// be treated as anchored to it.
const DefaultAnchorMaxDays = 7

// defaultNearestMaxDays bounds the generic nearest-holiday search.
const defaultNearestMaxDays = 14

// Calendar memoizes per-year holiday listings. It replaces a process-wide
// cache: each pipeline run owns its own Calendar, so runs share no hidden
// state. Not safe for concurrent use; give each goroutine its own.
type Calendar struct {
	years map[int][]Info
}

// NewCalendar returns an empty Calendar.
func NewCalendar() *Calendar {
	return &Calendar{years: make(map[int][]Info)}
}

// Year returns all holidays of a year sorted by date.
func (c *Calendar) Year(year int) []Info {
	if infos, ok := c.years[year]; ok {
		return infos
	}
	infos := make([]Info, 0, len(All))
	for _, h := range All {
		info, err := Get(h, year)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Date.Before(infos[j].Date)
	})
	c.years[year] = infos
	return infos
}

// Nearest finds the holiday closest to d within maxDays, scanning d's year
// plus the adjacent year when d falls in December or January so that
// year-boundary holidays are not missed. Equal distances resolve by scan
// order. Returns false when nothing is within maxDays.
func (c *Calendar) Nearest(d time.Time, maxDays int) (Info, bool) {
	if maxDays <= 0 {
		maxDays = defaultNearestMaxDays
	}
	candidates := c.Year(d.Year())
	switch d.Month() {
	case time.December:
		candidates = append(candidates[:len(candidates):len(candidates)], c.Year(d.Year()+1)...)
	case time.January:
		candidates = append(candidates[:len(candidates):len(candidates)], c.Year(d.Year()-1)...)
	}

	var nearest Info
	found := false
	minDistance := maxDays + 1
	for _, info := range candidates {
		distance := int(d.Sub(info.Date).Hours() / 24)
		if distance < 0 {
			distance = -distance
		}
		if distance <= maxDays && distance < minDistance {
			minDistance = distance
			nearest = info
			found = true
		}
	}
	return nearest, found
}

// DetectAnchor reports the holiday a sale date is likely anchored to, if any.
func (c *Calendar) DetectAnchor(d time.Time) (Holiday, bool) {
	return c.DetectAnchorWithin(d, DefaultAnchorMaxDays)
}

// DetectAnchorWithin is DetectAnchor with a caller-supplied proximity bound.
// maxDays <= 0 falls back to DefaultAnchorMaxDays.
func (c *Calendar) DetectAnchorWithin(d time.Time, maxDays int) (Holiday, bool) {
	if maxDays <= 0 {
		maxDays = DefaultAnchorMaxDays
	}
	info, ok := c.Nearest(d, maxDays)
	if !ok {
		return "", false
	}
	return info.Holiday, true
}
