// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history groups sessions (or anything dated) into the sidebar's
// Today / Yesterday / Previous 7 Days / Older sections.
package history

import "time"

// Dated is anything with a timestamp.
type Dated interface {
	When() time.Time
}

// Bucket identifies a history section.
type Bucket int

// Buckets in display order.
const (
	Today Bucket = iota
	Yesterday
	Past7Days
	Older
)

// AllBuckets lists every bucket in display order.
var AllBuckets = []Bucket{Today, Yesterday, Past7Days, Older}

// Label returns the section heading.
func (b Bucket) Label() string {
	switch b {
	case Today:
		return "Today"
	case Yesterday:
		return "Yesterday"
	case Past7Days:
		return "Previous 7 Days"
	default:
		return "Older"
	}
}

// String returns the bucket key.
func (b Bucket) String() string {
	switch b {
	case Today:
		return "today"
	case Yesterday:
		return "yesterday"
	case Past7Days:
		return "past7days"
	default:
		return "older"
	}
}

// Classify places t relative to now by calendar date in now's location.
// Time of day is ignored. A zero t is Older; a t after today is Today.
func Classify(t, now time.Time) Bucket {
	if t.IsZero() {
		return Older
	}
	days := DaysBetween(t, now)
	switch {
	case days <= 0:
		return Today
	case days == 1:
		return Yesterday
	case days <= 7:
		return Past7Days
	default:
		return Older
	}
}

// DaysBetween returns how many calendar days t lies before now, both taken
// in now's location. Negative when t is on a later date.
func DaysBetween(t, now time.Time) int {
	loc := now.Location()
	ty, tm, td := t.In(loc).Date()
	ny, nm, nd := now.Date()
	// Midnight UTC on both dates: the difference is an exact multiple of 24h
	// regardless of DST changes in loc.
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// Buckets is the result of Group. Within a bucket, input order is kept.
type Buckets[T Dated] struct {
	Today     []T
	Yesterday []T
	Past7Days []T
	Older     []T
}

// Group partitions items into buckets relative to now. Every item lands in
// exactly one bucket.
func Group[T Dated](items []T, now time.Time) Buckets[T] {
	var out Buckets[T]
	for _, item := range items {
		switch Classify(item.When(), now) {
		case Today:
			out.Today = append(out.Today, item)
		case Yesterday:
			out.Yesterday = append(out.Yesterday, item)
		case Past7Days:
			out.Past7Days = append(out.Past7Days, item)
		default:
			out.Older = append(out.Older, item)
		}
	}
	return out
}

// Get returns the items of one bucket.
func (b Buckets[T]) Get(bucket Bucket) []T {
	switch bucket {
	case Today:
		return b.Today
	case Yesterday:
		return b.Yesterday
	case Past7Days:
		return b.Past7Days
	default:
		return b.Older
	}
}

// Len is the total number of grouped items.
func (b Buckets[T]) Len() int {
	return len(b.Today) + len(b.Yesterday) + len(b.Past7Days) + len(b.Older)
}

// Section is a non-empty bucket ready for display.
type Section[T Dated] struct {
	Bucket Bucket
	Label  string
	Items  []T
}

// Sections returns the non-empty buckets in display order.
func (b Buckets[T]) Sections() []Section[T] {
	var out []Section[T]
	for _, bucket := range AllBuckets {
		if items := b.Get(bucket); len(items) > 0 {
			out = append(out, Section[T]{Bucket: bucket, Label: bucket.Label(), Items: items})
		}
	}
	return out
}

// Flatten returns the items in display order, the order in which a sidebar
// numbers them.
func (b Buckets[T]) Flatten() []T {
	out := make([]T, 0, b.Len())
	for _, bucket := range AllBuckets {
		out = append(out, b.Get(bucket)...)
	}
	return out
}
