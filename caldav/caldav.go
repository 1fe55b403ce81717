// Package caldav provides a CalDAV client implementation.
//
// CalDAV is defined in RFC 4791.
package caldav

import (
	"time"

	"github.com/emersion/go-ical"
)

type Calendar struct {
	Path            string
	Name            string
	Description     string
	MaxResourceSize int64
}

type CalendarCompRequest struct {
	Name string

	AllProps bool
	Props    []string

	AllComps bool
	Comps    []CalendarCompRequest
}

type CompFilter struct {
	Name       string
	Start, End time.Time
	Comps      []CompFilter
}

type CalendarQuery struct {
	CompRequest CalendarCompRequest
	CompFilter  CompFilter
}

type CalendarMultiGet struct {
	Paths       []string
	CompRequest CalendarCompRequest
}

type CalendarObject struct {
	Path    string
	ModTime time.Time
	ETag    string
	Data    *ical.Calendar
}

// SyncResult is the decoded outcome of a sync-collection REPORT on a
// calendar collection. Updated entries carry the path and etag of changed
// calendar objects; their data must be fetched separately, e.g. with
// MultiGetCalendar.
type SyncResult struct {
	SyncToken string
	Updated   []CalendarObject
	Deleted   []string
	// MoreResults is true if the server truncated the result set. Re-issue
	// the sync with the returned SyncToken to fetch the remainder.
	MoreResults bool
}
