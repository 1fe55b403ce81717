// Package carddav provides a CardDAV client implementation.
//
// CardDAV is defined in RFC 6352.
package carddav

import (
	"time"

	"github.com/emersion/go-vcard"
)

type AddressBook struct {
	Path            string
	Name            string
	Description     string
	MaxResourceSize int64
}

type AddressBookQuery struct {
	Props []string
}

type AddressBookMultiGet struct {
	Paths []string
	Props []string
}

type AddressObject struct {
	Path    string
	ModTime time.Time
	ETag    string
	Card    vcard.Card
}

// SyncResult is the decoded outcome of a sync-collection REPORT on an
// address book. Updated entries carry the path and etag of changed address
// objects; their data must be fetched separately, e.g. with
// MultiGetAddressBook.
type SyncResult struct {
	SyncToken string
	Updated   []AddressObject
	Deleted   []string
	// MoreResults is true if the server truncated the result set. Re-issue
	// the sync with the returned SyncToken to fetch the remainder.
	MoreResults bool
}
