package davclient

import (
	"encoding/xml"
	"io"
	"net/url"

	"github.com/emersion/go-davclient/internal"
)

// SyncQuery configures a sync-collection REPORT (RFC 6578).
type SyncQuery struct {
	// SyncToken is the token returned by the previous report. An empty
	// token requests an initial sync, fetching the collection's entire
	// current state plus a fresh token.
	SyncToken string
	// InfiniteDepth requests recursion into sub-collections. Most servers
	// only support a sync level of 1; the flag is never upgraded silently.
	InfiniteDepth bool
	// Limit advises the server to cap the number of returned changes.
	// Zero means no limit. A compliant server may reject the request
	// instead, see IsUnsupportedLimit.
	Limit int
	// Props lists the property names to fetch for each changed resource.
	// If empty, getetag is requested.
	Props []xml.Name
}

type reportMode int

const (
	fullListing reportMode = iota
	syncDiff
)

// Collection is a resource with members, bound to one URL and one
// transport. Each report call replaces the collection's decoded state
// wholesale; the previous snapshot must be copied by the caller if needed.
//
// A Collection must not be used concurrently from several goroutines.
// Distinct Collection instances are independent.
type Collection struct {
	// Members holds the resources decoded from the most recent report, in
	// document order.
	Members []Resource
	// Related holds resources referenced in the same response that aren't
	// members, e.g. the collection's own properties returned alongside its
	// children during a sync.
	Related []Resource
	// RemovedMembers holds the resources reported as removed since the
	// last sync token. Only their Href is populated.
	RemovedMembers []Resource
	// SyncToken is the opaque token issued by the server, replaced
	// wholesale on every successful sync.
	SyncToken string
	// FurtherResults is true if the server truncated the result set. The
	// caller must re-issue the report with the returned SyncToken to fetch
	// the remainder; this engine doesn't auto-paginate.
	FurtherResults bool

	ic   *internal.Client
	path string
	url  *url.URL
	body io.Closer
}

// Collection binds a collection state to a path on the client's endpoint.
func (c *Client) Collection(path string) *Collection {
	return &Collection{
		ic:   c.ic,
		path: path,
		url:  c.ic.ResolveHref(path),
	}
}

// Path returns the path the collection was bound to.
func (col *Collection) Path() string {
	return col.path
}

// URL returns the collection's resolved URL.
func (col *Collection) URL() *url.URL {
	return col.url
}

// Sync performs a sync-collection REPORT and replaces the collection's
// state with the decoded delta: changed resources land in Members, removed
// ones in RemovedMembers, the collection's own metadata in Related.
func (col *Collection) Sync(query *SyncQuery) error {
	if query == nil {
		query = &SyncQuery{}
	}

	level := internal.DepthOne
	if query.InfiniteDepth {
		level = internal.DepthInfinity
	}

	var limit *internal.Limit
	if query.Limit > 0 {
		limit = &internal.Limit{NResults: uint(query.Limit)}
	}

	names := query.Props
	if len(names) == 0 {
		names = []xml.Name{GetETagName}
	}

	mr, err := col.ic.SyncCollection(col.path, query.SyncToken, level, limit, propFromNames(names))
	if err != nil {
		return err
	}
	return col.apply(mr, syncDiff)
}

// List performs a PROPFIND with depth 1 and replaces Members with every
// resource of the response, the collection itself included.
func (col *Collection) List(names ...xml.Name) error {
	if len(names) == 0 {
		names = fileInfoPropNames
	}
	propfind := internal.NewPropNamePropfind(names...)

	req, err := col.ic.NewXMLRequest("PROPFIND", col.path, propfind)
	if err != nil {
		return err
	}
	req.Header.Add("Depth", internal.DepthOne.String())

	mr, err := col.ic.DoMultiStatus(req)
	if err != nil {
		return err
	}
	return col.apply(mr, fullListing)
}

// Report sends a REPORT request with the provided body and folds the
// multistatus response into Members. It's meant for protocol extensions
// assembling their own report bodies, e.g. calendar-query or
// addressbook-multiget.
func (col *Collection) Report(v interface{}) error {
	mr, err := col.ic.Report(col.path, internal.DepthOne, v)
	if err != nil {
		return err
	}
	return col.apply(mr, fullListing)
}

// apply folds the parsed outcomes into the collection. The decoded state is
// only replaced once the whole body has been consumed successfully, and the
// body is released on every exit path.
func (col *Collection) apply(mr *internal.MultistatusReader, mode reportMode) error {
	col.body = mr
	defer col.Close()

	// A href reported by several response elements collapses to a single
	// entry: the later outcome wins, the first occurrence fixes the
	// document order.
	var order []string
	outcomes := make(map[string]*resourceOutcome)
	further := false

	for {
		resp, err := mr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		out, err := resolveOutcome(col.url, resp)
		if err != nil {
			return err
		}

		switch out.disp {
		case dispositionLimitExceeded:
			if mode != syncDiff {
				return internal.ProtocolErrorf("unexpected number-of-matches-within-limits response in listing")
			}
			further = true
		case dispositionSkip:
			// No outcome, an earlier entry for the href is left alone.
		default:
			key := out.href.String()
			if _, ok := outcomes[key]; !ok {
				order = append(order, key)
			}
			outcomes[key] = out
		}
	}

	token := mr.SyncToken()
	if mode == syncDiff && token == "" {
		// RFC 6578 section 3.3: the server must return a sync token with
		// every successful response.
		return internal.ProtocolErrorf("missing sync-token element in sync-collection response")
	}

	var members, related, removed []Resource
	for _, key := range order {
		out := outcomes[key]
		switch out.disp {
		case dispositionFound:
			if mode == syncDiff && sameResource(out.href, col.url) {
				related = append(related, *out.res)
			} else {
				members = append(members, *out.res)
			}
		case dispositionMissing:
			if mode == syncDiff {
				removed = append(removed, Resource{Href: out.href})
			}
			// In a listing, a missing resource simply doesn't exist.
		}
	}

	col.Members = members
	col.Related = related
	col.RemovedMembers = removed
	col.FurtherResults = further
	if mode == syncDiff {
		col.SyncToken = token
	}
	return nil
}

// Close releases the response body of the most recent report call. It is
// idempotent. Decoded properties stay valid after Close.
func (col *Collection) Close() error {
	if col.body == nil {
		return nil
	}
	err := col.body.Close()
	col.body = nil
	return err
}

func propFromNames(names []xml.Name) *internal.Prop {
	children := make([]internal.RawXMLValue, len(names))
	for i, name := range names {
		children[i] = *internal.NewRawXMLElement(name, nil, nil)
	}
	return &internal.Prop{Raw: children}
}
