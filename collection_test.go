package davclient

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveMultistatus(t *testing.T, wantMethod string, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != wantMethod {
			t.Errorf("unexpected method %v, want %v", r.Method, wantMethod)
		}
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	return client
}

// https://tools.ietf.org/html/rfc6578#section-3.8
const initialSyncBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:" xmlns:R="urn:ns.example.com:boxschema">
  <D:response>
    <D:href>/home/cyrus/webdav/collection/test.doc</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"00001-abcd1"</D:getetag>
        <R:bigbox><R:BoxType>Box type A</R:BoxType></R:bigbox>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/home/cyrus/webdav/collection/vcard.vcf</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"00002-abcd1"</D:getetag>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
    <D:propstat>
      <D:prop><R:bigbox/></D:prop>
      <D:status>HTTP/1.1 404 Not Found</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/home/cyrus/webdav/collection/calendar.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"00003-abcd1"</D:getetag>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:sync-token>http://example.com/ns/sync/1234</D:sync-token>
</D:multistatus>`

func TestCollection_Sync_initial(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", initialSyncBody)
	client := newTestClient(t, srv)

	col := client.Collection("/home/cyrus/webdav/collection/")
	require.NoError(t, col.Sync(nil))

	require.Len(t, col.Members, 3)
	wantETags := []ETag{"00001-abcd1", "00002-abcd1", "00003-abcd1"}
	wantPaths := []string{
		"/home/cyrus/webdav/collection/test.doc",
		"/home/cyrus/webdav/collection/vcard.vcf",
		"/home/cyrus/webdav/collection/calendar.ics",
	}
	for i := range col.Members {
		member := &col.Members[i]
		require.Equal(t, wantPaths[i], member.Href.Path)
		etag, ok := member.Prop(GetETagName).(*GetETag)
		require.True(t, ok, "member %v is missing getetag", i)
		require.Equal(t, wantETags[i], etag.ETag)
	}

	// The vendor-specific bigbox property has no registered decoder and is
	// skipped without failing the sync.
	require.Nil(t, col.Members[0].Prop(xml.Name{Space: "urn:ns.example.com:boxschema", Local: "bigbox"}))

	require.Empty(t, col.Related)
	require.Empty(t, col.RemovedMembers)
	require.False(t, col.FurtherResults)
	require.Equal(t, "http://example.com/ns/sync/1234", col.SyncToken)
}

// https://tools.ietf.org/html/rfc6578#section-3.10
const truncatedSyncBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/home/cyrus/webdav/collection/test.doc</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"00001-abcd2"</D:getetag>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/home/cyrus/webdav/collection/vcard.vcf</D:href>
    <D:status>HTTP/1.1 404 Not Found</D:status>
  </D:response>
  <D:response>
    <D:href>/home/cyrus/webdav/collection/</D:href>
    <D:status>HTTP/1.1 507 Insufficient Storage</D:status>
    <D:error><D:number-of-matches-within-limits/></D:error>
  </D:response>
  <D:sync-token>http://example.com/ns/sync/1233</D:sync-token>
</D:multistatus>`

func TestCollection_Sync_truncated(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", truncatedSyncBody)
	client := newTestClient(t, srv)

	col := client.Collection("/home/cyrus/webdav/collection/")
	require.NoError(t, col.Sync(&SyncQuery{
		SyncToken: "http://example.com/ns/sync/1232",
		Limit:     100,
	}))

	require.Len(t, col.Members, 1)
	require.Equal(t, "/home/cyrus/webdav/collection/test.doc", col.Members[0].Href.Path)

	require.Len(t, col.RemovedMembers, 1)
	require.Equal(t, "/home/cyrus/webdav/collection/vcard.vcf", col.RemovedMembers[0].Href.Path)

	// The 507 marker response signals truncation, it never becomes a member.
	require.True(t, col.FurtherResults)
	require.Equal(t, "http://example.com/ns/sync/1233", col.SyncToken)
}

// https://tools.ietf.org/html/rfc6578#section-3.12
func TestCollection_Sync_limitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=\"utf-8\"")
		w.WriteHeader(http.StatusInsufficientStorage)
		io.WriteString(w, `<?xml version="1.0" encoding="utf-8" ?>
<D:error xmlns:D="DAV:"><D:number-of-matches-within-limits/></D:error>`)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv)

	col := client.Collection("/home/cyrus/webdav/collection/")
	col.Members = []Resource{{Href: &url.URL{Path: "/home/cyrus/webdav/collection/test.doc"}}}
	col.SyncToken = "http://example.com/ns/sync/1232"

	err := col.Sync(&SyncQuery{SyncToken: col.SyncToken, Limit: 100})
	require.Error(t, err)

	httpErr, ok := err.(*HTTPError)
	require.True(t, ok, "Sync() = %T, want an *HTTPError", err)
	require.Equal(t, http.StatusInsufficientStorage, httpErr.Code)
	require.True(t, IsUnsupportedLimit(err))
	require.False(t, IsNotFound(err))

	// A failed sync leaves the previous snapshot untouched.
	require.Len(t, col.Members, 1)
	require.Equal(t, "http://example.com/ns/sync/1232", col.SyncToken)
}

func TestCollection_Sync_missingToken(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/test.doc</D:href>
    <D:status>HTTP/1.1 200 OK</D:status>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	col.SyncToken = "http://example.com/ns/sync/1"

	err := col.Sync(&SyncQuery{SyncToken: col.SyncToken})
	require.Error(t, err)
	_, ok := err.(*ProtocolError)
	require.True(t, ok, "Sync() = %T, want a *ProtocolError", err)

	// The protocol violation leaves the previous snapshot untouched.
	require.Equal(t, "http://example.com/ns/sync/1", col.SyncToken)
}

func TestCollection_Sync_empty(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:sync-token>http://example.com/ns/sync/1</D:sync-token>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	require.NoError(t, col.Sync(nil))
	require.Empty(t, col.Members)
	require.Empty(t, col.RemovedMembers)
	require.False(t, col.FurtherResults)
	require.Equal(t, "http://example.com/ns/sync/1", col.SyncToken)
}

func TestCollection_Sync_selfIsRelated(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/</D:href>
    <D:propstat>
      <D:prop><D:displayname>My collection</D:displayname></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/col/a.doc</D:href>
    <D:propstat>
      <D:prop><D:getetag>"1"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:sync-token>http://example.com/ns/sync/2</D:sync-token>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	require.NoError(t, col.Sync(nil))

	require.Len(t, col.Members, 1)
	require.Equal(t, "/col/a.doc", col.Members[0].Href.Path)

	require.Len(t, col.Related, 1)
	name, ok := col.Related[0].Prop(DisplayNameName).(*DisplayName)
	require.True(t, ok)
	require.Equal(t, "My collection", name.Name)
}

func TestCollection_Sync_replacesState(t *testing.T) {
	bodies := []string{initialSyncBody, truncatedSyncBody}
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, bodies[n])
		n++
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv)

	col := client.Collection("/home/cyrus/webdav/collection/")
	require.NoError(t, col.Sync(nil))
	require.Len(t, col.Members, 3)

	// Reports replace the decoded state wholesale, they never accumulate.
	require.NoError(t, col.Sync(&SyncQuery{SyncToken: col.SyncToken}))
	require.Len(t, col.Members, 1)
	require.Len(t, col.RemovedMembers, 1)
	require.Equal(t, "http://example.com/ns/sync/1233", col.SyncToken)
}

func TestCollection_Sync_duplicateHrefs(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/a.doc</D:href>
    <D:propstat>
      <D:prop><D:getetag>"old"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/col/b.doc</D:href>
    <D:propstat>
      <D:prop><D:getetag>"b"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/col/a.doc</D:href>
    <D:propstat>
      <D:prop><D:getetag>"new"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/col/b.doc</D:href>
    <D:status>HTTP/1.1 404 Not Found</D:status>
  </D:response>
  <D:sync-token>http://example.com/ns/sync/3</D:sync-token>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	require.NoError(t, col.Sync(nil))

	// A href reported twice collapses to its last outcome: a.doc keeps the
	// later etag, b.doc ends up removed and never shows up as a member.
	require.Len(t, col.Members, 1)
	require.Equal(t, "/col/a.doc", col.Members[0].Href.Path)
	etag, ok := col.Members[0].Prop(GetETagName).(*GetETag)
	require.True(t, ok)
	require.Equal(t, ETag("new"), etag.ETag)

	require.Len(t, col.RemovedMembers, 1)
	require.Equal(t, "/col/b.doc", col.RemovedMembers[0].Href.Path)
}

func TestCollection_Sync_non207(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:"></D:multistatus>`)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv)

	// A 2xx status other than 207 on a multistatus-bearing method is a
	// protocol violation, not a success.
	err := client.Collection("/col/").Sync(nil)
	require.Error(t, err)
	_, ok := err.(*ProtocolError)
	require.True(t, ok, "Sync() = %T, want a *ProtocolError", err)
}

func TestCollection_Sync_markerOnForeignHref(t *testing.T) {
	srv := serveMultistatus(t, "REPORT", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/other/</D:href>
    <D:status>HTTP/1.1 507 Insufficient Storage</D:status>
    <D:error><D:number-of-matches-within-limits/></D:error>
  </D:response>
  <D:response>
    <D:href>/col/a.doc</D:href>
    <D:propstat>
      <D:prop><D:getetag>"1"</D:getetag></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:sync-token>http://example.com/ns/sync/6</D:sync-token>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	require.NoError(t, col.Sync(nil))

	// The truncation marker only counts on the request URL itself; on any
	// other href the 507 is a per-resource error yielding no outcome.
	require.False(t, col.FurtherResults)
	require.Len(t, col.Members, 1)
	require.Equal(t, "/col/a.doc", col.Members[0].Href.Path)
}

func TestCollection_List(t *testing.T) {
	srv := serveMultistatus(t, "PROPFIND", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/col/notes.txt</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype/>
        <D:getcontentlength>42</D:getcontentlength>
        <D:getcontenttype>text/plain</D:getcontenttype>
        <D:getetag>"abc"</D:getetag>
        <D:getlastmodified>Fri, 06 Feb 2015 01:22:35 GMT</D:getlastmodified>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	// A listing includes the collection itself and doesn't touch the sync
	// token.
	col := client.Collection("/col/")
	require.NoError(t, col.List())
	require.Len(t, col.Members, 2)
	require.True(t, col.Members[0].IsCollection())
	require.False(t, col.Members[1].IsCollection())
	require.Empty(t, col.SyncToken)
}

func TestCollection_List_limitMarkerRejected(t *testing.T) {
	srv := serveMultistatus(t, "PROPFIND", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/</D:href>
    <D:status>HTTP/1.1 507 Insufficient Storage</D:status>
    <D:error><D:number-of-matches-within-limits/></D:error>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	col := client.Collection("/col/")
	err := col.List()
	require.Error(t, err)
	_, ok := err.(*ProtocolError)
	require.True(t, ok, "List() = %T, want a *ProtocolError", err)
}
