package davclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Stat(t *testing.T) {
	srv := serveMultistatus(t, "PROPFIND", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
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

	fi, err := client.Stat("/col/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "/col/notes.txt", fi.Path)
	require.False(t, fi.IsDir)
	require.Equal(t, int64(42), fi.Size)
	require.Equal(t, "text/plain", fi.MIMEType)
	require.Equal(t, "abc", fi.ETag)
	require.Equal(t, time.Date(2015, 2, 6, 1, 22, 35, 0, time.UTC), fi.ModTime)
}

func TestClient_Stat_missing(t *testing.T) {
	srv := serveMultistatus(t, "PROPFIND", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/col/gone.txt</D:href>
    <D:propstat>
      <D:prop><D:getetag/></D:prop>
      <D:status>HTTP/1.1 404 Not Found</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	_, err := client.Stat("/col/gone.txt")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestClient_FindCurrentUserPrincipal(t *testing.T) {
	srv := serveMultistatus(t, "PROPFIND", `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/</D:href>
    <D:propstat>
      <D:prop>
        <D:current-user-principal>
          <D:href>/principals/users/cyrus/</D:href>
        </D:current-user-principal>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	principal, err := client.FindCurrentUserPrincipal()
	require.NoError(t, err)
	require.Equal(t, "/principals/users/cyrus/", principal)
}

func TestClient_ReadDir(t *testing.T) {
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
    <D:href>/col/a.txt</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype/>
        <D:getcontentlength>1</D:getcontentlength>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`)
	client := newTestClient(t, srv)

	l, err := client.ReadDir("/col/")
	require.NoError(t, err)
	require.Len(t, l, 2)
	require.True(t, l[0].IsDir)
	require.Equal(t, "/col/a.txt", l[1].Path)
	require.Equal(t, int64(1), l[1].Size)
}
