// Package davclient implements a WebDAV client protocol engine.
//
// The engine turns multistatus response bodies (RFC 4918) into typed,
// queryable resource state and implements the sync-collection REPORT
// (RFC 6578) used for incremental change detection. Protocol extensions
// such as CalDAV and CardDAV build their own REPORT bodies and feed the
// responses through this engine, see the caldav and carddav packages.
package davclient

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/emersion/go-davclient/internal"
)

// HTTPClient performs HTTP requests. It's implemented by *http.Client.
type HTTPClient = internal.HTTPClient

// HTTPError is an error due to an HTTP response with an unexpected status
// code, e.g. a rejected sync limit. It may be retried per the semantics of
// its status code.
type HTTPError = internal.HTTPError

// ProtocolError is an error due to a structurally invalid server response.
// It indicates a non-conformant server and shouldn't be blindly retried.
type ProtocolError = internal.ProtocolError

// IsNotFound returns true if the error is an HTTPError with a 404 status
// code.
func IsNotFound(err error) bool {
	return internal.IsNotFound(err)
}

// IsUnsupportedLimit returns true if the error indicates that the server
// rejected the limit of a sync-collection REPORT outright (RFC 6578
// section 3.12). This is distinct from mid-listing truncation, which is
// reported through Collection.FurtherResults.
func IsUnsupportedLimit(err error) bool {
	httpErr, ok := err.(*HTTPError)
	if !ok || httpErr.Code != http.StatusInsufficientStorage {
		return false
	}
	return internal.HasErrorCondition(httpErr.Err, internal.NumberOfMatchesWithinLimitsName)
}

// Client provides access to a remote WebDAV server.
type Client struct {
	ic *internal.Client
}

// NewClient creates a client bound to the provided endpoint. If c is nil,
// http.DefaultClient is used.
func NewClient(c HTTPClient, endpoint string) (*Client, error) {
	ic, err := internal.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{ic}, nil
}

func (c *Client) SetBasicAuth(username, password string) {
	c.ic.SetBasicAuth(username, password)
}

// Options reports the DAV compliance classes and allowed methods advertised
// by the resource.
func (c *Client) Options(path string) (classes map[string]bool, methods map[string]bool, err error) {
	return c.ic.Options(path)
}

// FindCurrentUserPrincipal locates the principal resource of the
// authenticated user, as described in RFC 5397 section 3.
func (c *Client) FindCurrentUserPrincipal() (string, error) {
	propfind := internal.NewPropNamePropfind(CurrentUserPrincipalName)

	resp, err := c.ic.PropfindFlat("", propfind)
	if err != nil {
		return "", err
	}

	var prop struct {
		XMLName xml.Name      `xml:"DAV: current-user-principal"`
		Href    internal.Href `xml:"DAV: href"`
	}
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}

	return prop.Href.Path, nil
}

// FileInfo describes a single resource, decoded from the well-known
// file-related WebDAV properties.
type FileInfo struct {
	Path     string
	Size     int64
	ModTime  time.Time
	IsDir    bool
	MIMEType string
	ETag     string
}

var fileInfoPropNames = []xml.Name{
	ResourceTypeName,
	GetContentLengthName,
	GetLastModifiedName,
	GetContentTypeName,
	GetETagName,
}

func fileInfoFromResource(res *Resource) FileInfo {
	fi := FileInfo{Path: res.Href.Path}
	if res.IsCollection() {
		fi.IsDir = true
	} else {
		if p, ok := res.Prop(GetContentLengthName).(*GetContentLength); ok {
			fi.Size = p.Length
		}
		if p, ok := res.Prop(GetContentTypeName).(*GetContentType); ok {
			fi.MIMEType = p.Type
		}
		if p, ok := res.Prop(GetETagName).(*GetETag); ok {
			fi.ETag = string(p.ETag)
		}
	}
	if p, ok := res.Prop(GetLastModifiedName).(*GetLastModified); ok {
		fi.ModTime = p.ModTime
	}
	return fi
}

// Stat fetches the file-related properties of a single resource.
func (c *Client) Stat(path string) (*FileInfo, error) {
	propfind := internal.NewPropNamePropfind(fileInfoPropNames...)
	resp, err := c.ic.PropfindFlat(path, propfind)
	if err != nil {
		return nil, err
	}

	out, err := resolveOutcome(c.ic.ResolveHref(path), resp)
	if err != nil {
		return nil, err
	}
	if out.disp != dispositionFound {
		return nil, internal.HTTPErrorf(http.StatusNotFound, "davclient: resource %q not found", path)
	}

	fi := fileInfoFromResource(out.res)
	return &fi, nil
}

// ReadDir lists the immediate members of a collection.
func (c *Client) ReadDir(path string) ([]FileInfo, error) {
	col := c.Collection(path)
	if err := col.List(fileInfoPropNames...); err != nil {
		return nil, err
	}

	l := make([]FileInfo, 0, len(col.Members))
	for i := range col.Members {
		l = append(l, fileInfoFromResource(&col.Members[i]))
	}
	return l, nil
}
