package davclient

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ResourceTypeName     = xml.Name{Space: "DAV:", Local: "resourcetype"}
	DisplayNameName      = xml.Name{Space: "DAV:", Local: "displayname"}
	GetETagName          = xml.Name{Space: "DAV:", Local: "getetag"}
	GetContentTypeName   = xml.Name{Space: "DAV:", Local: "getcontenttype"}
	GetContentLengthName = xml.Name{Space: "DAV:", Local: "getcontentlength"}
	GetLastModifiedName  = xml.Name{Space: "DAV:", Local: "getlastmodified"}

	CurrentUserPrincipalName    = xml.Name{Space: "DAV:", Local: "current-user-principal"}
	CurrentUserPrivilegeSetName = xml.Name{Space: "DAV:", Local: "current-user-privilege-set"}

	// SyncTokenName is the sync-token property defined in RFC 6578
	// section 6.1, advertised by collections supporting the
	// sync-collection REPORT.
	SyncTokenName = xml.Name{Space: "DAV:", Local: "sync-token"}

	// CollectionName identifies collection resources inside resourcetype.
	CollectionName = xml.Name{Space: "DAV:", Local: "collection"}
)

func init() {
	RegisterProperty(ResourceTypeName, decodeResourceType)
	RegisterProperty(DisplayNameName, decodeDisplayName)
	RegisterProperty(GetETagName, decodeGetETag)
	RegisterProperty(GetContentTypeName, decodeGetContentType)
	RegisterProperty(GetContentLengthName, decodeGetContentLength)
	RegisterProperty(GetLastModifiedName, decodeGetLastModified)
	RegisterProperty(CurrentUserPrincipalName, decodeCurrentUserPrincipal)
	RegisterProperty(CurrentUserPrivilegeSetName, decodeCurrentUserPrivilegeSet)
	RegisterProperty(SyncTokenName, decodeSyncToken)
}

// ETag is an entity tag, defined in RFC 7232 section 2.3. Its XML form is
// quoted.
type ETag string

func (etag *ETag) UnmarshalText(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("davclient: failed to unquote ETag: %v", err)
	}
	*etag = ETag(s)
	return nil
}

func (etag ETag) MarshalText() ([]byte, error) {
	if etag == "" {
		return nil, fmt.Errorf("davclient: cannot marshal empty ETag")
	}
	return []byte(etag.String()), nil
}

func (etag ETag) String() string {
	return fmt.Sprintf("%q", string(etag))
}

// ResourceType is the resourcetype property, defined in RFC 4918
// section 15.9.
type ResourceType struct {
	Names []xml.Name
}

func (*ResourceType) PropertyName() xml.Name { return ResourceTypeName }

// Is returns true if the resource type contains the provided name.
func (t *ResourceType) Is(name xml.Name) bool {
	for _, n := range t.Names {
		if n == name {
			return true
		}
	}
	return false
}

func decodeResourceType(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name      `xml:"DAV: resourcetype"`
		Raw     []rawTypeName `xml:",any"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	t := &ResourceType{}
	for _, raw := range v.Raw {
		t.Names = append(t.Names, raw.XMLName)
	}
	return t, nil
}

type rawTypeName struct {
	XMLName xml.Name
}

// DisplayName is the displayname property, defined in RFC 4918
// section 15.2.
type DisplayName struct {
	Name string
}

func (*DisplayName) PropertyName() xml.Name { return DisplayNameName }

func decodeDisplayName(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: displayname"`
		Name    string   `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &DisplayName{Name: v.Name}, nil
}

// GetETag is the getetag property, defined in RFC 4918 section 15.6.
type GetETag struct {
	ETag ETag
}

func (*GetETag) PropertyName() xml.Name { return GetETagName }

func decodeGetETag(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: getetag"`
		ETag    ETag     `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &GetETag{ETag: v.ETag}, nil
}

// GetContentType is the getcontenttype property, defined in RFC 4918
// section 15.5.
type GetContentType struct {
	Type string
}

func (*GetContentType) PropertyName() xml.Name { return GetContentTypeName }

func decodeGetContentType(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: getcontenttype"`
		Type    string   `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &GetContentType{Type: v.Type}, nil
}

// GetContentLength is the getcontentlength property, defined in RFC 4918
// section 15.4.
type GetContentLength struct {
	Length int64
}

func (*GetContentLength) PropertyName() xml.Name { return GetContentLengthName }

func decodeGetContentLength(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: getcontentlength"`
		Length  int64    `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	if v.Length < 0 {
		return nil, fmt.Errorf("davclient: getcontentlength must be non-negative")
	}
	return &GetContentLength{Length: v.Length}, nil
}

// GetLastModified is the getlastmodified property, defined in RFC 4918
// section 15.7.
type GetLastModified struct {
	ModTime time.Time
}

func (*GetLastModified) PropertyName() xml.Name { return GetLastModifiedName }

func decodeGetLastModified(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: getlastmodified"`
		Text    string   `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	t, err := http.ParseTime(v.Text)
	if err != nil {
		return nil, fmt.Errorf("davclient: failed to parse getlastmodified: %v", err)
	}
	return &GetLastModified{ModTime: t}, nil
}

// CurrentUserPrincipal is the current-user-principal property, defined in
// RFC 5397 section 3.
type CurrentUserPrincipal struct {
	Href string
}

func (*CurrentUserPrincipal) PropertyName() xml.Name { return CurrentUserPrincipalName }

func decodeCurrentUserPrincipal(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: current-user-principal"`
		Href    string   `xml:"href"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &CurrentUserPrincipal{Href: v.Href}, nil
}

// CurrentUserPrivilegeSet is the current-user-privilege-set property,
// defined in RFC 3744 section 5.4. Only the privilege names are surfaced;
// this client doesn't manipulate ACLs.
type CurrentUserPrivilegeSet struct {
	Privileges []xml.Name
}

func (*CurrentUserPrivilegeSet) PropertyName() xml.Name { return CurrentUserPrivilegeSetName }

// Has returns true if the set grants the provided privilege, e.g.
// {"DAV:", "write"}.
func (s *CurrentUserPrivilegeSet) Has(name xml.Name) bool {
	for _, n := range s.Privileges {
		if n == name {
			return true
		}
	}
	return false
}

func decodeCurrentUserPrivilegeSet(p *RawProperty) (Property, error) {
	var v struct {
		XMLName    xml.Name `xml:"DAV: current-user-privilege-set"`
		Privileges []struct {
			Raw []rawTypeName `xml:",any"`
		} `xml:"privilege"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	s := &CurrentUserPrivilegeSet{}
	for _, priv := range v.Privileges {
		for _, raw := range priv.Raw {
			s.Privileges = append(s.Privileges, raw.XMLName)
		}
	}
	return s, nil
}

// SyncToken is the sync-token property, defined in RFC 6578 section 6.1.
// The token is opaque and only meaningful to the server that issued it.
type SyncToken struct {
	Token string
}

func (*SyncToken) PropertyName() xml.Name { return SyncTokenName }

func decodeSyncToken(p *RawProperty) (Property, error) {
	var v struct {
		XMLName xml.Name `xml:"DAV: sync-token"`
		Token   string   `xml:",chardata"`
	}
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &SyncToken{Token: v.Token}, nil
}
