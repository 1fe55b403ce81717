package internal

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Namespace is the WebDAV XML namespace defined in RFC 4918 section 10.1.
const Namespace = "DAV:"

var (
	MultistatusName = xml.Name{Space: Namespace, Local: "multistatus"}
	ResponseName    = xml.Name{Space: Namespace, Local: "response"}
	HrefName        = xml.Name{Space: Namespace, Local: "href"}
	PropstatName    = xml.Name{Space: Namespace, Local: "propstat"}
	PropName        = xml.Name{Space: Namespace, Local: "prop"}
	StatusName      = xml.Name{Space: Namespace, Local: "status"}
	ErrorName       = xml.Name{Space: Namespace, Local: "error"}

	// SyncTokenName is defined in RFC 6578 section 6.2.
	SyncTokenName = xml.Name{Space: Namespace, Local: "sync-token"}
	// NumberOfMatchesWithinLimitsName is defined in RFC 6578 section 3.12.
	NumberOfMatchesWithinLimitsName = xml.Name{Space: Namespace, Local: "number-of-matches-within-limits"}
)

// Status is an HTTP status line, defined in RFC 4918 section 14.28.
type Status struct {
	Code int
	Text string
}

func (s *Status) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if s.Code <= 0 {
		return fmt.Errorf("davclient: cannot marshal status with missing code")
	}
	text := s.Text
	if text == "" {
		text = http.StatusText(s.Code)
	}
	return e.EncodeElement(fmt.Sprintf("HTTP/1.1 %v %v", s.Code, text), start)
}

func (s *Status) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	// Some servers omit the reason phrase, so only the protocol and the
	// three-digit code are required.
	parts := strings.SplitN(raw, " ", 3)
	if len(parts) < 2 {
		return ProtocolErrorf("invalid HTTP status %q: expected a status line", raw)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return ProtocolErrorf("invalid HTTP status %q: failed to parse code: %v", raw, err)
	}
	s.Code = code
	if len(parts) == 3 {
		s.Text = parts[2]
	} else {
		s.Text = ""
	}
	return nil
}

// Err returns nil for 2xx statuses and an *HTTPError otherwise. A zero
// Status (no status element present) is treated as success.
func (s *Status) Err() error {
	if s == nil || s.Code == 0 {
		return nil
	}
	if s.Code/100 != 2 {
		return &HTTPError{Code: s.Code}
	}
	return nil
}

// Href is a URL wrapped in a DAV:href element. Relative references are kept
// as-is, resolution against the request URL happens at a higher layer.
type Href url.URL

func (h *Href) String() string {
	u := (*url.URL)(h)
	return u.String()
}

func (h *Href) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(h.String(), start)
}

func (h *Href) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	*h = Href(*u)
	return nil
}

// Multistatus is the root element of a 207 response body, defined in
// RFC 4918 section 14.16. It is the collected form of a response; see
// MultistatusReader for the streaming form.
type Multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []Response `xml:"DAV: response"`
	SyncToken string     `xml:"DAV: sync-token,omitempty"`
}

// Get returns the response whose href matches the provided path. If the
// response carries an error status, the corresponding *HTTPError is
// returned.
func (ms *Multistatus) Get(p string) (*Response, error) {
	for i := range ms.Responses {
		resp := &ms.Responses[i]
		for _, h := range resp.Hrefs {
			if h.Path == p {
				return resp, resp.Err()
			}
		}
	}
	return nil, HTTPErrorf(http.StatusNotFound, "davclient: missing response for path %q", p)
}

// Response is defined in RFC 4918 section 14.24. Exactly one href is
// required by this client, although the grammar allows several for legacy
// methods.
type Response struct {
	XMLName   xml.Name   `xml:"DAV: response"`
	Hrefs     []Href     `xml:"DAV: href"`
	Propstats []Propstat `xml:"DAV: propstat,omitempty"`
	Status    *Status    `xml:"DAV: status,omitempty"`
	Error     *Error     `xml:"DAV: error,omitempty"`
}

// Href returns the response's single href.
func (resp *Response) Href() (*Href, error) {
	if len(resp.Hrefs) != 1 {
		return nil, ProtocolErrorf("expected exactly one href element in response, got %v", len(resp.Hrefs))
	}
	return &resp.Hrefs[0], nil
}

// Path returns the path of the response's href.
func (resp *Response) Path() (string, error) {
	h, err := resp.Href()
	if err != nil {
		return "", err
	}
	return h.Path, resp.Err()
}

// Err returns the error carried by the response's top-level status, if any.
func (resp *Response) Err() error {
	if resp.Status == nil || resp.Status.Code/100 == 2 {
		return nil
	}

	var err error
	if resp.Error != nil {
		err = resp.Error
	}
	return &HTTPError{Code: resp.Status.Code, Err: err}
}

// DecodeProp decodes a list of properties from the response's propstat
// elements. Each value must be a pointer to a struct with an XMLName field.
// If a property is reported with a failure status, the corresponding
// *HTTPError is returned; absent properties yield a 404 *HTTPError.
func (resp *Response) DecodeProp(values ...interface{}) error {
	for _, v := range values {
		name, err := valueXMLName(v)
		if err != nil {
			return err
		}
		if err := resp.Err(); err != nil {
			return newPropError(err, name)
		}
		found := false
		for i := range resp.Propstats {
			propstat := &resp.Propstats[i]
			raw := propstat.Prop.Get(name)
			if raw == nil {
				continue
			}
			found = true
			if err := propstat.Status.Err(); err != nil {
				return newPropError(err, name)
			}
			if err := raw.Decode(v); err != nil {
				return newPropError(err, name)
			}
		}
		if !found {
			return newPropError(&HTTPError{Code: http.StatusNotFound}, name)
		}
	}
	return nil
}

func newPropError(err error, name xml.Name) error {
	wrapped := fmt.Errorf("property <%v %v>: %w", name.Space, name.Local, err)
	if httpErr, ok := err.(*HTTPError); ok {
		return &HTTPError{Code: httpErr.Code, Err: wrapped}
	}
	return wrapped
}

// Propstat is defined in RFC 4918 section 14.22.
type Propstat struct {
	XMLName xml.Name `xml:"DAV: propstat"`
	Prop    Prop     `xml:"DAV: prop"`
	Status  Status   `xml:"DAV: status"`
	Error   *Error   `xml:"DAV: error,omitempty"`
}

// Prop is defined in RFC 4918 section 14.18. Its children are kept raw and
// decoded on demand.
type Prop struct {
	XMLName xml.Name      `xml:"DAV: prop"`
	Raw     []RawXMLValue `xml:",any"`
}

// EncodeProp builds a Prop element from a list of marshallable values.
func EncodeProp(values ...interface{}) (*Prop, error) {
	l := make([]RawXMLValue, len(values))
	for i, v := range values {
		raw, err := EncodeRawXMLElement(v)
		if err != nil {
			return nil, err
		}
		l[i] = *raw
	}
	return &Prop{Raw: l}, nil
}

// Get returns the raw value for the property with the provided name, or nil
// if the prop block doesn't contain it.
func (p *Prop) Get(name xml.Name) *RawXMLValue {
	for i := range p.Raw {
		raw := &p.Raw[i]
		if n, ok := raw.XMLName(); ok && name == n {
			return raw
		}
	}
	return nil
}

// Error is defined in RFC 4918 section 14.5. Servers use it to convey
// machine-readable failure conditions, e.g. number-of-matches-within-limits.
type Error struct {
	XMLName xml.Name      `xml:"DAV: error"`
	Raw     []RawXMLValue `xml:",any"`
}

func (err *Error) Error() string {
	b, _ := xml.Marshal(err)
	return string(b)
}

// Has returns true if the error contains a condition element with the
// provided name.
func (err *Error) Has(name xml.Name) bool {
	if err == nil {
		return false
	}
	for i := range err.Raw {
		if n, ok := err.Raw[i].XMLName(); ok && name == n {
			return true
		}
	}
	return false
}

// HasErrorCondition reports whether err is or wraps a DAV error carrying
// the provided condition element.
func HasErrorCondition(err error, name xml.Name) bool {
	for err != nil {
		if davErr, ok := err.(*Error); ok {
			return davErr.Has(name)
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Propfind is defined in RFC 4918 section 14.20.
type Propfind struct {
	XMLName xml.Name  `xml:"DAV: propfind"`
	Prop    *Prop     `xml:"DAV: prop,omitempty"`
	AllProp *struct{} `xml:"DAV: allprop,omitempty"`
}

// NewPropNamePropfind builds a Propfind requesting the provided property
// names.
func NewPropNamePropfind(names ...xml.Name) *Propfind {
	children := make([]RawXMLValue, len(names))
	for i, name := range names {
		children[i] = *NewRawXMLElement(name, nil, nil)
	}
	return &Propfind{Prop: &Prop{Raw: children}}
}

// SyncCollectionQuery is the sync-collection REPORT request body, defined
// in RFC 6578 section 6.1. An empty sync token requests an initial sync.
type SyncCollectionQuery struct {
	XMLName   xml.Name `xml:"DAV: sync-collection"`
	SyncToken string   `xml:"DAV: sync-token"`
	Limit     *Limit   `xml:"DAV: limit,omitempty"`
	SyncLevel string   `xml:"DAV: sync-level"`
	Prop      *Prop    `xml:"DAV: prop"`
}

// Limit is defined in RFC 5323 section 5.17. For sync-collection it's
// purely advisory: a compliant server may reject it.
type Limit struct {
	XMLName  xml.Name `xml:"DAV: limit"`
	NResults uint     `xml:"DAV: nresults"`
}
