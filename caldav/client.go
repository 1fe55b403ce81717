package caldav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/emersion/go-ical"

	davclient "github.com/emersion/go-davclient"
	"github.com/emersion/go-davclient/internal"
)

func init() {
	davclient.RegisterProperty(CalendarDataName, decodeCalendarData)
}

// CalendarData is the calendar-data property, defined in RFC 4791
// section 9.6. It carries a serialized iCalendar object.
type CalendarData struct {
	Data []byte
}

func (*CalendarData) PropertyName() xml.Name { return CalendarDataName }

func decodeCalendarData(p *davclient.RawProperty) (davclient.Property, error) {
	var v calendarDataResp
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &CalendarData{Data: v.Data}, nil
}

// Discover performs a DNS-based CalDAV service discovery as described in
// RFC 6764 section 6. It returns the URL to the CalDAV server.
func Discover(domain string) (string, error) {
	return internal.Discover("caldav", domain)
}

// Client provides access to a remote CalDAV server.
type Client struct {
	*davclient.Client

	ic *internal.Client
}

func NewClient(c davclient.HTTPClient, endpoint string) (*Client, error) {
	wc, err := davclient.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	ic, err := internal.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{wc, ic}, nil
}

func (c *Client) SetBasicAuth(username, password string) {
	c.Client.SetBasicAuth(username, password)
	c.ic.SetBasicAuth(username, password)
}

// FindCalendarHomeSet locates the calendar home of the provided principal.
func (c *Client) FindCalendarHomeSet(principal string) (string, error) {
	propfind := internal.NewPropNamePropfind(calendarHomeSetName)
	resp, err := c.ic.PropfindFlat(principal, propfind)
	if err != nil {
		return "", err
	}

	var prop calendarHomeSet
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}

	return prop.Href.Path, nil
}

// FindCalendars lists the calendars of a calendar home set.
func (c *Client) FindCalendars(calendarHomeSet string) ([]Calendar, error) {
	propfind := internal.NewPropNamePropfind(
		davclient.ResourceTypeName,
		davclient.DisplayNameName,
		calendarDescriptionName,
		maxResourceSizeName,
	)
	ms, err := c.ic.Propfind(calendarHomeSet, internal.DepthOne, propfind)
	if err != nil {
		return nil, err
	}

	l := make([]Calendar, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		path, err := resp.Path()
		if err != nil {
			return nil, err
		}

		var resType struct {
			XMLName xml.Name               `xml:"DAV: resourcetype"`
			Raw     []internal.RawXMLValue `xml:",any"`
		}
		if err := resp.DecodeProp(&resType); err != nil {
			return nil, err
		}
		if !rawContains(resType.Raw, calendarName) {
			continue
		}

		var desc calendarDescription
		if err := resp.DecodeProp(&desc); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		var dispName struct {
			XMLName xml.Name `xml:"DAV: displayname"`
			Name    string   `xml:",chardata"`
		}
		if err := resp.DecodeProp(&dispName); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		var maxResSize maxResourceSize
		if err := resp.DecodeProp(&maxResSize); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}
		if maxResSize.Size < 0 {
			return nil, fmt.Errorf("caldav: max-resource-size must be a positive integer")
		}

		l = append(l, Calendar{
			Path:            path,
			Name:            dispName.Name,
			Description:     desc.Description,
			MaxResourceSize: maxResSize.Size,
		})
	}

	return l, nil
}

func rawContains(raw []internal.RawXMLValue, name xml.Name) bool {
	for i := range raw {
		if n, ok := raw[i].XMLName(); ok && n == name {
			return true
		}
	}
	return false
}

func encodeCalendarCompReq(c *CalendarCompRequest) *comp {
	encoded := comp{Name: c.Name}

	if c.AllProps {
		encoded.Allprop = &struct{}{}
	}
	for _, name := range c.Props {
		encoded.Prop = append(encoded.Prop, prop{Name: name})
	}

	if c.AllComps {
		encoded.Allcomp = &struct{}{}
	}
	for _, child := range c.Comps {
		encoded.Comp = append(encoded.Comp, *encodeCalendarCompReq(&child))
	}

	return &encoded
}

func encodeCalendarReq(c *CalendarCompRequest) (*internal.Prop, error) {
	calDataReq := calendarDataReq{Comp: encodeCalendarCompReq(c)}

	getLastModReq := internal.NewRawXMLElement(davclient.GetLastModifiedName, nil, nil)
	getETagReq := internal.NewRawXMLElement(davclient.GetETagName, nil, nil)
	return internal.EncodeProp(&calDataReq, getLastModReq, getETagReq)
}

func encodeCompFilter(filter *CompFilter) *compFilter {
	encoded := compFilter{Name: filter.Name}
	if !filter.Start.IsZero() || !filter.End.IsZero() {
		encoded.TimeRange = &timeRange{
			Start: dateWithUTCTime(filter.Start),
			End:   dateWithUTCTime(filter.End),
		}
	}
	for _, child := range filter.Comps {
		encoded.CompFilters = append(encoded.CompFilters, *encodeCompFilter(&child))
	}
	return &encoded
}

func calendarObjectFromResource(res *davclient.Resource) (*CalendarObject, error) {
	co := CalendarObject{Path: res.Href.Path}

	data, ok := res.Prop(CalendarDataName).(*CalendarData)
	if !ok {
		return nil, fmt.Errorf("caldav: response is missing calendar-data for %q", co.Path)
	}
	cal, err := ical.NewDecoder(bytes.NewReader(data.Data)).Decode()
	if err != nil {
		return nil, err
	}
	co.Data = cal

	if p, ok := res.Prop(davclient.GetETagName).(*davclient.GetETag); ok {
		co.ETag = string(p.ETag)
	}
	if p, ok := res.Prop(davclient.GetLastModifiedName).(*davclient.GetLastModified); ok {
		co.ModTime = p.ModTime
	}

	return &co, nil
}

func calendarObjectsFromMembers(members []davclient.Resource) ([]CalendarObject, error) {
	l := make([]CalendarObject, 0, len(members))
	for i := range members {
		co, err := calendarObjectFromResource(&members[i])
		if err != nil {
			return nil, err
		}
		l = append(l, *co)
	}
	return l, nil
}

// QueryCalendar performs a calendar-query REPORT and returns the matching
// calendar objects in document order.
func (c *Client) QueryCalendar(calendar string, query *CalendarQuery) ([]CalendarObject, error) {
	propReq, err := encodeCalendarReq(&query.CompRequest)
	if err != nil {
		return nil, err
	}

	calendarQuery := calendarQuery{Prop: propReq}
	calendarQuery.Filter.CompFilter = *encodeCompFilter(&query.CompFilter)

	col := c.Collection(calendar)
	if err := col.Report(&calendarQuery); err != nil {
		return nil, err
	}
	return calendarObjectsFromMembers(col.Members)
}

// MultiGetCalendar performs a calendar-multiget REPORT and returns the
// requested calendar objects in the order the server reported them.
func (c *Client) MultiGetCalendar(path string, multiGet *CalendarMultiGet) ([]CalendarObject, error) {
	var compReq CalendarCompRequest
	if multiGet != nil {
		compReq = multiGet.CompRequest
	}
	propReq, err := encodeCalendarReq(&compReq)
	if err != nil {
		return nil, err
	}

	calendarMultiget := calendarMultiget{Prop: propReq}
	if multiGet == nil || len(multiGet.Paths) == 0 {
		calendarMultiget.Hrefs = []internal.Href{{Path: path}}
	} else {
		calendarMultiget.Hrefs = make([]internal.Href, len(multiGet.Paths))
		for i, p := range multiGet.Paths {
			calendarMultiget.Hrefs[i] = internal.Href{Path: p}
		}
	}

	col := c.Collection(path)
	if err := col.Report(&calendarMultiget); err != nil {
		return nil, err
	}
	return calendarObjectsFromMembers(col.Members)
}

// SyncCollection performs a sync-collection REPORT on a calendar
// collection, returning the changes since the query's sync token.
func (c *Client) SyncCollection(calendar string, query *davclient.SyncQuery) (*SyncResult, error) {
	col := c.Collection(calendar)
	if err := col.Sync(query); err != nil {
		return nil, err
	}

	result := SyncResult{
		SyncToken:   col.SyncToken,
		MoreResults: col.FurtherResults,
	}
	for i := range col.Members {
		member := &col.Members[i]
		co := CalendarObject{Path: member.Href.Path}
		if p, ok := member.Prop(davclient.GetETagName).(*davclient.GetETag); ok {
			co.ETag = string(p.ETag)
		}
		result.Updated = append(result.Updated, co)
	}
	for i := range col.RemovedMembers {
		result.Deleted = append(result.Deleted, col.RemovedMembers[i].Href.Path)
	}
	return &result, nil
}

// GetCalendarObject fetches a single calendar object.
func (c *Client) GetCalendarObject(path string) (*CalendarObject, error) {
	req, err := c.ic.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", ical.MIMEType)

	resp, err := c.ic.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if mediaType != ical.MIMEType {
		return nil, fmt.Errorf("caldav: expected Content-Type %q, got %q", ical.MIMEType, mediaType)
	}

	cal, err := ical.NewDecoder(resp.Body).Decode()
	if err != nil {
		return nil, err
	}

	co := &CalendarObject{Path: resp.Request.URL.Path, Data: cal}
	if err := populateCalendarObject(co, resp); err != nil {
		return nil, err
	}
	return co, nil
}

func populateCalendarObject(co *CalendarObject, resp *http.Response) error {
	if loc := resp.Header.Get("Location"); loc != "" {
		u, err := url.Parse(loc)
		if err != nil {
			return err
		}
		co.Path = u.Path
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		etag, err := strconv.Unquote(etag)
		if err != nil {
			return err
		}
		co.ETag = etag
	}
	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		t, err := http.ParseTime(lastModified)
		if err != nil {
			return err
		}
		co.ModTime = t
	}

	return nil
}

// PutCalendarObject creates or updates a calendar object.
func (c *Client) PutCalendarObject(path string, cal *ical.Calendar) (*CalendarObject, error) {
	// TODO: add support for If-None-Match and If-Match

	// TODO: some servers want a Content-Length header, so we can't stream
	// the request body here. See the Radicale issue:
	// https://github.com/Kozea/Radicale/issues/1016

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}

	req, err := c.ic.NewRequest(http.MethodPut, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ical.MIMEType)

	resp, err := c.ic.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	co := &CalendarObject{Path: path}
	if err := populateCalendarObject(co, resp); err != nil {
		return nil, err
	}
	return co, nil
}
