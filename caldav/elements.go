package caldav

import (
	"encoding/xml"
	"time"

	"github.com/emersion/go-davclient/internal"
)

const namespace = "urn:ietf:params:xml:ns:caldav"

var (
	calendarName        = xml.Name{Space: namespace, Local: "calendar"}
	calendarHomeSetName = xml.Name{Space: namespace, Local: "calendar-home-set"}

	calendarDescriptionName = xml.Name{Space: namespace, Local: "calendar-description"}
	maxResourceSizeName     = xml.Name{Space: namespace, Local: "max-resource-size"}

	// CalendarDataName identifies the calendar-data property, defined in
	// RFC 4791 section 9.6.
	CalendarDataName = xml.Name{Space: namespace, Local: "calendar-data"}
)

// https://tools.ietf.org/html/rfc4791#section-6.2.1
type calendarHomeSet struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	Href    internal.Href `xml:"DAV: href"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.1
type calendarDescription struct {
	XMLName     xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	Description string   `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.5
type maxResourceSize struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav max-resource-size"`
	Size    int64    `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc4791#section-9.5
type calendarQuery struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    *internal.Prop `xml:"DAV: prop,omitempty"`
	Filter  filter         `xml:"filter"`
}

// https://tools.ietf.org/html/rfc4791#section-9.10
type calendarMultiget struct {
	XMLName xml.Name        `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Hrefs   []internal.Href `xml:"DAV: href"`
	Prop    *internal.Prop  `xml:"DAV: prop,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.7
type filter struct {
	XMLName    xml.Name   `xml:"urn:ietf:params:xml:ns:caldav filter"`
	CompFilter compFilter `xml:"comp-filter"`
}

// https://tools.ietf.org/html/rfc4791#section-9.7.1
type compFilter struct {
	XMLName     xml.Name     `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
	Name        string       `xml:"name,attr"`
	TimeRange   *timeRange   `xml:"time-range,omitempty"`
	CompFilters []compFilter `xml:"comp-filter,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.9
type timeRange struct {
	XMLName xml.Name        `xml:"urn:ietf:params:xml:ns:caldav time-range"`
	Start   dateWithUTCTime `xml:"start,attr,omitempty"`
	End     dateWithUTCTime `xml:"end,attr,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6
type calendarDataReq struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	Comp    *comp    `xml:"comp,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6.1
type comp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav comp"`
	Name    string   `xml:"name,attr"`

	Allprop *struct{} `xml:"allprop,omitempty"`
	Prop    []prop    `xml:"prop,omitempty"`

	Allcomp *struct{} `xml:"allcomp,omitempty"`
	Comp    []comp    `xml:"comp,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6.4
type prop struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav prop"`
	Name    string   `xml:"name,attr"`
}

type calendarDataResp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	Data    []byte   `xml:",chardata"`
}

const dateWithUTCTimeLayout = "20060102T150405Z"

// dateWithUTCTime is the date-time format of RFC 4791 section 9.9,
// restricted to UTC.
type dateWithUTCTime time.Time

func (t *dateWithUTCTime) MarshalText() ([]byte, error) {
	s := time.Time(*t).UTC().Format(dateWithUTCTimeLayout)
	return []byte(s), nil
}

func (t *dateWithUTCTime) UnmarshalText(b []byte) error {
	parsed, err := time.ParseInLocation(dateWithUTCTimeLayout, string(b), time.UTC)
	if err != nil {
		return err
	}
	*t = dateWithUTCTime(parsed)
	return nil
}
