package carddav

import (
	"encoding/xml"

	"github.com/emersion/go-davclient/internal"
)

const namespace = "urn:ietf:params:xml:ns:carddav"

var (
	addressBookName        = xml.Name{Space: namespace, Local: "addressbook"}
	addressBookHomeSetName = xml.Name{Space: namespace, Local: "addressbook-home-set"}

	addressBookDescriptionName = xml.Name{Space: namespace, Local: "addressbook-description"}
	maxResourceSizeName        = xml.Name{Space: namespace, Local: "max-resource-size"}

	// AddressDataName identifies the address-data property, defined in
	// RFC 6352 section 10.4.
	AddressDataName = xml.Name{Space: namespace, Local: "address-data"}
)

// https://tools.ietf.org/html/rfc6352#section-7.1.1
type addressbookHomeSet struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:carddav addressbook-home-set"`
	Href    internal.Href `xml:"DAV: href"`
}

// https://tools.ietf.org/html/rfc6352#section-6.2.1
type addressbookDescription struct {
	XMLName     xml.Name `xml:"urn:ietf:params:xml:ns:carddav addressbook-description"`
	Description string   `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc6352#section-6.2.3
type maxResourceSize struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav max-resource-size"`
	Size    int64    `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc6352#section-10.3
type addressbookQuery struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:carddav addressbook-query"`
	Prop    *internal.Prop `xml:"DAV: prop,omitempty"`
	// TODO: filter, limit
}

// https://tools.ietf.org/html/rfc6352#section-10.7
type addressbookMultiget struct {
	XMLName xml.Name        `xml:"urn:ietf:params:xml:ns:carddav addressbook-multiget"`
	Hrefs   []internal.Href `xml:"DAV: href"`
	Prop    *internal.Prop  `xml:"DAV: prop,omitempty"`
}

// https://tools.ietf.org/html/rfc6352#section-10.4
type addressDataReq struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	Props   []prop   `xml:"prop,omitempty"`
}

type prop struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav prop"`
	Name    string   `xml:"name,attr"`
}

type addressDataResp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	Data    []byte   `xml:",chardata"`
}
