package carddav

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/emersion/go-vcard"

	davclient "github.com/emersion/go-davclient"
	"github.com/emersion/go-davclient/internal"
)

func init() {
	davclient.RegisterProperty(AddressDataName, decodeAddressData)
}

// AddressData is the address-data property, defined in RFC 6352
// section 10.4. It carries a serialized vCard.
type AddressData struct {
	Data []byte
}

func (*AddressData) PropertyName() xml.Name { return AddressDataName }

func decodeAddressData(p *davclient.RawProperty) (davclient.Property, error) {
	var v addressDataResp
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return &AddressData{Data: v.Data}, nil
}

// Discover performs a DNS-based CardDAV service discovery as described in
// RFC 6352 section 11. It returns the URL to the CardDAV server.
func Discover(domain string) (string, error) {
	return internal.Discover("carddav", domain)
}

// Client provides access to a remote CardDAV server.
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

// FindAddressBookHomeSet locates the address book home of the provided
// principal.
func (c *Client) FindAddressBookHomeSet(principal string) (string, error) {
	propfind := internal.NewPropNamePropfind(addressBookHomeSetName)
	resp, err := c.ic.PropfindFlat(principal, propfind)
	if err != nil {
		return "", err
	}

	var prop addressbookHomeSet
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}

	return prop.Href.Path, nil
}

// FindAddressBooks lists the address books of a home set.
func (c *Client) FindAddressBooks(addressBookHomeSet string) ([]AddressBook, error) {
	propfind := internal.NewPropNamePropfind(
		davclient.ResourceTypeName,
		davclient.DisplayNameName,
		addressBookDescriptionName,
		maxResourceSizeName,
	)
	ms, err := c.ic.Propfind(addressBookHomeSet, internal.DepthOne, propfind)
	if err != nil {
		return nil, err
	}

	l := make([]AddressBook, 0, len(ms.Responses))
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
		if !rawContains(resType.Raw, addressBookName) {
			continue
		}

		var desc addressbookDescription
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
			return nil, fmt.Errorf("carddav: max-resource-size must be a positive integer")
		}

		l = append(l, AddressBook{
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

func encodeAddressDataReq(props []string) (*internal.Prop, error) {
	var addrDataReq addressDataReq
	for _, name := range props {
		addrDataReq.Props = append(addrDataReq.Props, prop{Name: name})
	}

	getETagReq := internal.NewRawXMLElement(davclient.GetETagName, nil, nil)
	return internal.EncodeProp(&addrDataReq, getETagReq)
}

func addressObjectFromResource(res *davclient.Resource) (*AddressObject, error) {
	ao := AddressObject{Path: res.Href.Path}

	data, ok := res.Prop(AddressDataName).(*AddressData)
	if !ok {
		return nil, fmt.Errorf("carddav: response is missing address-data for %q", ao.Path)
	}
	card, err := vcard.NewDecoder(bytes.NewReader(data.Data)).Decode()
	if err != nil {
		return nil, err
	}
	ao.Card = card

	if p, ok := res.Prop(davclient.GetETagName).(*davclient.GetETag); ok {
		ao.ETag = string(p.ETag)
	}
	if p, ok := res.Prop(davclient.GetLastModifiedName).(*davclient.GetLastModified); ok {
		ao.ModTime = p.ModTime
	}

	return &ao, nil
}

func addressObjectsFromMembers(members []davclient.Resource) ([]AddressObject, error) {
	l := make([]AddressObject, 0, len(members))
	for i := range members {
		ao, err := addressObjectFromResource(&members[i])
		if err != nil {
			return nil, err
		}
		l = append(l, *ao)
	}
	return l, nil
}

// QueryAddressBook performs an addressbook-query REPORT and returns the
// matching address objects in document order.
func (c *Client) QueryAddressBook(addressBook string, query *AddressBookQuery) ([]AddressObject, error) {
	var props []string
	if query != nil {
		props = query.Props
	}
	propReq, err := encodeAddressDataReq(props)
	if err != nil {
		return nil, err
	}

	addressbookQuery := addressbookQuery{Prop: propReq}

	col := c.Collection(addressBook)
	if err := col.Report(&addressbookQuery); err != nil {
		return nil, err
	}
	return addressObjectsFromMembers(col.Members)
}

// MultiGetAddressBook performs an addressbook-multiget REPORT and returns
// the requested address objects in the order the server reported them.
func (c *Client) MultiGetAddressBook(path string, multiGet *AddressBookMultiGet) ([]AddressObject, error) {
	var props []string
	if multiGet != nil {
		props = multiGet.Props
	}
	propReq, err := encodeAddressDataReq(props)
	if err != nil {
		return nil, err
	}

	addressbookMultiget := addressbookMultiget{Prop: propReq}
	if multiGet == nil || len(multiGet.Paths) == 0 {
		addressbookMultiget.Hrefs = []internal.Href{{Path: path}}
	} else {
		addressbookMultiget.Hrefs = make([]internal.Href, len(multiGet.Paths))
		for i, p := range multiGet.Paths {
			addressbookMultiget.Hrefs[i] = internal.Href{Path: p}
		}
	}

	col := c.Collection(path)
	if err := col.Report(&addressbookMultiget); err != nil {
		return nil, err
	}
	return addressObjectsFromMembers(col.Members)
}

// SyncCollection performs a sync-collection REPORT on an address book,
// returning the changes since the query's sync token.
func (c *Client) SyncCollection(addressBook string, query *davclient.SyncQuery) (*SyncResult, error) {
	col := c.Collection(addressBook)
	if err := col.Sync(query); err != nil {
		return nil, err
	}

	result := SyncResult{
		SyncToken:   col.SyncToken,
		MoreResults: col.FurtherResults,
	}
	for i := range col.Members {
		member := &col.Members[i]
		ao := AddressObject{Path: member.Href.Path}
		if p, ok := member.Prop(davclient.GetETagName).(*davclient.GetETag); ok {
			ao.ETag = string(p.ETag)
		}
		result.Updated = append(result.Updated, ao)
	}
	for i := range col.RemovedMembers {
		result.Deleted = append(result.Deleted, col.RemovedMembers[i].Href.Path)
	}
	return &result, nil
}
