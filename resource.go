package davclient

import (
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/emersion/go-davclient/internal"
)

// Resource is the decoded state of a single resource from a multistatus
// response. Properties are copied out of the response body during parsing,
// so a Resource stays valid after the body has been released.
type Resource struct {
	// Href is the resource's URL, resolved against the request URL.
	Href *url.URL

	names []xml.Name
	props map[xml.Name]Property
}

// Prop returns the decoded property with the provided name, or nil if the
// resource doesn't have it. An absent property is indistinguishable from a
// property that was never requested.
func (r *Resource) Prop(name xml.Name) Property {
	return r.props[name]
}

// PropNames returns the names of the resource's properties, in document
// order.
func (r *Resource) PropNames() []xml.Name {
	return r.names
}

func (r *Resource) setProp(p Property) {
	name := p.PropertyName()
	if r.props == nil {
		r.props = make(map[xml.Name]Property)
	}
	if _, ok := r.props[name]; !ok {
		r.names = append(r.names, name)
	}
	// A property name should only appear once with a 2xx status. If a
	// server repeats it, the last occurrence wins deterministically.
	r.props[name] = p
}

// IsCollection returns true if the resource's resourcetype marks it as a
// collection.
func (r *Resource) IsCollection() bool {
	t, ok := r.Prop(ResourceTypeName).(*ResourceType)
	return ok && t.Is(CollectionName)
}

type disposition int

const (
	// The resource exists and reported at least one property group
	// successfully.
	dispositionFound disposition = iota
	// The resource doesn't exist, or none of its property groups succeeded.
	dispositionMissing
	// The response is the RFC 6578 truncation marker, not a resource.
	dispositionLimitExceeded
	// The response carries a per-resource error with no protocol meaning
	// for this client (e.g. 423 Locked) and yields no outcome.
	dispositionSkip
)

// resourceOutcome is the decoded result for one response element.
type resourceOutcome struct {
	href *url.URL
	disp disposition
	res  *Resource // nil unless found
}

// resolveOutcome decodes a response element into an outcome, resolving its
// href against the request URL and decoding 2xx property groups through the
// property registry.
func resolveOutcome(base *url.URL, resp *internal.Response) (*resourceOutcome, error) {
	h, err := resp.Href()
	if err != nil {
		return nil, err
	}
	u := base.ResolveReference((*url.URL)(h))

	// The truncation marker is only recognized on the request URL itself
	// (RFC 6578 section 3.10 reports it on the collection); a 507 on any
	// other resource is a plain per-resource error.
	if sameResource(u, base) && isLimitExceeded(resp) {
		return &resourceOutcome{href: u, disp: dispositionLimitExceeded}, nil
	}

	if len(resp.Propstats) == 0 {
		// Bare status shorthand: a 404 means the resource was removed
		// (RFC 6578 section 3.5.1).
		out := &resourceOutcome{href: u}
		switch {
		case resp.Status == nil || resp.Status.Code/100 == 2:
			out.disp = dispositionFound
			out.res = &Resource{Href: u}
		case resp.Status.Code == 404:
			out.disp = dispositionMissing
		default:
			out.disp = dispositionSkip
		}
		return out, nil
	}

	res := &Resource{Href: u}
	found := false
	for i := range resp.Propstats {
		propstat := &resp.Propstats[i]
		if propstat.Status.Code/100 != 2 {
			// Normal per-property negotiation failure: the named properties
			// are unavailable on this resource, nothing more.
			continue
		}
		found = true
		for j := range propstat.Prop.Raw {
			raw := &propstat.Prop.Raw[j]
			name, ok := raw.XMLName()
			if !ok {
				continue
			}
			dec, ok := lookupProperty(name)
			if !ok {
				// Unregistered property names are skipped, never fatal.
				continue
			}
			p, err := dec(&RawProperty{raw})
			if err != nil {
				// A decoder failure downgrades the single property to
				// absent, equivalent to a non-2xx propstat.
				continue
			}
			res.setProp(p)
		}
	}

	if !found {
		return &resourceOutcome{href: u, disp: dispositionMissing}, nil
	}
	return &resourceOutcome{href: u, disp: dispositionFound, res: res}, nil
}

// isLimitExceeded detects the in-body truncation marker of RFC 6578
// section 3.10: a 507 status paired with number-of-matches-within-limits.
// The caller restricts the marker to the request URL.
func isLimitExceeded(resp *internal.Response) bool {
	has507 := resp.Status != nil && resp.Status.Code == 507
	if resp.Error.Has(internal.NumberOfMatchesWithinLimitsName) && has507 {
		return true
	}
	for i := range resp.Propstats {
		propstat := &resp.Propstats[i]
		if propstat.Status.Code == 507 && propstat.Error.Has(internal.NumberOfMatchesWithinLimitsName) {
			return true
		}
	}
	return false
}

// sameResource compares two resolved URLs for resource identity: the path
// comparison is case-sensitive, query and fragment are ignored, and a
// trailing-slash difference is tolerated since collection hrefs are
// customarily slash-terminated.
func sameResource(a, b *url.URL) bool {
	if a.Host != b.Host {
		return false
	}
	return strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/")
}
