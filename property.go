package davclient

import (
	"encoding/xml"
	"sync"

	"github.com/emersion/go-davclient/internal"
)

// Property is a typed value parsed from one property element of a prop
// block. Implementations are registered per XML name with RegisterProperty.
type Property interface {
	// PropertyName returns the qualified XML name of the property element
	// the value was decoded from.
	PropertyName() xml.Name
}

// RawProperty is a single undecoded property element. Decoders receive it
// and decode its contents into a typed Property.
type RawProperty struct {
	raw *internal.RawXMLValue
}

// XMLName returns the qualified name of the property element.
func (p *RawProperty) XMLName() xml.Name {
	name, _ := p.raw.XMLName()
	return name
}

// Decode decodes the property element into the provided value, which
// follows the encoding/xml conventions.
func (p *RawProperty) Decode(v interface{}) error {
	return p.raw.Decode(v)
}

// A PropertyDecoder parses one property element instance. Returning an
// error marks the property as failed to decode for that resource; it never
// aborts the surrounding response.
type PropertyDecoder func(p *RawProperty) (Property, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[xml.Name]PropertyDecoder)
)

// RegisterProperty registers a decoder for a property name, typically from
// an init function. Registering the same name twice replaces the previous
// decoder. Property elements with no registered decoder are skipped during
// parsing, never treated as an error.
func RegisterProperty(name xml.Name, dec PropertyDecoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = dec
}

func lookupProperty(name xml.Name) (PropertyDecoder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	dec, ok := registry[name]
	return dec, ok
}
