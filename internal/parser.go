package internal

import (
	"encoding/xml"
	"io"
)

// MultistatusReader reads a multistatus response body one response element
// at a time, in a single forward pass. It owns the underlying body and must
// be closed on every exit path so that the HTTP connection is released.
type MultistatusReader struct {
	d    *xml.Decoder
	body io.Closer

	started   bool
	done      bool
	syncToken string
}

// NewMultistatusReader creates a reader over a response body. The body is
// asserted to be well-formed UTF-8 XML with a DAV:multistatus root.
func NewMultistatusReader(body io.ReadCloser) *MultistatusReader {
	return &MultistatusReader{d: xml.NewDecoder(body), body: body}
}

// start consumes tokens up to the multistatus start element.
func (mr *MultistatusReader) start() error {
	for {
		tok, err := mr.d.Token()
		if err == io.EOF {
			return ProtocolErrorf("expected a multistatus element, got an empty body")
		} else if err != nil {
			return &ProtocolError{Err: err}
		}

		if start, ok := tok.(xml.StartElement); ok {
			if start.Name != MultistatusName {
				return ProtocolErrorf("expected a <%v %v> root element, got <%v %v>",
					MultistatusName.Space, MultistatusName.Local,
					start.Name.Space, start.Name.Local)
			}
			mr.started = true
			return nil
		}
	}
}

// Next returns the next response element of the body, or io.EOF once the
// multistatus has been fully consumed. Any other error is a *ProtocolError.
//
// Unknown children of the multistatus element are skipped. A trailing
// sync-token element is captured and available via SyncToken after Next has
// returned io.EOF.
func (mr *MultistatusReader) Next() (*Response, error) {
	if mr.done {
		return nil, io.EOF
	}
	if !mr.started {
		if err := mr.start(); err != nil {
			return nil, err
		}
	}

	for {
		tok, err := mr.d.Token()
		if err == io.EOF {
			return nil, ProtocolErrorf("unexpected end of multistatus body")
		} else if err != nil {
			return nil, &ProtocolError{Err: err}
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			switch tok.Name {
			case ResponseName:
				var resp Response
				if err := mr.d.DecodeElement(&resp, &tok); err != nil {
					return nil, &ProtocolError{Err: err}
				}
				if _, err := resp.Href(); err != nil {
					return nil, err
				}
				return &resp, nil
			case SyncTokenName:
				var token string
				if err := mr.d.DecodeElement(&token, &tok); err != nil {
					return nil, &ProtocolError{Err: err}
				}
				mr.syncToken = token
			default:
				if err := mr.d.Skip(); err != nil {
					return nil, &ProtocolError{Err: err}
				}
			}
		case xml.EndElement:
			// End of the multistatus element itself.
			mr.done = true
			return nil, io.EOF
		}
	}
}

// SyncToken returns the trailing sync-token element of the body, if any. It
// is only meaningful once Next has returned io.EOF.
func (mr *MultistatusReader) SyncToken() string {
	return mr.syncToken
}

// Collect consumes the remaining responses and closes the reader. It's a
// convenience for consumers which don't need streaming.
func (mr *MultistatusReader) Collect() (*Multistatus, error) {
	defer mr.Close()

	var ms Multistatus
	for {
		resp, err := mr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		ms.Responses = append(ms.Responses, *resp)
	}
	ms.SyncToken = mr.syncToken
	return &ms, nil
}

// Close releases the underlying response body. It is idempotent and safe to
// call at any point of the traversal.
func (mr *MultistatusReader) Close() error {
	if mr.body == nil {
		return nil
	}
	err := mr.body.Close()
	mr.body = nil
	return err
}
