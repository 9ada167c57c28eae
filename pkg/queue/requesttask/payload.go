package requesttask

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// TaskType is the registry key of request tasks
const TaskType = "request"

// Kind tells which field of a Payload describes the request
type Kind string

const (
	// KindURI is a plain GET of Payload.URI
	KindURI Kind = "uri"
	// KindRequest is a full request serialized in HTTP/1.1 wire format
	KindRequest Kind = "request"
)

// Payload is the persisted description of the request to execute.
// Exactly one of URI and Request is used, selected by Kind.
type Payload struct {
	Kind    Kind   `json:"kind"`
	URI     string `json:"uri,omitempty"`
	Request []byte `json:"request,omitempty"`
}

// NewURIPayload describes a GET request to uri
func NewURIPayload(uri string) (Payload, error) {
	if _, err := parseURL(uri); err != nil {
		return Payload{}, err
	}
	return Payload{Kind: KindURI, URI: uri}, nil
}

// NewRequestPayload serializes req, body included, so that it can be replayed
// later by a worker. The body of req is left readable.
func NewRequestPayload(req *http.Request) (Payload, error) {
	if req == nil {
		return Payload{}, ErrNilRequest
	}
	if req.URL == nil {
		return Payload{}, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	if _, err := parseURL(req.URL.String()); err != nil {
		return Payload{}, err
	}

	body, err := snapshotBody(req)
	if err != nil {
		return Payload{}, errors.Join(ErrRequestCapture, err)
	}

	out := req.Clone(req.Context())
	out.Body = http.NoBody
	out.ContentLength = 0
	if len(body) > 0 {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}

	// Proxy form keeps the absolute URL, scheme included, in the request line
	var buf bytes.Buffer
	if err := out.WriteProxy(&buf); err != nil {
		return Payload{}, errors.Join(ErrRequestCapture, err)
	}

	return Payload{Kind: KindRequest, Request: buf.Bytes()}, nil
}

// UnmarshalJSON accepts a bare URI string as well as the object form.
// An object without kind is inferred from whichever of uri and request is set.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var uri string
		if err := json.Unmarshal(data, &uri); err != nil {
			return err
		}
		*p = Payload{Kind: KindURI, URI: uri}
		return nil
	}

	type plain Payload
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Kind == "" {
		switch {
		case v.URI != "" && len(v.Request) == 0:
			v.Kind = KindURI
		case v.URI == "" && len(v.Request) > 0:
			v.Kind = KindRequest
		}
	}
	*p = Payload(v)
	return nil
}

// Validate reports whether the payload can be turned into a request
func (p Payload) Validate() error {
	_, err := p.template()
	return err
}

// decodePayload never panics; any problem is returned as an error
func decodePayload(raw json.RawMessage) (Payload, *template, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, nil, errors.Join(ErrPayloadDecode, err)
	}
	tpl, err := p.template()
	if err != nil {
		return p, nil, err
	}
	return p, tpl, nil
}

// template holds everything needed to build a fresh *http.Request per attempt
type template struct {
	method string
	url    *url.URL
	host   string
	header http.Header
	body   []byte
}

func (p Payload) template() (*template, error) {
	switch p.Kind {
	case KindURI:
		u, err := parseURL(p.URI)
		if err != nil {
			return nil, err
		}
		return &template{method: http.MethodGet, url: u, header: http.Header{}}, nil

	case KindRequest:
		req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(p.Request)))
		if err != nil {
			return nil, errors.Join(ErrMalformedWire, err)
		}
		defer req.Body.Close()

		u, err := parseURL(req.URL.String())
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.Join(ErrMalformedWire, err)
		}
		return &template{
			method: req.Method,
			url:    u,
			host:   req.Host,
			header: req.Header.Clone(),
			body:   body,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
}

func parseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}

func snapshotBody(req *http.Request) ([]byte, error) {
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}
