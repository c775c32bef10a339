package requests

import "io"

// ResponseHeader is the decoded fixed header of a response frame. It
// echoes the fields of the request header it answers, plus the status.
type ResponseHeader struct {
	VersionMaj  uint8
	VersionMin  uint8
	Provider    ProviderID
	Session     uint64
	ContentType BodyType
	AcceptType  BodyType
	Opcode      Opcode
	Status      ResponseStatus
}

// Response is a full response frame.
type Response struct {
	Header ResponseHeader
	Body   []byte
}

// ResponseFromHeader builds an empty-bodied response echoing the given
// request header and carrying the given status.
func ResponseFromHeader(hdr RequestHeader, status ResponseStatus) *Response {
	return &Response{
		Header: ResponseHeader{
			VersionMaj:  hdr.VersionMaj,
			VersionMin:  hdr.VersionMin,
			Provider:    hdr.Provider,
			Session:     hdr.Session,
			ContentType: hdr.ContentType,
			AcceptType:  hdr.AcceptType,
			Opcode:      hdr.Opcode,
			Status:      status,
		},
	}
}

// ReadResponse reads one framed response, bounding the body length.
func ReadResponse(r io.Reader, maxBody uint32) (*Response, error) {
	raw, err := readRawHeader(r)
	if err != nil {
		return nil, err
	}
	if raw.BodyLen > maxBody {
		return nil, ResponseTooLarge
	}
	resp := &Response{
		Header: ResponseHeader{
			VersionMaj:  raw.VersionMaj,
			VersionMin:  raw.VersionMin,
			Provider:    ProviderID(raw.Provider),
			Session:     raw.Session,
			ContentType: BodyType(raw.ContentType),
			AcceptType:  BodyType(raw.AcceptType),
			Opcode:      Opcode(raw.Opcode),
			Status:      ResponseStatus(raw.Status),
		},
	}
	if raw.BodyLen > 0 {
		resp.Body = make([]byte, raw.BodyLen)
		if _, err := io.ReadFull(r, resp.Body); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// WriteTo writes the response as one frame.
func (resp *Response) WriteTo(w io.Writer) error {
	raw := rawHeader{
		VersionMaj:  resp.Header.VersionMaj,
		VersionMin:  resp.Header.VersionMin,
		Provider:    uint8(resp.Header.Provider),
		Session:     resp.Header.Session,
		ContentType: uint8(resp.Header.ContentType),
		AcceptType:  uint8(resp.Header.AcceptType),
		BodyLen:     uint32(len(resp.Body)),
		Opcode:      uint32(resp.Header.Opcode),
		Status:      uint16(resp.Header.Status),
	}
	if err := writeRawHeader(w, raw); err != nil {
		return err
	}
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			return err
		}
	}
	return nil
}
