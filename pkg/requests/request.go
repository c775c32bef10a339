package requests

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WireMagic opens every frame on the socket.
const WireMagic uint32 = 0x5EC0A710

// wireHeaderSize is the fixed number of bytes following the magic and
// header-size fields.
const wireHeaderSize uint16 = 28

// DefaultMaxBodySize bounds the body length accepted from a peer.
const DefaultMaxBodySize = 1 << 20

// DefaultMaxAuthSize bounds the authentication field length accepted
// from a peer.
const DefaultMaxAuthSize = 1 << 12

// RequestHeader is the decoded fixed header of a request frame.
type RequestHeader struct {
	VersionMaj  uint8
	VersionMin  uint8
	Provider    ProviderID
	Session     uint64
	ContentType BodyType
	AcceptType  BodyType
	AuthType    AuthType
	Opcode      Opcode
}

// Request is a fully read request frame: header plus opaque
// authentication and body fields.
type Request struct {
	Header RequestHeader
	Auth   []byte
	Body   []byte
}

// rawHeader is the wire layout shared by requests and responses. All
// integers are little-endian.
type rawHeader struct {
	VersionMaj  uint8
	VersionMin  uint8
	Flags       uint16
	Provider    uint8
	Session     uint64
	ContentType uint8
	AcceptType  uint8
	AuthType    uint8
	AuthLen     uint16
	BodyLen     uint32
	Opcode      uint32
	Status      uint16
}

func readRawHeader(r io.Reader) (rawHeader, error) {
	var raw rawHeader

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return raw, err
	}
	if magic != WireMagic {
		return raw, fmt.Errorf("invalid frame magic 0x%08X", magic)
	}
	var hdrSize uint16
	if err := binary.Read(r, binary.LittleEndian, &hdrSize); err != nil {
		return raw, err
	}
	if hdrSize != wireHeaderSize {
		return raw, fmt.Errorf("unexpected header size %d", hdrSize)
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}

func writeRawHeader(w io.Writer, raw rawHeader) error {
	if err := binary.Write(w, binary.LittleEndian, WireMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, wireHeaderSize); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, raw)
}

// ReadRequest reads one framed request. Auth and body lengths are
// checked against the given limits before any allocation.
func ReadRequest(r io.Reader, maxAuth, maxBody uint32) (*Request, error) {
	raw, err := readRawHeader(r)
	if err != nil {
		return nil, err
	}
	if uint32(raw.AuthLen) > maxAuth {
		return nil, fmt.Errorf("authentication field of %d bytes exceeds limit %d", raw.AuthLen, maxAuth)
	}
	if raw.BodyLen > maxBody {
		return nil, fmt.Errorf("body of %d bytes exceeds limit %d", raw.BodyLen, maxBody)
	}

	req := &Request{
		Header: RequestHeader{
			VersionMaj:  raw.VersionMaj,
			VersionMin:  raw.VersionMin,
			Provider:    ProviderID(raw.Provider),
			Session:     raw.Session,
			ContentType: BodyType(raw.ContentType),
			AcceptType:  BodyType(raw.AcceptType),
			AuthType:    AuthType(raw.AuthType),
			Opcode:      Opcode(raw.Opcode),
		},
	}
	if raw.AuthLen > 0 {
		req.Auth = make([]byte, raw.AuthLen)
		if _, err := io.ReadFull(r, req.Auth); err != nil {
			return nil, err
		}
	}
	if raw.BodyLen > 0 {
		req.Body = make([]byte, raw.BodyLen)
		if _, err := io.ReadFull(r, req.Body); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// WriteTo writes the request as one frame.
func (req *Request) WriteTo(w io.Writer) error {
	raw := rawHeader{
		VersionMaj:  req.Header.VersionMaj,
		VersionMin:  req.Header.VersionMin,
		Provider:    uint8(req.Header.Provider),
		Session:     req.Header.Session,
		ContentType: uint8(req.Header.ContentType),
		AcceptType:  uint8(req.Header.AcceptType),
		AuthType:    uint8(req.Header.AuthType),
		AuthLen:     uint16(len(req.Auth)),
		BodyLen:     uint32(len(req.Body)),
		Opcode:      uint32(req.Header.Opcode),
	}
	if err := writeRawHeader(w, raw); err != nil {
		return err
	}
	if len(req.Auth) > 0 {
		if _, err := w.Write(req.Auth); err != nil {
			return err
		}
	}
	if len(req.Body) > 0 {
		if _, err := w.Write(req.Body); err != nil {
			return err
		}
	}
	return nil
}
