package operations

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/systmms/keyops/pkg/requests"
)

// CborConverter implements Converter for the canonical CBOR body
// encoding.
type CborConverter struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCborConverter builds the CBOR converter with deterministic
// encoding options.
func NewCborConverter() (*CborConverter, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CborConverter{enc: enc, dec: dec}, nil
}

// BodyType implements Converter.
func (c *CborConverter) BodyType() requests.BodyType {
	return requests.BodyCbor
}

// BodyToOperation implements Converter. An unknown opcode maps to
// OpcodeDoesNotExist, a malformed body to DeserializingBodyFailed.
func (c *CborConverter) BodyToOperation(body []byte, opcode requests.Opcode) (NativeOperation, error) {
	var op NativeOperation
	switch opcode {
	case requests.OpPing:
		op = c.decodeOp(body, &Ping{})
	case requests.OpListProviders:
		op = c.decodeOp(body, &ListProviders{})
	case requests.OpListOpcodes:
		op = c.decodeOp(body, &ListOpcodes{})
	case requests.OpListAuthenticators:
		op = c.decodeOp(body, &ListAuthenticators{})
	case requests.OpGenerateKey:
		op = c.decodeOp(body, &GenerateKey{})
	case requests.OpImportKey:
		op = c.decodeOp(body, &ImportKey{})
	case requests.OpExportPublicKey:
		op = c.decodeOp(body, &ExportPublicKey{})
	case requests.OpExportKey:
		op = c.decodeOp(body, &ExportKey{})
	case requests.OpDestroyKey:
		op = c.decodeOp(body, &DestroyKey{})
	case requests.OpSignHash:
		op = c.decodeOp(body, &SignHash{})
	case requests.OpVerifyHash:
		op = c.decodeOp(body, &VerifyHash{})
	case requests.OpAsymmetricEncrypt:
		op = c.decodeOp(body, &AsymmetricEncrypt{})
	case requests.OpAsymmetricDecrypt:
		op = c.decodeOp(body, &AsymmetricDecrypt{})
	case requests.OpAeadEncrypt:
		op = c.decodeOp(body, &AeadEncrypt{})
	case requests.OpAeadDecrypt:
		op = c.decodeOp(body, &AeadDecrypt{})
	case requests.OpRawKeyAgreement:
		op = c.decodeOp(body, &RawKeyAgreement{})
	case requests.OpListKeys:
		op = c.decodeOp(body, &ListKeys{})
	case requests.OpHashCompute:
		op = c.decodeOp(body, &HashCompute{})
	case requests.OpHashCompare:
		op = c.decodeOp(body, &HashCompare{})
	case requests.OpGenerateRandom:
		op = c.decodeOp(body, &GenerateRandom{})
	default:
		return nil, requests.OpcodeDoesNotExist
	}
	if op == nil {
		return nil, requests.DeserializingBodyFailed
	}
	return op, nil
}

// decodeOp unmarshals into dst and returns the dereferenced variant, or
// nil if the body does not parse. An empty body decodes to the zero
// operation, matching the encoding of parameterless operations.
func (c *CborConverter) decodeOp(body []byte, dst NativeOperation) NativeOperation {
	if len(body) > 0 {
		if err := c.dec.Unmarshal(body, dst); err != nil {
			return nil
		}
	}
	return deref(dst).(NativeOperation)
}

// deref converts the pointer used for unmarshalling back into the value
// variant carried by the tagged union.
func deref(v any) any {
	return reflect.ValueOf(v).Elem().Interface()
}

// BodyToResult implements Converter.
func (c *CborConverter) BodyToResult(body []byte, opcode requests.Opcode) (NativeResult, error) {
	var dst NativeResult
	switch opcode {
	case requests.OpPing:
		dst = &PingResult{}
	case requests.OpListProviders:
		dst = &ListProvidersResult{}
	case requests.OpListOpcodes:
		dst = &ListOpcodesResult{}
	case requests.OpListAuthenticators:
		dst = &ListAuthenticatorsResult{}
	case requests.OpGenerateKey:
		dst = &GenerateKeyResult{}
	case requests.OpImportKey:
		dst = &ImportKeyResult{}
	case requests.OpExportPublicKey:
		dst = &ExportPublicKeyResult{}
	case requests.OpExportKey:
		dst = &ExportKeyResult{}
	case requests.OpDestroyKey:
		dst = &DestroyKeyResult{}
	case requests.OpSignHash:
		dst = &SignHashResult{}
	case requests.OpVerifyHash:
		dst = &VerifyHashResult{}
	case requests.OpAsymmetricEncrypt:
		dst = &AsymmetricEncryptResult{}
	case requests.OpAsymmetricDecrypt:
		dst = &AsymmetricDecryptResult{}
	case requests.OpAeadEncrypt:
		dst = &AeadEncryptResult{}
	case requests.OpAeadDecrypt:
		dst = &AeadDecryptResult{}
	case requests.OpRawKeyAgreement:
		dst = &RawKeyAgreementResult{}
	case requests.OpListKeys:
		dst = &ListKeysResult{}
	case requests.OpHashCompute:
		dst = &HashComputeResult{}
	case requests.OpHashCompare:
		dst = &HashCompareResult{}
	case requests.OpGenerateRandom:
		dst = &GenerateRandomResult{}
	default:
		return nil, requests.OpcodeDoesNotExist
	}
	if len(body) > 0 {
		if err := c.dec.Unmarshal(body, dst); err != nil {
			return nil, requests.DeserializingBodyFailed
		}
	}
	return deref(dst).(NativeResult), nil
}

// OperationToBody implements Converter.
func (c *CborConverter) OperationToBody(op NativeOperation) ([]byte, error) {
	body, err := c.enc.Marshal(op)
	if err != nil {
		return nil, requests.SerializingBodyFailed
	}
	return body, nil
}

// ResultToBody implements Converter.
func (c *CborConverter) ResultToBody(res NativeResult) ([]byte, error) {
	body, err := c.enc.Marshal(res)
	if err != nil {
		return nil, requests.SerializingBodyFailed
	}
	return body, nil
}
