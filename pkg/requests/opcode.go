package requests

import "fmt"

// Opcode identifies the operation carried by a request. The numbering is
// part of the wire format and must never be reordered.
type Opcode uint32

const (
	OpPing               Opcode = 0x0001
	OpGenerateKey        Opcode = 0x0002
	OpDestroyKey         Opcode = 0x0003
	OpSignHash           Opcode = 0x0004
	OpVerifyHash         Opcode = 0x0005
	OpImportKey          Opcode = 0x0006
	OpExportPublicKey    Opcode = 0x0007
	OpListProviders      Opcode = 0x0008
	OpListOpcodes        Opcode = 0x0009
	OpAsymmetricEncrypt  Opcode = 0x000A
	OpAsymmetricDecrypt  Opcode = 0x000B
	OpExportKey          Opcode = 0x000C
	OpGenerateRandom     Opcode = 0x000D
	OpListAuthenticators Opcode = 0x000E
	OpHashCompute        Opcode = 0x000F
	OpHashCompare        Opcode = 0x0010
	OpAeadEncrypt        Opcode = 0x0011
	OpAeadDecrypt        Opcode = 0x0012
	OpRawKeyAgreement    Opcode = 0x0013
	OpListKeys           Opcode = 0x001A
)

// AllOpcodes lists every opcode the service understands, in wire order.
var AllOpcodes = []Opcode{
	OpPing,
	OpGenerateKey,
	OpDestroyKey,
	OpSignHash,
	OpVerifyHash,
	OpImportKey,
	OpExportPublicKey,
	OpListProviders,
	OpListOpcodes,
	OpAsymmetricEncrypt,
	OpAsymmetricDecrypt,
	OpExportKey,
	OpGenerateRandom,
	OpListAuthenticators,
	OpHashCompute,
	OpHashCompare,
	OpAeadEncrypt,
	OpAeadDecrypt,
	OpRawKeyAgreement,
	OpListKeys,
}

// IsCore reports whether the opcode is administrative and therefore only
// valid on the core provider. Every other opcode is cryptographic and
// only valid on a non-core provider.
func (o Opcode) IsCore() bool {
	switch o {
	case OpPing, OpListProviders, OpListOpcodes, OpListAuthenticators:
		return true
	default:
		return false
	}
}

// IsValid reports whether the opcode is part of the closed enumeration.
func (o Opcode) IsValid() bool {
	for _, known := range AllOpcodes {
		if o == known {
			return true
		}
	}
	return false
}

func (o Opcode) String() string {
	switch o {
	case OpPing:
		return "Ping"
	case OpGenerateKey:
		return "GenerateKey"
	case OpDestroyKey:
		return "DestroyKey"
	case OpSignHash:
		return "SignHash"
	case OpVerifyHash:
		return "VerifyHash"
	case OpImportKey:
		return "ImportKey"
	case OpExportPublicKey:
		return "ExportPublicKey"
	case OpListProviders:
		return "ListProviders"
	case OpListOpcodes:
		return "ListOpcodes"
	case OpAsymmetricEncrypt:
		return "AsymmetricEncrypt"
	case OpAsymmetricDecrypt:
		return "AsymmetricDecrypt"
	case OpExportKey:
		return "ExportKey"
	case OpGenerateRandom:
		return "GenerateRandom"
	case OpListAuthenticators:
		return "ListAuthenticators"
	case OpHashCompute:
		return "HashCompute"
	case OpHashCompare:
		return "HashCompare"
	case OpAeadEncrypt:
		return "AeadEncrypt"
	case OpAeadDecrypt:
		return "AeadDecrypt"
	case OpRawKeyAgreement:
		return "RawKeyAgreement"
	case OpListKeys:
		return "ListKeys"
	default:
		return fmt.Sprintf("Opcode(0x%04X)", uint32(o))
	}
}
