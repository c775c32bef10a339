package providers

import (
	"errors"

	"github.com/google/uuid"

	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// coreProviderUUID is the assigned identity of the core provider.
var coreProviderUUID = uuid.MustParse("47049873-2a43-4845-9d72-831eab668784")

var coreOpcodes = []requests.Opcode{
	requests.OpListProviders,
	requests.OpListOpcodes,
	requests.OpPing,
	requests.OpListAuthenticators,
}

// CoreProvider implements the administrative operations. It holds no
// persistent state, only the configured protocol version pair and the
// descriptor list assembled at build time.
type CoreProvider struct {
	Base

	versionMaj     uint8
	versionMin     uint8
	providerInfos  []operations.ProviderInfo
	authenticators []operations.AuthenticatorInfo
}

// CoreConfig configures the core provider.
type CoreConfig struct {
	// VersionMaj and VersionMin form the highest wire protocol version
	// the service supports, returned by ping.
	VersionMaj uint8
	VersionMin uint8
	// ProviderInfos describes the peer providers. The core provider
	// appends its own description last at build time.
	ProviderInfos []operations.ProviderInfo
	// Authenticators describes the accepted authenticators.
	Authenticators []operations.AuthenticatorInfo
}

// NewCoreProvider validates the configuration and builds the provider.
func NewCoreProvider(cfg CoreConfig) (*CoreProvider, error) {
	if cfg.VersionMaj == 0 && cfg.VersionMin == 0 {
		return nil, errors.New("core provider: protocol version is required")
	}
	p := &CoreProvider{
		versionMaj:     cfg.VersionMaj,
		versionMin:     cfg.VersionMin,
		authenticators: cfg.Authenticators,
	}
	p.providerInfos = append(p.providerInfos, cfg.ProviderInfos...)
	info, err := p.Describe()
	if err != nil {
		return nil, err
	}
	p.providerInfos = append(p.providerInfos, info)
	return p, nil
}

// Describe implements Provider.
func (p *CoreProvider) Describe() (operations.ProviderInfo, error) {
	return operations.ProviderInfo{
		UUID:        coreProviderUUID,
		Description: "Software provider that implements only administrative (i.e. no cryptographic) operations",
		Vendor:      "",
		VersionMaj:  0,
		VersionMin:  1,
		VersionRev:  0,
		ID:          requests.ProviderCore,
	}, nil
}

// ListProviders implements Provider. The core provider's own
// description is always the last element.
func (p *CoreProvider) ListProviders(operations.ListProviders) (operations.ListProvidersResult, error) {
	infos := make([]operations.ProviderInfo, len(p.providerInfos))
	copy(infos, p.providerInfos)
	return operations.ListProvidersResult{Providers: infos}, nil
}

// ListOpcodes implements Provider.
func (p *CoreProvider) ListOpcodes(operations.ListOpcodes) (operations.ListOpcodesResult, error) {
	opcodes := make([]requests.Opcode, len(coreOpcodes))
	copy(opcodes, coreOpcodes)
	return operations.ListOpcodesResult{Opcodes: opcodes}, nil
}

// ListAuthenticators implements Provider.
func (p *CoreProvider) ListAuthenticators(operations.ListAuthenticators) (operations.ListAuthenticatorsResult, error) {
	infos := make([]operations.AuthenticatorInfo, len(p.authenticators))
	copy(infos, p.authenticators)
	return operations.ListAuthenticatorsResult{Authenticators: infos}, nil
}

// Ping implements Provider.
func (p *CoreProvider) Ping(operations.Ping) (operations.PingResult, error) {
	return operations.PingResult{
		VersionMaj: p.versionMaj,
		VersionMin: p.versionMin,
	}, nil
}
