package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/identity"
)

// Registry maps identity categories onto the contract deployed for them on
// one network.
type Registry struct {
	network   string
	contracts map[string]string
}

// NewRegistry builds a registry for network from a category→address map.
// Category keys are matched case-insensitively.
func NewRegistry(network string, contracts map[string]string) *Registry {
	normalized := make(map[string]string, len(contracts))
	for category, address := range contracts {
		normalized[strings.ToLower(category)] = strings.TrimSpace(address)
	}
	return &Registry{network: network, contracts: normalized}
}

// Network is the chain network the registry describes.
func (r *Registry) Network() string {
	return r.network
}

// ContractAddress resolves the contract for category or fails with ConfigurationError.
func (r *Registry) ContractAddress(category identity.Category) (string, error) {
	address, ok := r.contracts[category.Key()]
	if !ok || address == "" {
		return "", apperr.New(apperr.ErrConfiguration, "Contract address not found")
	}
	if !common.IsHexAddress(address) {
		return "", apperr.New(apperr.ErrConfiguration, "Contract address for "+string(category)+" is not a hex address")
	}
	return address, nil
}
