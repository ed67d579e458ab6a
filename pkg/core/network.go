package core

// Network selects the BitMEX environment a client talks to.
type Network string

// Network constants define the available BitMEX environments.
const (
	// NetworkMainnet is the production exchange.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet is the paper-trading exchange.
	NetworkTestnet Network = "testnet"
)

const (
	MainnetURL = "https://www.bitmex.com"
	TestnetURL = "https://testnet.bitmex.com"

	// APIPrefix is prepended to every endpoint path and is part of the signed path.
	APIPrefix = "/api/v1"
)

// String returns the network name.
func (n Network) String() string {
	return string(n)
}

// BaseURL returns the scheme and host for the network.
// Unknown networks fall back to mainnet; Config.Validate rejects them first.
func (n Network) BaseURL() string {
	if n == NetworkTestnet {
		return TestnetURL
	}
	return MainnetURL
}
