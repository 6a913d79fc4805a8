package registry

// Canonical Lido deployments used by the staking provider. Mainnet only: the
// withdrawal queue is the spender approved before a withdrawal request.
var lidoContractsByChainID = map[int64]struct {
	StETH           string
	WithdrawalQueue string
}{
	1: {
		StETH:           "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84",
		WithdrawalQueue: "0x889edC2eDab5f40e902b864aD4d7AdE8E412F9B1",
	},
}

func LidoContracts(chainID int64) (stETH string, withdrawalQueue string, ok bool) {
	contracts, ok := lidoContractsByChainID[chainID]
	if !ok {
		return "", "", false
	}
	return contracts.StETH, contracts.WithdrawalQueue, true
}
