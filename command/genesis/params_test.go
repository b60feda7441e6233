package genesis

import (
	"path/filepath"
	"testing"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

const (
	validatorA = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	validatorB = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	token      = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func validParams() *genesisParams {
	return &genesisParams{
		validators:   []string{validatorA + ":60", validatorB + ":40"},
		admin:        validatorA,
		bridgeActive: true,
		ibcDenom:     config.DefaultIbcElyDenom,
		ibcTimeout:   config.DefaultIbcTimeout,
		mappings:     []string{types.GravityDenom(ethgo.HexToAddress(token)) + ":" + token},
		balances:     []string{validatorB + ":stake:1000"},
	}
}

func TestGenesisParams_BuildGenesis(t *testing.T) {
	t.Parallel()

	p := validParams()
	require.NoError(t, p.validateFlags())

	g, err := p.buildGenesis()
	require.NoError(t, err)

	require.Len(t, g.Valset, 2)
	assert.Equal(t, uint64(60), g.Valset[0].Power)
	assert.Equal(t, ethgo.HexToAddress(validatorA), g.Params.ElysiumAdmin)
	require.Len(t, g.TokenMappings, 1)
	assert.Equal(t, ethgo.HexToAddress(token), g.TokenMappings[0].Contract)
	require.Len(t, g.Balances, 1)
	assert.Equal(t, uint64(1000), g.Balances[0].Amount.Uint64())

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, g.Save(path))

	loaded, err := bridge.LoadGenesis(path)
	require.NoError(t, err)
	assert.Equal(t, g.Valset, loaded.Valset)
}

func TestGenesisParams_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(p *genesisParams)
	}{
		{name: "no validators", mutate: func(p *genesisParams) { p.validators = nil }},
		{name: "validator without power", mutate: func(p *genesisParams) { p.validators = []string{validatorA} }},
		{name: "zero power", mutate: func(p *genesisParams) { p.validators = []string{validatorA + ":0"} }},
		{name: "bad admin", mutate: func(p *genesisParams) { p.admin = "admin" }},
		{name: "bad mapping denom", mutate: func(p *genesisParams) { p.mappings = []string{"stake:" + token} }},
		{name: "bad balance", mutate: func(p *genesisParams) { p.balances = []string{validatorB + ":stake:-1"} }},
		{name: "empty balance", mutate: func(p *genesisParams) { p.balances = []string{validatorB + ":stake:0"} }},
		{name: "bad ibc denom", mutate: func(p *genesisParams) { p.ibcDenom = "ely" }},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			p := validParams()
			c.mutate(p)

			require.Error(t, p.validateFlags())
		})
	}
}
