package bridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

func TestStripCompartmentIndex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rxn00148_c0", "rxn00148_c"},
		{"cpd00027_e0", "cpd00027_e"},
		{"rxn10122_p0", "rxn10122_p"},
		{"rxn00148_c", "rxn00148_c"},
		{"bio1", "bio1"},
		{"EX_cpd00007_e0", "EX_cpd00007_e"},
		{"rxn00148_c1", "rxn00148_c1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, bridge.StripCompartmentIndex(tt.in))
		})
	}
}

func TestStripCompartmentIndex_IdempotentOnBareIDs(t *testing.T) {
	for _, id := range []string{"rxn00148_c0", "cpd00027_e0", "rxn05573_p0", "rxn00001_c", "cpd00001_e"} {
		once := bridge.StripCompartmentIndex(id)
		assert.Equal(t, once, bridge.StripCompartmentIndex(once), id)
	}
}

func TestAddCompartmentIndex(t *testing.T) {
	assert.Equal(t, "rxn00148_c0", bridge.AddCompartmentIndex("rxn00148_c"))
	assert.Equal(t, "rxn00148_c0", bridge.AddCompartmentIndex("rxn00148_c0"))
	assert.Equal(t, "bio1", bridge.AddCompartmentIndex("bio1"))
	assert.Equal(t, "", bridge.AddCompartmentIndex(""))

	for _, id := range []string{"rxn00148_c", "cpd00027_e", "rxn10122_p"} {
		assert.Equal(t, id, bridge.StripCompartmentIndex(bridge.AddCompartmentIndex(id)))
	}
}

func TestCompartment(t *testing.T) {
	assert.Equal(t, "c", bridge.Compartment("rxn00148_c0"))
	assert.Equal(t, "e", bridge.Compartment("cpd00027_e"))
	assert.Equal(t, "", bridge.Compartment("bio1"))
	assert.Equal(t, "", bridge.Compartment("trailing_"))
}

func TestDirectionBounds(t *testing.T) {
	tests := []struct {
		dir   types.Direction
		lower float64
		upper float64
	}{
		{types.DirectionForward, 0, types.MaxFlux},
		{types.DirectionReverse, -types.MaxFlux, 0},
		{types.DirectionReversible, -types.MaxFlux, types.MaxFlux},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			lo, up, err := bridge.DirectionBounds(tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.lower, lo)
			assert.Equal(t, tt.upper, up)
			assert.Equal(t, tt.dir, bridge.BoundsDirection(lo, up))
		})
	}
}

func TestDirectionBounds_UnknownSymbol(t *testing.T) {
	for _, sym := range []types.Direction{"", "?", "<=>", "forward"} {
		_, _, err := bridge.DirectionBounds(sym)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrValidation))
	}
}

func TestWiden(t *testing.T) {
	lo, up := bridge.Widen(0, 1000, -1000, 0)
	assert.Equal(t, -1000.0, lo)
	assert.Equal(t, 1000.0, up)
}

type staticNamer map[string]string

func (n staticNamer) CompoundName(_ context.Context, id string) (string, error) {
	if name, ok := n[id]; ok {
		return name, nil
	}
	return "", types.ErrNotFound
}

func exchangeNetwork(ids ...string) *types.Network {
	net := &types.Network{ID: "test"}
	for _, id := range ids {
		net.Reactions = append(net.Reactions, &types.Reaction{ID: id, Lower: -1000, Upper: 1000})
	}
	return net
}

func TestToSolverMedium(t *testing.T) {
	net := exchangeNetwork("EX_cpd00027_e0", "EX_cpd00007_e", "EX_cpd00009", "rxn00148_c0")
	bounds := types.BoundsMap{
		"cpd00027": {Lower: -10, Upper: 100},
		"cpd00007": {Lower: 0, Upper: 0},
		"cpd00009": {Lower: -1000, Upper: 1000},
		"cpd99999": {Lower: -5, Upper: 5},
	}

	got := bridge.ToSolverMedium(context.Background(), net, bounds, 100, staticNamer{"cpd99999": "Mystery"})

	assert.Equal(t, map[string]float64{
		"EX_cpd00027_e0": 10,
		"EX_cpd00007_e":  0,
		"EX_cpd00009":    100,
	}, got.Uptake)
	assert.Equal(t, "EX_cpd00027_e0", got.Applied["cpd00027"])
	require.Len(t, got.Missing, 1)
	assert.Equal(t, bridge.MissingCompound{ID: "cpd99999", Name: "Mystery"}, got.Missing[0])
}

func TestToSolverMedium_CompartmentalizedCompoundID(t *testing.T) {
	net := exchangeNetwork("EX_cpd00027_e0")
	got := bridge.ToSolverMedium(context.Background(), net, types.BoundsMap{"cpd00027_e0": {Lower: -5, Upper: 0}}, 100, nil)
	assert.Equal(t, 5.0, got.Uptake["EX_cpd00027_e0"])
	assert.Empty(t, got.Missing)
}

func TestUptakeRate(t *testing.T) {
	assert.Equal(t, 10.0, bridge.UptakeRate(types.Bounds{Lower: -10, Upper: 100}, 100))
	assert.Equal(t, 0.0, bridge.UptakeRate(types.Bounds{Lower: 0, Upper: 0}, 100))
	assert.Equal(t, 50.0, bridge.UptakeRate(types.Bounds{Lower: -1000, Upper: 0}, 50))
	assert.Equal(t, 3.0, bridge.UptakeRate(types.Bounds{Lower: 3, Upper: 4}, 100))
}

func TestValidateBounds(t *testing.T) {
	require.NoError(t, bridge.ValidateBounds(types.BoundsMap{
		"cpd00027": {Lower: -10, Upper: 100},
		"cpd00007": {Lower: 0, Upper: 0},
	}))

	tests := map[string]types.BoundsMap{
		"empty":          {},
		"inverted":       {"cpd00027": {Lower: 5, Upper: -5}},
		"out of range":   {"cpd00027": {Lower: -2000, Upper: 0}},
		"empty compound": {"": {Lower: -1, Upper: 1}},
	}
	for name, bounds := range tests {
		t.Run(name, func(t *testing.T) {
			err := bridge.ValidateBounds(bounds)
			require.Error(t, err)
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Field)
		})
	}
}
