package labelmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotationqc/pkg/config"
)

func spineMapping() map[string]config.ViewLabelMap {
	return map[string]config.ViewLabelMap{
		"AP": {StandardToActual: config.LabelEntries{
			{Standard: "L1", Actual: []string{"l1", "Lumbar1"}},
			{Standard: "L2", Actual: []string{"l2"}},
			{Standard: "Sacrum", Actual: []string{"S"}},
		}},
		"LAT": {Extends: "AP", StandardToActual: config.LabelEntries{
			{Standard: "L1", Actual: []string{"lat_l1"}},
			{Standard: "Femoral_Head", Actual: []string{"FH"}},
		}},
		"LAT_FLEX": {Extends: "LAT", StandardToActual: config.LabelEntries{
			{Standard: "L2", Actual: []string{"flex_l2"}},
		}},
	}
}

func TestEffectiveMapOverride(t *testing.T) {
	r := New(spineMapping())

	lat, err := r.EffectiveMap("LAT")
	require.NoError(t, err)
	// the child's list replaces the parent's, it is not merged
	assert.Equal(t, []string{"lat_l1"}, lat.Synonyms("L1"))
	// unrelated inherited labels are untouched
	assert.Equal(t, []string{"l2"}, lat.Synonyms("L2"))
	assert.Equal(t, []string{"S"}, lat.Synonyms("Sacrum"))
	assert.Equal(t, []string{"L1", "L2", "Sacrum", "Femoral_Head"}, lat.Labels())
}

func TestEffectiveMapMultiLevel(t *testing.T) {
	r := New(spineMapping())

	flex, err := r.EffectiveMap("LAT_FLEX")
	require.NoError(t, err)
	assert.Equal(t, []string{"lat_l1"}, flex.Synonyms("L1"))
	assert.Equal(t, []string{"flex_l2"}, flex.Synonyms("L2"))
	assert.Equal(t, []string{"FH"}, flex.Synonyms("Femoral_Head"))
	assert.Equal(t, 4, flex.Len())
}

func TestEffectiveMapUnknownView(t *testing.T) {
	r := New(spineMapping())
	m, err := r.EffectiveMap("OBLIQUE")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	_, ok, err := r.Lookup("l1", "OBLIQUE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffectiveMapCycle(t *testing.T) {
	mapping := map[string]config.ViewLabelMap{
		"A": {Extends: "B"},
		"B": {Extends: "C"},
		"C": {Extends: "A"},
	}
	r := New(mapping)
	_, err := r.EffectiveMap("A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLabelMapCycle))
	assert.Contains(t, err.Error(), "A -> B -> C -> A")

	_, _, err = r.Lookup("x", "B")
	assert.True(t, errors.Is(err, ErrLabelMapCycle))

	var cfgErr *config.ConfigError
	assert.True(t, errors.As(r.Validate(), &cfgErr))
}

func TestCycleReportedAlikeByConfigAndResolver(t *testing.T) {
	cfg := config.DefaultConfig()
	ap := cfg.LabelMapping["AP"]
	ap.Extends = "LAT"
	cfg.LabelMapping["AP"] = ap

	cfgErr := cfg.Validate()
	require.Error(t, cfgErr)
	resolverErr := New(cfg.LabelMapping).Validate()
	require.Error(t, resolverErr)

	assert.Equal(t, cfgErr.Error(), resolverErr.Error())
	assert.ErrorIs(t, resolverErr, ErrLabelMapCycle)
	assert.Contains(t, resolverErr.Error(), "AP -> LAT -> AP")
}

func TestReverseMapReturnsCopy(t *testing.T) {
	r := New(spineMapping())

	reverse, err := r.ReverseMap("AP")
	require.NoError(t, err)
	delete(reverse, "l1")
	reverse["l2"] = "L9"

	standard, ok, err := r.Lookup("l1", "AP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L1", standard)

	again, err := r.ReverseMap("AP")
	require.NoError(t, err)
	assert.Equal(t, "L2", again["l2"])
}

func TestLookupFollowsRequestedView(t *testing.T) {
	r := New(spineMapping())

	standard, ok, err := r.Lookup("l1", "AP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L1", standard)

	// the parent's synonym for L1 is replaced in LAT
	_, ok, err = r.Lookup("l1", "LAT")
	require.NoError(t, err)
	assert.False(t, ok)

	standard, ok, err = r.Lookup("lat_l1", "LAT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L1", standard)

	// switching back recomputes for AP
	_, ok, err = r.Lookup("lat_l1", "AP")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSynonymCollisionLaterWins(t *testing.T) {
	mapping := map[string]config.ViewLabelMap{
		"AP": {StandardToActual: config.LabelEntries{
			{Standard: "L5", Actual: []string{"last_lumbar", "L5"}},
			{Standard: "L6", Actual: []string{"last_lumbar"}},
		}},
	}
	r := New(mapping)

	reverse, err := r.ReverseMap("AP")
	require.NoError(t, err)
	assert.Equal(t, "L6", reverse["last_lumbar"])
	assert.Equal(t, "L5", reverse["L5"])

	collisions, err := r.Collisions("AP")
	require.NoError(t, err)
	require.Len(t, collisions, 1)
	assert.Equal(t, "last_lumbar", collisions[0].Actual)
	assert.Equal(t, []string{"L5", "L6"}, collisions[0].Standard)

	err = r.Validate()
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, `synonym "last_lumbar" declared by L5, L6`)
}

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, New(config.DefaultConfig().LabelMapping).Validate())
}
