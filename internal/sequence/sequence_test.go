package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidate(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
	  "name": "morning",
	  "actions": [
	    {"kind": "set_volume", "params": {"level": 80}},
	    {"kind": "play_media", "params": {"file": "song.mp3", "fullscreen": true}},
	    {"kind": "wait", "params": {"seconds": 2.5}}
	  ]
	}`)

	seq, err := Decode(raw)
	require.NoError(t, err)
	require.NoError(t, seq.Validate())

	require.Len(t, seq.Actions, 3)
	assert.Equal(t, 80, seq.Actions[0].Params.Int("level", 0))
	assert.Equal(t, "song.mp3", seq.Actions[1].Params.Str("file", ""))
	assert.True(t, seq.Actions[1].Params.Bool("fullscreen", false))
	assert.InDelta(t, 2.5, seq.Actions[2].Params.Float("seconds", 0), 0.001)
}

// Unknown kinds decode fine; the executor fails them at run time. A sequence
// written by a newer version must not break an older binary's list command.
func TestDecodeToleratesUnknownKinds(t *testing.T) {
	t.Parallel()

	seq, err := Decode([]byte(`{"name":"x","actions":[{"kind":"hologram"}]}`))
	require.NoError(t, err)
	require.NoError(t, seq.Validate())
	assert.Equal(t, "hologram", seq.Actions[0].Kind)
}

func TestValidateRejectsEmpty(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&Sequence{Name: "x"}).Validate(), "no actions")
	assert.Error(t, (&Sequence{Actions: []Action{{Kind: "wait"}}}).Validate(), "no name")
	assert.Error(t, (&Sequence{Name: "x", Actions: []Action{{Kind: " "}}}).Validate(), "blank kind")
}

func TestParamsTolerateJSONNumbers(t *testing.T) {
	t.Parallel()

	// JSON decoding yields float64 for every number.
	p := Params{"level": float64(75), "count": 3}
	assert.Equal(t, 75, p.Int("level", 0))
	assert.Equal(t, 3, p.Int("count", 0))
	assert.Equal(t, 9, p.Int("missing", 9))
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	st := NewStore(t.TempDir())
	seq := &Sequence{Name: "evening", Actions: []Action{
		{Kind: KindSetVolume, Params: Params{"level": 30}},
	}}
	require.NoError(t, st.Save(seq))

	got, err := st.Load("evening")
	require.NoError(t, err)
	assert.Equal(t, "evening", got.Name)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, 30, got.Actions[0].Params.Int("level", 0))

	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"evening"}, names)
}

func TestStoreRename(t *testing.T) {
	t.Parallel()

	st := NewStore(t.TempDir())
	require.NoError(t, st.Save(&Sequence{Name: "old", Actions: []Action{{Kind: KindWait, Params: Params{"seconds": 1}}}}))

	require.NoError(t, st.Rename("old", "new"))

	_, err := st.Load("old")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := st.Load("new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
}

func TestStoreDeleteAbsentSucceeds(t *testing.T) {
	t.Parallel()

	st := NewStore(t.TempDir())
	assert.NoError(t, st.Delete("never-existed"))
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	st := NewStore(t.TempDir())
	for _, name := range []string{"../evil", "a/b", `a\b`, ".", ".."} {
		_, err := st.Load(name)
		assert.Error(t, err, name)
	}
}
