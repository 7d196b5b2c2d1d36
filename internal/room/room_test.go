package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsSymmetric(t *testing.T) {
	assert.Equal(t, Key("alice", "bob"), Key("bob", "alice"))
	assert.Equal(t, "alice:bob", Key("bob", "alice"))
}

func TestKeyDistinguishesPairs(t *testing.T) {
	assert.NotEqual(t, Key("alice", "bob"), Key("alice", "carol"))
	assert.NotEqual(t, Key("alice", "bob"), Key("bob", "carol"))
}

func TestValidID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"alice", true},
		{"650c9d2f8e4b0a1b2c3d4e5f", true},
		{"8b0a7e9c-2f64-4a1d-9c3b-5e6f7a8b9c0d", true},
		{"", false},
		{"has:separator", false},
		{"has space", false},
		{"under_score", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, ValidID(tc.id), "id %q", tc.id)
	}
}
