package dnsmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSearchDomain(t *testing.T) {
	tests := []struct {
		domain string
		valid  bool
	}{
		{"corp.example", true},
		{"lan", true},
		{"example.com.", true},
		{"", false},
		{"com", false},
		{"co.uk", false},
		{"github.io", false},
		{"bad..domain", false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.domain, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.valid, ValidSearchDomain(tc.domain))
		})
	}
}

func TestSpecificHostname(t *testing.T) {
	assert.True(t, SpecificHostname("laptop.corp.example"))
	for _, h := range []string{"", "localhost", "localhost.localdomain", "localhost6.localdomain6", "(none)"} {
		assert.False(t, SpecificHostname(h), h)
	}
}
