package seccompwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompiledSizesMatchesStructConstants(t *testing.T) {
	want := SeccompNotifSizes{
		Notif:     SizeSeccompNotif,
		NotifResp: SizeSeccompNotifResp,
		Data:      SizeSeccompData,
	}
	assert.Equal(t, want, CompiledSizes())
}
