package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOrdinalsMatchWireFormat(t *testing.T) {
	assert.Equal(t, Status(0), AllocFail)
	assert.Equal(t, Status(1), OK)
	assert.Equal(t, Status(17), WrongContext)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "WOULD-BLOCK", WouldBlock.String())
	assert.Equal(t, "UNKNOWN-STATUS", Status(200).String())
}
