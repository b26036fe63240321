// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTestKey() string {
	// 32 zero bytes, base64-encoded -> 44 chars ending in "=".
	return "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
}

func TestValidatePublicKeyAcceptsWellFormedKey(t *testing.T) {
	assert.NoError(t, validatePublicKey(validTestKey()))
}

func TestValidatePublicKeyRejectsShortKey(t *testing.T) {
	assert.Error(t, validatePublicKey("dG9vc2hvcnQ="))
}

func TestValidatePublicKeyRejectsInvalidBase64(t *testing.T) {
	assert.Error(t, validatePublicKey("not-base64-!!!!"))
}

func TestNewProgrammerStoresConfig(t *testing.T) {
	p := New("reseda", "10.8.0.1/16", "fakeprivatekey", 51820)
	assert.Equal(t, "reseda", p.iface)
	assert.Equal(t, "10.8.0.1/16", p.address)
	assert.Equal(t, 51820, p.listenPort)
}

func TestParseTransferDumpSkipsMalformedLines(t *testing.T) {
	dump := validTestKey() + "\t100\t200\n" + "garbage-line\n" + "\n"
	transfers := parseTransferDump(dump)
	assert.Len(t, transfers, 1)
	assert.Equal(t, int64(100), transfers[0].Received)
	assert.Equal(t, int64(200), transfers[0].Sent)
}

func TestParseTransferDumpEmptyOutputYieldsEmptySlice(t *testing.T) {
	transfers := parseTransferDump("")
	assert.NotNil(t, transfers)
	assert.Len(t, transfers, 0)
}
