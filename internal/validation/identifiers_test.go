package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSyncID(t *testing.T) {
	tests := []struct {
		name    string
		syncID  string
		errMsg  string
		wantErr bool
	}{
		{name: "valid uuid", syncID: "7f9c2ba4-e88f-4a4c-8a3b-3d1c0f1e6b5a"},
		{name: "empty", syncID: "", wantErr: true, errMsg: "sync id cannot be empty"},
		{name: "not a uuid", syncID: "record-1", wantErr: true, errMsg: "sync id must be a UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSyncID(tt.syncID)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateReplicaID(t *testing.T) {
	tests := []struct {
		name      string
		replicaID string
		wantErr   bool
	}{
		{name: "uuid", replicaID: "0b1d6f3e-2f0a-4a53-9d1e-7e1f9a7e2c11"},
		{name: "short name", replicaID: "r1"},
		{name: "host and port", replicaID: "laptop.local:7"},
		{name: "max length", replicaID: strings.Repeat("a", 64)},
		{name: "too long", replicaID: strings.Repeat("a", 65), wantErr: true},
		{name: "empty", replicaID: "", wantErr: true},
		{name: "space", replicaID: "my laptop", wantErr: true},
		{name: "non ascii", replicaID: "ноутбук", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReplicaID(tt.replicaID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{name: "simple", field: "price"},
		{name: "with underscore", field: "is_deleted"},
		{name: "with digits", field: "line2"},
		{name: "empty", field: "", wantErr: true},
		{name: "uppercase", field: "Price", wantErr: true},
		{name: "starts with digit", field: "2nd", wantErr: true},
		{name: "dash", field: "unit-price", wantErr: true},
		{name: "too long", field: "a" + strings.Repeat("b", MaxFieldNameLen), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.field)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateKind(t *testing.T) {
	assert.NoError(t, ValidateKind("product"))
	assert.NoError(t, ValidateKind("price-list"))
	assert.Error(t, ValidateKind(""))
	assert.Error(t, ValidateKind("Product"))
	assert.Error(t, ValidateKind(strings.Repeat("k", MaxKindLen+1)))
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText(""))
	assert.NoError(t, ValidateText("Привет"))
	assert.Error(t, ValidateText(string([]byte{0xff, 0xfe})))
	assert.Error(t, ValidateText(strings.Repeat("x", MaxTextLen+1)))
}

func TestValidatePassphrase(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		errMsg     string
		wantErr    bool
	}{
		{name: "valid", passphrase: "correct horse battery"},
		{name: "exactly min length", passphrase: "123456789012"},
		{name: "empty", passphrase: "", wantErr: true, errMsg: "passphrase cannot be empty"},
		{name: "too short", passphrase: "short", wantErr: true, errMsg: "at least 12 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassphrase(tt.passphrase)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}
