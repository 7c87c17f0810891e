package mpesa

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	// 21:30 UTC is already the next day in Nairobi
	ts := Timestamp(time.Date(2024, 12, 31, 21, 30, 5, 0, time.UTC))
	assert.Equal(t, "20250101003005", ts)
}

func TestParseTimestamp(t *testing.T) {
	parsed, err := ParseTimestamp("20191219102115")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC), parsed)

	_, err = ParseTimestamp("2019-12-19")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	password := Password("174379", "passkey", "20240601150000")

	decoded, err := base64.StdEncoding.DecodeString(password)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20240601150000", string(decoded))
}

func TestFlexString(t *testing.T) {
	var resp stkQueryResponse
	require.NoError(t, json.Unmarshal([]byte(`{"ResponseCode":0,"ResultCode":"1032 "}`), &resp))
	assert.Equal(t, flexString("0"), resp.ResponseCode)
	assert.Equal(t, flexString("1032"), resp.ResultCode)

	var token tokenResponse
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"abc","expires_in":null}`), &token))
	assert.Equal(t, flexString(""), token.ExpiresIn)
}
