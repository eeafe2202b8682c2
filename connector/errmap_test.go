package connector

import (
	"errors"
	"testing"

	"github.com/nucleon-labs/neoportal/relay"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/zeebo/assert"
)

func TestMapNeoLineError(t *testing.T) {
	cases := []struct {
		nativeType string
		kind       walleterr.Kind
	}{
		{NeoLineNoProvider, walleterr.NotInstalled},
		{NeoLineConnectionDenied, walleterr.UserRejected},
		{NeoLineCanceled, walleterr.UserRejected},
		{NeoLineConnectionRefused, walleterr.CommunicationFailed},
		{NeoLineRPCError, walleterr.NetworkError},
		{NeoLineMalformedInput, walleterr.MalformedInput},
		{NeoLineInsufficientFunds, walleterr.InsufficientFunds},
		{"SOMETHING_NEW", walleterr.Unknown},
	}

	for _, tc := range cases {
		t.Run(tc.nativeType, func(t *testing.T) {
			native := &NeoLineError{Type: tc.nativeType, Message: "boom"}
			err := mapNeoLineError(native)
			assert.Equal(t, tc.kind, walleterr.KindOf(err))

			// The native error survives as the cause.
			var cause *NeoLineError
			assert.True(t, errors.As(err, &cause))
		})
	}
}

func TestMapNeoLineErrorPassesThroughForeignErrors(t *testing.T) {
	err := mapNeoLineError(errors.New("broken pipe"))
	assert.Equal(t, walleterr.Unknown, walleterr.KindOf(err))
}

func TestMapDapiError(t *testing.T) {
	cases := []struct {
		code int
		kind walleterr.Kind
	}{
		{DapiCodeCommunicationFailed, walleterr.CommunicationFailed},
		{DapiCodeInvalidParams, walleterr.InvalidParams},
		{DapiCodeUserRejected, walleterr.UserRejected},
		{DapiCodeUnsupportedNetwork, walleterr.ChainMismatch},
		{DapiCodeNoAccount, walleterr.AccountNotFound},
		{DapiCodeInsufficientFunds, walleterr.InsufficientFunds},
		{DapiCodeRemoteRPC, walleterr.NetworkError},
		{DapiCodeMalformedInput, walleterr.MalformedInput},
		{-1, walleterr.Unknown},
	}

	for _, tc := range cases {
		native := &DapiError{Code: tc.code, Message: "boom"}
		err := mapDapiError(native)
		assert.Equal(t, tc.kind, walleterr.KindOf(err))
	}
}

func TestMapRelayError(t *testing.T) {
	assert.Equal(t, walleterr.NotConnected, walleterr.KindOf(mapRelayError(relay.ErrNoSession)))

	cases := []struct {
		code int
		kind walleterr.Kind
	}{
		{relay.CodeUserRejected, walleterr.UserRejected},
		{relay.CodeInvalidParams, walleterr.InvalidParams},
		{relay.CodeInsufficientFunds, walleterr.InsufficientFunds},
		{relay.CodeRemoteRPC, walleterr.NetworkError},
		{42, walleterr.Unknown},
	}
	for _, tc := range cases {
		err := mapRelayError(&relay.FaultError{Code: tc.code, Message: "boom"})
		assert.Equal(t, tc.kind, walleterr.KindOf(err))
	}

	assert.Equal(t, walleterr.CommunicationFailed,
		walleterr.KindOf(mapRelayError(errors.New("websocket: close 1006"))))
}
