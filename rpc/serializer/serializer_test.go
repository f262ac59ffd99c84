package serializer

import (
	"reflect"
	"testing"

	"github.com/latticedb/coordinator/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testEnvelopes creates a set of test envelopes with different fields filled
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// Empty envelope
		{},

		// Payload only, no result
		{Payload: []byte(`{"Mutation":{}}`)},

		// Successful response
		{Payload: []byte(`{"Accepted":true}`), Ok: true},

		// Explicit failure
		{Ok: false, Err: "unavailable: need 2 replicas, had 1"},

		// Every field filled
		{Payload: []byte("complete-test-payload"), Ok: true, Err: ""},
	}
}

// TestSerializerRoundTrip tests that envelopes can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	envelopes := testEnvelopes()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for i, env := range envelopes {
				data, err := s.Serialize(env)
				if err != nil {
					t.Errorf("Failed to serialize envelope %d: %v", i, err)
					continue
				}

				var result common.Envelope
				err = s.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize envelope %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(env.Payload, result.Payload) {
					t.Errorf("Envelope %d Payload doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, env.Payload, result.Payload)
				}
				if env.Ok != result.Ok {
					t.Errorf("Envelope %d Ok doesn't match after round trip: expected %v, got %v", i, env.Ok, result.Ok)
				}
				if env.Err != result.Err {
					t.Errorf("Envelope %d Err doesn't match after round trip: expected %q, got %q", i, env.Err, result.Err)
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	s := NewBinarySerializer()

	testCases := []struct {
		name string
		env  common.Envelope
	}{
		{name: "Empty envelope", env: common.Envelope{}},
		{name: "Empty payload slice but not nil", env: common.Envelope{Payload: []byte{}}},
		{name: "Ok true, no payload", env: common.Envelope{Ok: true}},
		{name: "Err only", env: common.Envelope{Err: "boom"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := s.Serialize(tc.env)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Envelope
			if err := s.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if tc.env.Ok != result.Ok {
				t.Errorf("Ok mismatch: expected %v, got %v", tc.env.Ok, result.Ok)
			}
			if tc.env.Err != result.Err {
				t.Errorf("Err mismatch: expected %q, got %q", tc.env.Err, result.Err)
			}
			if (tc.env.Payload == nil) != (result.Payload == nil) {
				t.Errorf("Payload nil/non-nil mismatch: expected %v, got %v", tc.env.Payload, result.Payload)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	s := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{name: "Empty data", data: []byte{}, expectError: true},
		{name: "Valid header only", data: []byte{0}, expectError: false},
		{name: "Invalid length for payload", data: []byte{1, 0, 0, 0, 5, 'a', 'b', 'c'}, expectError: true},
		{name: "Invalid length for error", data: []byte{4, 0, 0, 0, 5}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var env common.Envelope
			err := s.Deserialize(tc.data, &env)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
