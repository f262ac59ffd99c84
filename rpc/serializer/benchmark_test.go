package serializer

import (
	"testing"

	"github.com/latticedb/coordinator/rpc/common"
)

// benchmarkEnvelopes returns a set of envelopes for targeted benchmarking
func benchmarkEnvelopes() map[string]common.Envelope {
	return map[string]common.Envelope{
		"Empty":          {},
		"SmallPayload":   {Payload: []byte("k")},
		"MediumPayload":  {Payload: []byte("medium length payload for testing serialization")},
		"LargePayload":   {Payload: make([]byte, 1024)},
		"VeryLarge":      {Payload: make([]byte, 1024*16)},
		"SuccessPayload": {Payload: []byte("test-value-data"), Ok: true},
		"ErrorOnly": {
			Err: "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various envelope shapes
func BenchmarkSerialize(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testSerializers {
		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				s := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := s.Serialize(env)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various envelope shapes
func BenchmarkDeserialize(b *testing.B) {
	envelopes := benchmarkEnvelopes()
	serializedData := make(map[string]map[string][]byte)

	for name, factory := range testSerializers {
		s := factory()
		serializedData[name] = make(map[string][]byte)

		for envName, env := range envelopes {
			data, err := s.Serialize(env)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", envName, name, err)
			}
			serializedData[name][envName] = data
		}
	}

	for name, factory := range testSerializers {
		for envName := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				s := factory()
				data := serializedData[name][envName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var env common.Envelope
					err := s.Deserialize(data, &env)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each envelope shape
func BenchmarkSize(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testSerializers {
		s := factory()

		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				data, err := s.Serialize(env)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
