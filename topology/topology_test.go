package topology

import "testing"

func TestBlockFor(t *testing.T) {
	cases := []struct {
		cl   ConsistencyLevel
		rf   int
		want int
	}{
		{CLAny, 3, 1},
		{CLOne, 3, 1},
		{CLTwo, 3, 2},
		{CLQuorum, 3, 2},
		{CLQuorum, 5, 3},
		{CLLocalQuorum, 3, 2},
		{CLAll, 3, 3},
		{CLSerial, 3, 2},
	}
	for _, c := range cases {
		if got := BlockFor(c.cl, c.rf); got != c.want {
			t.Errorf("BlockFor(%s, %d) = %d, want %d", c.cl, c.rf, got, c.want)
		}
	}
}

func TestResolverFilterAlive(t *testing.T) {
	mem := NewMemory()
	mem.SetEndpoint("a", "dc1", "r1", true)
	mem.SetEndpoint("b", "dc1", "r1", false)
	mem.SetEndpoint("c", "dc2", "r1", true)
	mem.SetNatural("ks", "key", []Endpoint{"a", "b", "c"})
	mem.SetReplicationFactor("ks", 3)

	r := NewResolver(mem, mem, mem)
	natural, _ := r.Resolve("ks", "key")
	if len(natural) != 3 {
		t.Fatalf("expected 3 natural endpoints, got %d", len(natural))
	}

	alive := r.FilterAlive(natural)
	if len(alive) != 2 {
		t.Fatalf("expected 2 alive endpoints, got %d", len(alive))
	}
}

func TestResolverGroupByDatacenter(t *testing.T) {
	mem := NewMemory()
	mem.SetEndpoint("a", "dc1", "r1", true)
	mem.SetEndpoint("b", "dc1", "r2", true)
	mem.SetEndpoint("c", "dc2", "r1", true)

	r := NewResolver(mem, mem, mem)
	grouped := r.GroupByDatacenter([]Endpoint{"a", "b", "c"})

	if len(grouped["dc1"]) != 2 {
		t.Errorf("expected 2 endpoints in dc1, got %d", len(grouped["dc1"]))
	}
	if len(grouped["dc2"]) != 1 {
		t.Errorf("expected 1 endpoint in dc2, got %d", len(grouped["dc2"]))
	}
}

func TestResolverRestrictToLocalDC(t *testing.T) {
	mem := NewMemory()
	mem.SetEndpoint("a", "dc1", "r1", true)
	mem.SetEndpoint("b", "dc2", "r1", true)

	r := NewResolver(mem, mem, mem)
	local := r.RestrictToLocalDC([]Endpoint{"a", "b"}, "dc1")

	if len(local) != 1 || local[0] != "a" {
		t.Errorf("expected only endpoint a in dc1, got %v", local)
	}
}
