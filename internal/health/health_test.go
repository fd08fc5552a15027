package health

import (
	"sync"
	"testing"
)

func TestRoutingStatesRollUp(t *testing.T) {
	type update struct {
		name   string
		status Status
	}
	tests := []struct {
		name    string
		updates []update
		want    Status
	}{
		{"nothing reported", nil, Unknown},
		{"routing", []update{{ComponentPipeline, Healthy}, {ComponentStream, Healthy}}, Healthy},
		{"stream flapping", []update{{ComponentPipeline, Healthy}, {ComponentStream, Degraded}}, Degraded},
		{"fatal stage", []update{{ComponentPipeline, Unhealthy}}, Unhealthy},
		{"cable unplugged mid-run", []update{{ComponentPipeline, Healthy}, {ComponentStream, Degraded}, {ComponentStream, Unhealthy}}, Unhealthy},
		{"stream not yet reported", []update{{ComponentPipeline, Unhealthy}, {ComponentStream, Unknown}}, Unknown},
		{"recovered", []update{{ComponentStream, Unhealthy}, {ComponentStream, Healthy}}, Healthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			for _, u := range tt.updates {
				m.Update(u.name, u.status, "")
			}
			if got := m.Overall(); got != tt.want {
				t.Fatalf("Overall() = %q, want %q", got, tt.want)
			}
			if got := m.Summary()["status"]; got != string(tt.want) {
				t.Fatalf("Summary status = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestUpdateKeepsLatestMessage(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentPipeline, Unhealthy, "find virtual cable: virtual cable not found")

	c, ok := m.Get(ComponentPipeline)
	if !ok {
		t.Fatal("pipeline check missing")
	}
	if c.Status != Unhealthy || c.Message != "find virtual cable: virtual cable not found" {
		t.Fatalf("check = %+v", c)
	}
	if c.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not set")
	}
	if _, ok := m.Get(ComponentStream); ok {
		t.Fatal("stream should not be reported before routing starts")
	}
}

func TestUpdateCoercesUnknownValuesToUnhealthy(t *testing.T) {
	for _, s := range []Status{"", "ok", "routing"} {
		if s.IsValid() {
			t.Fatalf("%q should not be a valid status", s)
		}
		m := NewMonitor()
		m.Update(ComponentStream, s, "")
		if c, _ := m.Get(ComponentStream); c.Status != Unhealthy {
			t.Errorf("Update(%q) stored %q, want unhealthy", s, c.Status)
		}
	}
}

func TestSummaryMatchesComponentsUnderConcurrentUpdates(t *testing.T) {
	m := NewMonitor()
	tr := m.Stream(ComponentStream)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Update(ComponentStream, Degraded, "render get buffer failed")
		}()
		go func() {
			defer wg.Done()
			tr.Success()
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Summary()
			components, _ := s["components"].(map[string]string)
			if stream, ok := components[ComponentStream]; ok && s["status"] != stream {
				t.Errorf("overall %v does not match stream %q", s["status"], stream)
			}
		}()
	}
	wg.Wait()
}

func TestAllIsSortedByName(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentStream, Healthy, "")
	m.Update(ComponentPipeline, Healthy, "")

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d checks, want 2", len(all))
	}
	if all[0].Name != ComponentPipeline || all[1].Name != ComponentStream {
		t.Fatalf("All() order = %q, %q", all[0].Name, all[1].Name)
	}
}
