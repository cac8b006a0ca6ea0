package risk

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// spyPlugin records whether it was invoked and always returns a fixed
// verdict, letting tests assert exactly which plugins ran.
type spyPlugin struct {
	name    string
	allow   bool
	reason  string
	invoked *[]string
}

func (s *spyPlugin) Name() string { return s.name }

func (s *spyPlugin) Check(context.Context, models.Order, models.Account, string, models.RiskSettings) (bool, string) {
	*s.invoked = append(*s.invoked, s.name)
	return s.allow, s.reason
}

// TestPipeline_ShortCircuit verifies the universal short-circuit
// property (spec §8): a denial at position i stops every plugin at a
// later position from running.
func TestPipeline_ShortCircuit(t *testing.T) {
	var invoked []string
	first := &spyPlugin{name: "First", allow: true, invoked: &invoked}
	second := &spyPlugin{name: "Second", allow: false, reason: "denied by second", invoked: &invoked}
	third := &spyPlugin{name: "Third", allow: true, invoked: &invoked}

	pipeline := NewPipeline(fakeLogger{}, first, second, third)
	ok, reason := pipeline.CheckOrder(context.Background(), models.Order{}, models.Account{}, "sess-1", models.RiskSettings{})

	if ok {
		t.Fatalf("expected deny")
	}
	if reason != "denied by second" {
		t.Fatalf("unexpected reason: %q", reason)
	}
	if len(invoked) != 2 || invoked[0] != "First" || invoked[1] != "Second" {
		t.Fatalf("expected exactly [First, Second] to run, got %v", invoked)
	}
}

func TestPipeline_AllPass(t *testing.T) {
	var invoked []string
	first := &spyPlugin{name: "First", allow: true, invoked: &invoked}
	second := &spyPlugin{name: "Second", allow: true, invoked: &invoked}

	pipeline := NewPipeline(fakeLogger{}, first, second)
	ok, reason := pipeline.CheckOrder(context.Background(), models.Order{}, models.Account{}, "sess-1", models.RiskSettings{})
	if !ok || reason != "" {
		t.Fatalf("expected (true, \"\"), got (%v, %q)", ok, reason)
	}
	if len(invoked) != 2 {
		t.Fatalf("expected both plugins to run, got %v", invoked)
	}
}

func TestPipeline_Counters(t *testing.T) {
	var invoked []string
	deny := &spyPlugin{name: "Deny", allow: false, reason: "no", invoked: &invoked}
	pipeline := NewPipeline(fakeLogger{}, deny)

	pipeline.CheckOrder(context.Background(), models.Order{}, models.Account{}, "sess-1", models.RiskSettings{})
	pipeline.CheckOrder(context.Background(), models.Order{}, models.Account{}, "sess-1", models.RiskSettings{})

	counters := pipeline.Counters()
	if counters["Deny"].Deny != 2 {
		t.Fatalf("expected 2 recorded denials, got %d", counters["Deny"].Deny)
	}
}

// TestPipelineProperty_Determinism checks spec §8's determinism property:
// for fixed plugin verdicts, CheckOrder is a pure function of its
// inputs — calling it any number of times with the same arguments
// always returns the same result.
func TestPipelineProperty_Determinism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("CheckOrder is pure given fixed plugin verdicts", prop.ForAll(
		func(denyAtFirst, denyAtSecond bool, repeats int) bool {
			var invoked []string
			first := &spyPlugin{name: "First", allow: !denyAtFirst, reason: "first denied", invoked: &invoked}
			second := &spyPlugin{name: "Second", allow: !denyAtSecond, reason: "second denied", invoked: &invoked}
			pipeline := NewPipeline(fakeLogger{}, first, second)

			var lastOK bool
			var lastReason string
			for i := 0; i < repeats; i++ {
				invoked = nil
				ok, reason := pipeline.CheckOrder(context.Background(), models.Order{}, models.Account{}, "sess-1", models.RiskSettings{})
				if i > 0 && (ok != lastOK || reason != lastReason) {
					return false
				}
				lastOK, lastReason = ok, reason
			}
			return true
		},
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
